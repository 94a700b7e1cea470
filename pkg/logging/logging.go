// Package logging wraps log/slog with a handler that mirrors every
// record to the assembler's verbose stream and, at warning level or
// above, to stderr regardless of verbosity.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler adapts slog.Record formatting to the assembler's progress
// stream: a plain "time level message attrs..." line, always duplicated
// to stderr for warnings and errors.
type Handler struct {
	out     io.Writer
	h       slog.Handler
	mu      *sync.Mutex
	verbose bool
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.h.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithAttrs(attrs), mu: h.mu, verbose: h.verbose}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, h: h.h.WithGroup(name), mu: h.mu, verbose: h.verbose}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	formattedTime := r.Time.Format("2006/01/02 15:04:05")

	strs := []string{formattedTime, level, r.Message}
	if r.NumAttrs() != 0 {
		r.Attrs(func(a slog.Attr) bool {
			strs = append(strs, a.Value.String())
			return true
		})
	}
	line := strings.Join(strs, " ") + "\n"
	b := []byte(line)

	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	if h.verbose && h.out != nil {
		_, err = h.out.Write(b)
	}
	if r.Level >= slog.LevelWarn {
		_, err = os.Stderr.Write(b)
	}
	return err
}

// NewHandler returns a Handler writing to out when verbose is true, and
// to stderr unconditionally for warnings and above.
func NewHandler(out io.Writer, verbose bool, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &Handler{
		out:     out,
		h:       slog.NewTextHandler(out, opts),
		mu:      &sync.Mutex{},
		verbose: verbose,
	}
}

// New builds a *slog.Logger over NewHandler, the constructor pkg/driver
// and cmd/zz80asm use to get a consistent progress stream.
func New(out io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewHandler(out, verbose, nil))
}
