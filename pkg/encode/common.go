// Package encode implements the encoder for every real Z80 mnemonic
//, one file per instruction family, following the
// teacher's one-file-per-concern split of a single domain package.
// Every encoder has the same shape: split the operand text at a
// top-level comma, classify each half via pkg/optab's register table or
// pkg/eval's expression evaluator, and emit 1-4 bytes through env.Emit.
package encode

import (
	"strings"

	"github.com/chettrick/zz80asm/pkg/errs"
	"github.com/chettrick/zz80asm/pkg/eval"
	"github.com/chettrick/zz80asm/pkg/optab"
)

// splitOperands splits s at top-level commas: commas inside a '...'
// literal or (...) group are not split points.
func splitOperands(s string) []string {
	var out []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch {
		case inQuote:
			if s[i] == '\'' {
				inQuote = false
			}
		case s[i] == '\'':
			inQuote = true
		case s[i] == '(':
			depth++
		case s[i] == ')':
			depth--
		case s[i] == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	return out
}

// illOpe returns an E_ILLOPE for the driver to record; encoders never
// report through env.Errorf and return the same error, which would count
// it twice.
func illOpe(env optab.Env, detail string) (int, error) {
	return 0, errs.New(errs.EIllOpe, detail)
}

// evalByte evaluates expr, range-checks it with CheckImm8, and truncates
// it to 8 bits.
func evalByte(env optab.Env, expr string) (byte, error) {
	v, err := env.Eval(expr)
	if err != nil {
		return 0, err
	}
	if _, err := eval.CheckImm8(v); err != nil {
		return byte(v), err
	}
	return byte(v), nil
}

// evalWord evaluates expr as a 16-bit value.
func evalWord(env optab.Env, expr string) (uint16, error) {
	v, err := env.Eval(expr)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// isIndirectHL reports whether s is exactly "(HL)".
func isIndirectHL(s string) bool {
	return strings.EqualFold(s, "(HL)")
}

func stripParens(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func isIndexed(s string) (prefix byte, disp string, ok bool) {
	inner, has := stripParens(s)
	if !has {
		return 0, "", false
	}
	inner = strings.TrimSpace(inner)
	switch {
	case strings.HasPrefix(strings.ToUpper(inner), "IX"):
		return 0xDD, strings.TrimSpace(inner[2:]), true
	case strings.HasPrefix(strings.ToUpper(inner), "IY"):
		return 0xFD, strings.TrimSpace(inner[2:]), true
	}
	return 0, "", false
}

// dispByte evaluates a "+d"/"-d"/"" displacement suffix (as left after
// stripping "IX"/"IY") into a single signed byte. The leading sign is
// peeled off before handing the magnitude to the evaluator: pkg/eval's
// term() has no unary-minus case (only "~"), so "+5"/"-5" would otherwise
// both fail to parse as bare expressions.
func dispByte(env optab.Env, suffix string) (byte, error) {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return 0, nil
	}
	neg := false
	switch suffix[0] {
	case '+':
		suffix = suffix[1:]
	case '-':
		neg = true
		suffix = suffix[1:]
	}
	v, err := env.Eval(suffix)
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	if _, err := eval.CheckImm8(v); err != nil {
		return byte(v), err
	}
	return byte(v), nil
}
