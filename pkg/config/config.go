// Package config holds the assembly run's options, shared unchanged
// between cmd/zz80asm's flag parsing and pkg/driver's two-pass loop.
package config

import "github.com/chettrick/zz80asm/pkg/emit"

// SortMode selects the symbol-table appendix's sort key (-s a|n).
type SortMode int

const (
	SortNone SortMode = iota
	SortByName
	SortByValue
)

// Options is the assembler's full set of run parameters.
type Options struct {
	Sources []string

	Format  emit.Format
	ObjFile string

	ListFile    string
	ListEnabled bool
	SortSymbols SortMode

	Verbose bool

	// NoFill disables DEFS's default 0xFF fill (-x).
	NoFill bool

	// Defines names symbols pre-defined to value 0 before pass 1 (-d SYM).
	Defines []string
}
