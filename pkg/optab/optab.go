// Package optab holds the assembler's binary-searched tables: the opcode
// table, merged by BuildTable from the real instruction encoders in
// pkg/encode and the pseudo-op handlers in pkg/pseudo, and the operand
// table, which classifies register names into the small integer codes
// the encoders pack into instruction bytes. Register pairs and condition
// flags are resolved through their own lookups (Pair, Condition).
//
// Env is the seam that keeps pkg/encode and pkg/pseudo from importing
// pkg/driver (which would cycle back through this package): driver.Context
// implements Env structurally, and every encoder/pseudo-op handler takes
// an Env instead of a concrete driver type.
package optab

import (
	"sort"

	"github.com/chettrick/zz80asm/pkg/errs"
)

// Env is the context an encoder or pseudo-op handler operates against: the
// current pass and program counter, the gencode gate, expression
// evaluation against the live symbol table, byte emission, error
// reporting, and the handful of pseudo-op side effects (label/symbol
// definition, conditional stack, include, listing control).
type Env interface {
	PC() uint16
	SetPC(pc uint16)
	Pass() int
	GenCode() bool
	NoFill() bool

	// Label returns the current line's label field, or "" if the line
	// had none. EQU/DEFL bind their value to this name rather than to
	// anything in the operand text.
	Label() string

	Eval(expr string) (int32, error)
	Emit(b ...byte)
	// Fill advances the output by n bytes without evaluating an
	// expression for them: raw/Mostek formats write n copies of 0xFF,
	// Intel-HEX flushes and advances its sparse address cursor instead
	//. ORG and DEFS both go through this rather than Emit.
	Fill(n int)

	Errorf(code errs.Code, detail string)

	// SymbolDefined reports whether name is already in the symbol table,
	// for IFDEF/IFNDEF.
	SymbolDefined(name string) bool
	// SetOrigin records the program's load address. Only the first call
	// across an assembly has any effect: the first ORG fixes the start
	// address for every output format.
	SetOrigin(addr uint16)

	DefineLabelHere(name string) bool
	DefineSymbol(name string, value int32, redefinable bool) bool

	PushConditional(active bool)
	SetElseActive()
	PopConditional() error

	Include(filename string) error

	SetListingTitle(title string)
	SetPage(n int)
	Eject()
	SetListingEnabled(on bool)
	Println(s string)
}

// EncodeFunc is the signature shared by every real-instruction encoder and
// pseudo-op handler: given the environment and the raw (already
// upper-cased, except inside quotes) operand text, emit bytes through
// env.Emit and return the number of bytes emitted so the driver can
// advance PC. A non-nil error is always an *errs.AssemblyError; handlers
// never panic on malformed input.
type EncodeFunc func(env Env, operand string) (int, error)

// OpEntry is one row of the opcode table: a mnemonic and the encoder that
// implements it, plus the two constant bytes (base opcode, and a second
// constant such as an ED-prefix byte or a stack-family discriminant) most
// encoder families key off of.
type OpEntry struct {
	Mnemonic string
	Encode   EncodeFunc
	C1       byte
	C2       byte
}

// OperandEntry is one row of the operand table: a register/pair/flag name
// and the small integer code encoders pack into instruction bytes.
type OperandEntry struct {
	Name string
	Code byte
}

// Register codes, low three bits of a register-to-register LD or an
// ADD/SUB/AND/... source selector.
const (
	RegB  = 0
	RegC  = 1
	RegD  = 2
	RegE  = 3
	RegH  = 4
	RegL  = 5
	RegHL = 6 // (HL), the memory-indirect "register"
	RegA  = 7
)

// Special-register codes for I and R, outside the 0-7 range so they can
// never be mistaken for B/C by an encoder that packs the code into an
// instruction's low three bits. Only LD A,I / LD A,R / LD I,A / LD R,A
// accept them, and those forms match by name before any code is used.
const (
	RegI = 8
	RegR = 9
)

// Register-pair codes, bits 4-5 of most 16-bit ops.
const (
	PairBC = 0
	PairDE = 1
	PairHL = 2
	PairSP = 3
)

// Register-pair codes as used by PUSH/POP, where slot 3 is AF, not SP.
const (
	PushPopAF = 3
)

// Condition-flag codes, bits 3-5 of conditional JP/CALL/RET.
const (
	CondNZ = 0
	CondZ  = 1
	CondNC = 2
	CondC  = 3
	CondPO = 4
	CondPE = 5
	CondP  = 6
	CondM  = 7
)

// operandTable is sorted ascending by Name; Lookup binary-searches it. It
// covers only the 7 simple registers plus (HL) and I/R, a deliberately
// narrow space so its codes never collide with register-pair codes that
// happen to share a small integer value (register D and pair HL are both
// 2). Register pairs have their own table (pairTable/Pair); condition
// flags have their own (conditionTable/Condition), since bare "C" is a
// register in an ALU/LD context but a condition flag in a
// JP/CALL/RET/JR context. Indirect forms ((BC)/(DE)/(HL)/(SP)/(IX)/(IY))
// are parsed structurally by the caller, not looked up by name.
var operandTable = buildOperandTable()

func buildOperandTable() []OperandEntry {
	entries := []OperandEntry{
		{"A", RegA}, {"B", RegB}, {"C", RegC}, {"D", RegD},
		{"E", RegE}, {"H", RegH}, {"L", RegL}, {"(HL)", RegHL},
		{"I", RegI}, {"R", RegR},
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Lookup finds name (already upper-cased by the caller) among the 7
// simple registers, (HL), I, and R via binary search.
func Lookup(name string) (byte, bool) {
	i := sort.Search(len(operandTable), func(i int) bool {
		return operandTable[i].Name >= name
	})
	if i < len(operandTable) && operandTable[i].Name == name {
		return operandTable[i].Code, true
	}
	return 0, false
}

var pairTable = map[string]byte{
	"BC": PairBC, "DE": PairDE, "HL": PairHL, "SP": PairSP,
	"AF": PushPopAF, "AF'": PushPopAF,
}

// Pair resolves a 16-bit register-pair name, a space disjoint from
// Lookup's so "HL" (pair code 2) never gets confused with register D
// (also code 2).
func Pair(name string) (byte, bool) {
	p, ok := pairTable[name]
	return p, ok
}

var conditionTable = map[string]byte{
	"NZ": CondNZ, "Z": CondZ, "NC": CondNC, "C": CondC,
	"PO": CondPO, "PE": CondPE, "P": CondP, "M": CondM,
}

// Condition resolves a condition-flag mnemonic (used by JP/CALL/RET/JR),
// a space disjoint from Lookup's because "C" means different things in
// each.
func Condition(name string) (byte, bool) {
	c, ok := conditionTable[name]
	return c, ok
}

// Table is the merged, sorted opcode table, searched by binary search on
// Mnemonic. END is deliberately absent: the driver matches it by direct
// string compare before ever consulting this table, since it terminates
// the file rather than encoding anything.
type Table struct {
	entries []OpEntry
}

// BuildTable merges the real-instruction entries from pkg/encode with
// the pseudo-op entries from pkg/pseudo into one sorted table, so
// machine instructions and directives dispatch identically.
func BuildTable(groups ...[]OpEntry) *Table {
	var all []OpEntry
	for _, g := range groups {
		all = append(all, g...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Mnemonic < all[j].Mnemonic })
	return &Table{entries: all}
}

// Lookup finds mnemonic (already upper-cased) via binary search.
func (t *Table) Lookup(mnemonic string) (OpEntry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Mnemonic >= mnemonic
	})
	if i < len(t.entries) && t.entries[i].Mnemonic == mnemonic {
		return t.entries[i], true
	}
	return OpEntry{}, false
}

// Len reports the number of table entries, for completeness tests.
func (t *Table) Len() int {
	return len(t.entries)
}
