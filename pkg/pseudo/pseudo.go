// Package pseudo implements every assembler directive that isn't a real
// Z80 instruction: data definition, address placement,
// conditional assembly, and listing control. Each handler shares
// EncodeFunc's signature with pkg/encode's real-instruction encoders so
// both live in the same opcode table and dispatch identically. END is
// the one directive absent here: the driver matches it directly, never
// through this table.
package pseudo

import (
	"strconv"
	"strings"

	"github.com/chettrick/zz80asm/pkg/errs"
	"github.com/chettrick/zz80asm/pkg/optab"
)

// Entries returns every OpEntry this package contributes to the merged
// opcode table.
func Entries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "ORG", Encode: encodeORG},
		{Mnemonic: "EQU", Encode: encodeEQU},
		{Mnemonic: "DEFL", Encode: encodeDEFL},
		{Mnemonic: "DEFB", Encode: encodeDEFB},
		{Mnemonic: "DEFM", Encode: encodeDEFM},
		{Mnemonic: "DEFW", Encode: encodeDEFW},
		{Mnemonic: "DEFS", Encode: encodeDEFS},
		{Mnemonic: "INCLUDE", Encode: encodeINCLUDE},
		{Mnemonic: "IFDEF", Encode: encodeIFDEF(false)},
		{Mnemonic: "IFNDEF", Encode: encodeIFDEF(true)},
		{Mnemonic: "IFEQ", Encode: encodeIFCMP(true)},
		{Mnemonic: "IFNEQ", Encode: encodeIFCMP(false)},
		{Mnemonic: "ELSE", Encode: encodeELSE},
		{Mnemonic: "ENDIF", Encode: encodeENDIF},
		{Mnemonic: "TITLE", Encode: encodeTITLE},
		{Mnemonic: "PAGE", Encode: encodePAGE},
		{Mnemonic: "EJECT", Encode: encodeEJECT},
		{Mnemonic: "LIST", Encode: encodeLIST(true)},
		{Mnemonic: "NOLIST", Encode: encodeLIST(false)},
		{Mnemonic: "PRINT", Encode: encodePRINT},
		{Mnemonic: "EXTRN", Encode: encodeNoop},
		{Mnemonic: "PUBLIC", Encode: encodeNoop},
	}
}

func encodeNoop(env optab.Env, operand string) (int, error) { return 0, nil }

// ORG records the program's load address on its first occurrence and, in
// pass 2, fills forward to a later address; moving PC backward is an
// error.
func encodeORG(env optab.Env, operand string) (int, error) {
	addr, err := env.Eval(operand)
	if err != nil {
		return 0, err
	}
	env.SetOrigin(uint16(addr))
	cur := env.PC()
	switch {
	case uint16(addr) < cur:
		return 0, errs.New(errs.EMemOvr, operand)
	case uint16(addr) > cur:
		n := int(uint16(addr) - cur)
		env.Fill(n)
		env.SetPC(uint16(addr))
		return n, nil
	default:
		return 0, nil
	}
}

// EQU binds the current line's label to operand's value. Redefinition is
// an error; EQU's value is not re-evaluated in pass 2: the
// symbol already exists from pass 1, so pass 2 only looks it up for the
// listing column rather than calling DefineSymbol again (which would
// spuriously raise E_MULSYM against pass 1's own definition).
func encodeEQU(env optab.Env, operand string) (int, error) {
	name := env.Label()
	if name == "" {
		return 0, errs.New(errs.EMisOpe, "EQU without a label")
	}
	if env.Pass() != 1 {
		return 0, nil
	}
	v, err := env.Eval(operand)
	if err != nil {
		return 0, err
	}
	if !env.DefineSymbol(name, v, false) {
		return 0, errs.New(errs.EMulSym, name)
	}
	return 0, nil
}

// DEFL is EQU's silently-redefinable twin.
func encodeDEFL(env optab.Env, operand string) (int, error) {
	name := env.Label()
	if name == "" {
		return 0, errs.New(errs.EMisOpe, "DEFL without a label")
	}
	v, err := env.Eval(operand)
	if err != nil {
		return 0, err
	}
	env.DefineSymbol(name, v, true)
	return 0, nil
}

// splitItems splits operand at top-level commas, leaving the contents of
// '...' literals untouched.
func splitItems(operand string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(operand); i++ {
		switch {
		case inQuote:
			if operand[i] == '\'' {
				inQuote = false
			}
		case operand[i] == '\'':
			inQuote = true
		case operand[i] == ',':
			out = append(out, strings.TrimSpace(operand[start:i]))
			start = i + 1
		}
	}
	out = append(out, strings.TrimSpace(operand[start:]))
	return out
}

// encodeDEFB emits one byte per item: each item is either a quoted
// string (one byte per character, no terminator) or an expression
// truncated to 8 bits.
func encodeDEFB(env optab.Env, operand string) (int, error) {
	n := 0
	for _, item := range splitItems(operand) {
		if len(item) >= 2 && item[0] == '\'' && item[len(item)-1] == '\'' {
			for i := 1; i < len(item)-1; i++ {
				env.Emit(item[i])
				n++
			}
			continue
		}
		v, err := env.Eval(item)
		if err != nil {
			return n, err
		}
		env.Emit(byte(v))
		n++
	}
	return n, nil
}

// encodeDEFM emits a single quoted string's characters, no terminator. A
// missing closing quote raises E_MISHYP.
func encodeDEFM(env optab.Env, operand string) (int, error) {
	operand = strings.TrimSpace(operand)
	if len(operand) < 2 || operand[0] != '\'' || operand[len(operand)-1] != '\'' {
		return 0, errs.New(errs.EMisHyp, operand)
	}
	body := operand[1 : len(operand)-1]
	for i := 0; i < len(body); i++ {
		env.Emit(body[i])
	}
	return len(body), nil
}

// encodeDEFW emits each comma-separated 16-bit expression little-endian.
func encodeDEFW(env optab.Env, operand string) (int, error) {
	n := 0
	for _, item := range splitItems(operand) {
		v, err := env.Eval(item)
		if err != nil {
			return n, err
		}
		env.Emit(byte(v), byte(v>>8))
		n += 2
	}
	return n, nil
}

// encodeDEFS advances PC by operand's value, filling with 0xFF in raw
// formats (or advancing the HEX address cursor) unless -x disabled fill.
func encodeDEFS(env optab.Env, operand string) (int, error) {
	v, err := env.Eval(operand)
	if err != nil {
		return 0, err
	}
	n := int(v)
	if n < 0 {
		return 0, errs.New(errs.EValOut, operand)
	}
	if !env.NoFill() {
		env.Fill(n)
	}
	return n, nil
}

func encodeINCLUDE(env optab.Env, operand string) (int, error) {
	name := strings.Trim(strings.TrimSpace(operand), "'\"")
	if err := env.Include(name); err != nil {
		return 0, err
	}
	return 0, nil
}

// encodeIFDEF builds the IFDEF/IFNDEF handler: push the current gencode
// state, then clear it if the symbol's definedness doesn't match what
// this branch requires.
func encodeIFDEF(negate bool) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		name := strings.ToUpper(strings.TrimSpace(operand))
		defined := env.SymbolDefined(name)
		active := defined
		if negate {
			active = !defined
		}
		env.PushConditional(active)
		return 0, nil
	}
}

// encodeIFCMP builds the IFEQ/IFNEQ handler: compare two comma-separated
// expressions.
func encodeIFCMP(wantEqual bool) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		if !env.GenCode() {
			// Inside a false branch the condition is never evaluated;
			// a frame still pushes so ENDIF balances.
			env.PushConditional(true)
			return 0, nil
		}
		items := splitItems(operand)
		if len(items) != 2 {
			return 0, errs.New(errs.EMisOpe, "IFEQ/IFNEQ requires two operands")
		}
		a, err := env.Eval(items[0])
		if err != nil {
			return 0, err
		}
		b, err := env.Eval(items[1])
		if err != nil {
			return 0, err
		}
		active := (a == b) == wantEqual
		env.PushConditional(active)
		return 0, nil
	}
}

func encodeELSE(env optab.Env, operand string) (int, error) {
	env.SetElseActive()
	return 0, nil
}

func encodeENDIF(env optab.Env, operand string) (int, error) {
	if err := env.PopConditional(); err != nil {
		return 0, err
	}
	return 0, nil
}

func encodeTITLE(env optab.Env, operand string) (int, error) {
	env.SetListingTitle(strings.Trim(strings.TrimSpace(operand), "'\""))
	return 0, nil
}

func encodePAGE(env optab.Env, operand string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(operand))
	if err != nil {
		return 0, errs.New(errs.EValOut, operand)
	}
	env.SetPage(n)
	return 0, nil
}

func encodeEJECT(env optab.Env, operand string) (int, error) {
	env.Eject()
	return 0, nil
}

func encodeLIST(on bool) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		env.SetListingEnabled(on)
		return 0, nil
	}
}

// PRINT writes its operand to the verbose/progress stream during pass 2:
// a quoted string verbatim, an expression in hex.
func encodePRINT(env optab.Env, operand string) (int, error) {
	if env.Pass() != 2 {
		return 0, nil
	}
	operand = strings.TrimSpace(operand)
	if len(operand) >= 2 && operand[0] == '\'' && operand[len(operand)-1] == '\'' {
		env.Println(operand[1 : len(operand)-1])
		return 0, nil
	}
	v, err := env.Eval(operand)
	if err != nil {
		return 0, err
	}
	env.Println(strconv.FormatInt(int64(uint16(v)), 16))
	return 0, nil
}
