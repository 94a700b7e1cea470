package encode

import (
	"strconv"
	"strings"

	"github.com/chettrick/zz80asm/pkg/optab"
)

// op1b builds an EncodeFunc for the single-byte family:
// emit c1 and nothing else, ignoring any operand text.
func op1b(c1 byte) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		env.Emit(c1)
		return 1, nil
	}
}

// op2b builds an EncodeFunc for the ED-prefixed two-byte family.
func op2b(c1, c2 byte) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		env.Emit(c1, c2)
		return 2, nil
	}
}

func encodeEX(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) != 2 {
		return illOpe(env, "EX requires two operands")
	}
	a, b := strings.ToUpper(ops[0]), strings.ToUpper(ops[1])
	switch {
	case a == "DE" && b == "HL":
		env.Emit(0xEB)
		return 1, nil
	case a == "AF" && b == "AF'":
		env.Emit(0x08)
		return 1, nil
	case a == "(SP)" && b == "HL":
		env.Emit(0xE3)
		return 1, nil
	case a == "(SP)" && b == "IX":
		env.Emit(0xDD, 0xE3)
		return 2, nil
	case a == "(SP)" && b == "IY":
		env.Emit(0xFD, 0xE3)
		return 2, nil
	}
	return illOpe(env, "illegal EX operands "+operand)
}

func encodeStack(c1 byte) optab.EncodeFunc {
	// c1 == 1 -> POP, c1 == 2 -> PUSH.
	base := byte(0xC1)
	if c1 == 2 {
		base = 0xC5
	}
	return func(env optab.Env, operand string) (int, error) {
		name := strings.ToUpper(strings.TrimSpace(operand))
		switch name {
		case "IX":
			env.Emit(0xDD, base|(2<<4))
			return 2, nil
		case "IY":
			env.Emit(0xFD, base|(2<<4))
			return 2, nil
		}
		code, ok := optab.Pair(name)
		if !ok || name == "SP" {
			return illOpe(env, "illegal stack register "+operand)
		}
		env.Emit(base | (code << 4))
		return 1, nil
	}
}

func encodeIN(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) != 2 {
		return illOpe(env, "IN requires two operands")
	}
	dst := strings.ToUpper(ops[0])
	reg, ok := optab.Lookup(dst)
	if !ok || reg == optab.RegHL || reg > optab.RegA {
		return illOpe(env, "illegal IN destination "+ops[0])
	}
	if strings.EqualFold(ops[1], "(C)") {
		env.Emit(0xED, 0x40|(reg<<3))
		return 2, nil
	}
	if inner, has := stripParens(ops[1]); has && dst == "A" {
		n, err := evalByte(env, inner)
		if err != nil {
			return 0, err
		}
		env.Emit(0xDB, n)
		return 2, nil
	}
	return illOpe(env, "illegal IN operands "+operand)
}

func encodeOUT(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) != 2 {
		return illOpe(env, "OUT requires two operands")
	}
	src := strings.ToUpper(ops[1])
	reg, ok := optab.Lookup(src)
	if !ok || reg == optab.RegHL || reg > optab.RegA {
		return illOpe(env, "illegal OUT source "+ops[1])
	}
	if strings.EqualFold(ops[0], "(C)") {
		env.Emit(0xED, 0x41|(reg<<3))
		return 2, nil
	}
	if inner, has := stripParens(ops[0]); has && src == "A" {
		n, err := evalByte(env, inner)
		if err != nil {
			return 0, err
		}
		env.Emit(0xD3, n)
		return 2, nil
	}
	return illOpe(env, "illegal OUT operands "+operand)
}

// encodeIM accepts only the literal immediate mode numbers 0, 1, 2; any
// other value raises E_ILLOPE.
func encodeIM(env optab.Env, operand string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(operand))
	if err != nil || (n != 0 && n != 1 && n != 2) {
		return illOpe(env, "illegal interrupt mode "+operand)
	}
	switch n {
	case 0:
		env.Emit(0xED, 0x46)
	case 1:
		env.Emit(0xED, 0x56)
	case 2:
		env.Emit(0xED, 0x5E)
	}
	return 2, nil
}

// Entries returns every OpEntry this package contributes to the merged
// opcode table.
func Entries() []optab.OpEntry {
	var out []optab.OpEntry
	out = append(out, singleByteEntries()...)
	out = append(out, aluEntries()...)
	out = append(out, ldEntries()...)
	out = append(out, rotEntries()...)
	out = append(out, jumpEntries()...)
	return out
}

func singleByteEntries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "NOP", Encode: op1b(0x00), C1: 0x00},
		{Mnemonic: "HALT", Encode: op1b(0x76), C1: 0x76},
		{Mnemonic: "DI", Encode: op1b(0xF3), C1: 0xF3},
		{Mnemonic: "EI", Encode: op1b(0xFB), C1: 0xFB},
		{Mnemonic: "RLCA", Encode: op1b(0x07), C1: 0x07},
		{Mnemonic: "RRCA", Encode: op1b(0x0F), C1: 0x0F},
		{Mnemonic: "RLA", Encode: op1b(0x17), C1: 0x17},
		{Mnemonic: "RRA", Encode: op1b(0x1F), C1: 0x1F},
		{Mnemonic: "DAA", Encode: op1b(0x27), C1: 0x27},
		{Mnemonic: "CPL", Encode: op1b(0x2F), C1: 0x2F},
		{Mnemonic: "SCF", Encode: op1b(0x37), C1: 0x37},
		{Mnemonic: "CCF", Encode: op1b(0x3F), C1: 0x3F},
		{Mnemonic: "EXX", Encode: op1b(0xD9), C1: 0xD9},
		{Mnemonic: "RET", Encode: encodeRET, C1: 0xC9},

		{Mnemonic: "NEG", Encode: op2b(0xED, 0x44), C1: 0xED, C2: 0x44},
		{Mnemonic: "RETN", Encode: op2b(0xED, 0x45), C1: 0xED, C2: 0x45},
		{Mnemonic: "RETI", Encode: op2b(0xED, 0x4D), C1: 0xED, C2: 0x4D},
		{Mnemonic: "RLD", Encode: op2b(0xED, 0x6F), C1: 0xED, C2: 0x6F},
		{Mnemonic: "RRD", Encode: op2b(0xED, 0x67), C1: 0xED, C2: 0x67},
		{Mnemonic: "LDI", Encode: op2b(0xED, 0xA0), C1: 0xED, C2: 0xA0},
		{Mnemonic: "LDIR", Encode: op2b(0xED, 0xB0), C1: 0xED, C2: 0xB0},
		{Mnemonic: "LDD", Encode: op2b(0xED, 0xA8), C1: 0xED, C2: 0xA8},
		{Mnemonic: "LDDR", Encode: op2b(0xED, 0xB8), C1: 0xED, C2: 0xB8},
		{Mnemonic: "CPI", Encode: op2b(0xED, 0xA1), C1: 0xED, C2: 0xA1},
		{Mnemonic: "CPIR", Encode: op2b(0xED, 0xB1), C1: 0xED, C2: 0xB1},
		{Mnemonic: "CPD", Encode: op2b(0xED, 0xA9), C1: 0xED, C2: 0xA9},
		{Mnemonic: "CPDR", Encode: op2b(0xED, 0xB9), C1: 0xED, C2: 0xB9},
		{Mnemonic: "INI", Encode: op2b(0xED, 0xA2), C1: 0xED, C2: 0xA2},
		{Mnemonic: "INIR", Encode: op2b(0xED, 0xB2), C1: 0xED, C2: 0xB2},
		{Mnemonic: "IND", Encode: op2b(0xED, 0xAA), C1: 0xED, C2: 0xAA},
		{Mnemonic: "INDR", Encode: op2b(0xED, 0xBA), C1: 0xED, C2: 0xBA},
		{Mnemonic: "OUTI", Encode: op2b(0xED, 0xA3), C1: 0xED, C2: 0xA3},
		{Mnemonic: "OTIR", Encode: op2b(0xED, 0xB3), C1: 0xED, C2: 0xB3},
		{Mnemonic: "OUTD", Encode: op2b(0xED, 0xAB), C1: 0xED, C2: 0xAB},
		{Mnemonic: "OTDR", Encode: op2b(0xED, 0xBB), C1: 0xED, C2: 0xBB},
		{Mnemonic: "IM", Encode: encodeIM},

		{Mnemonic: "EX", Encode: encodeEX},
		{Mnemonic: "PUSH", Encode: encodeStack(2), C1: 2},
		{Mnemonic: "POP", Encode: encodeStack(1), C1: 1},
		{Mnemonic: "IN", Encode: encodeIN},
		{Mnemonic: "OUT", Encode: encodeOUT},
	}
}

func encodeRET(env optab.Env, operand string) (int, error) {
	name := strings.ToUpper(strings.TrimSpace(operand))
	if name == "" {
		env.Emit(0xC9)
		return 1, nil
	}
	code, ok := optab.Condition(name)
	if !ok {
		return illOpe(env, "illegal RET condition "+operand)
	}
	env.Emit(0xC0 | (code << 3))
	return 1, nil
}
