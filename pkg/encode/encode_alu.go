package encode

import (
	"strings"

	"github.com/chettrick/zz80asm/pkg/optab"
)

// Accumulator-ALU operation indices, packed into the base opcode as
// 0x80+8*op (register/indirect/indexed source) or 0xC6+8*op (immediate
// source).
const (
	aluADD = 0
	aluADC = 1
	aluSUB = 2
	aluSBC = 3
	aluAND = 4
	aluXOR = 5
	aluOR  = 6
	aluCP  = 7
)

// encodeAcc builds the encoder for one accumulator-ALU mnemonic. The
// operand is either "A,src" (ADD/ADC/SBC, which name the accumulator
// explicitly) or bare "src" (SUB/AND/XOR/OR/CP); both forms are accepted
// for every mnemonic in this family since the leading "A," is redundant.
func encodeAcc(op byte) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		ops := splitOperands(operand)
		var src string
		switch len(ops) {
		case 1:
			src = ops[0]
		case 2:
			if !strings.EqualFold(ops[0], "A") {
				return illOpe(env, "illegal accumulator ALU destination "+ops[0])
			}
			src = ops[1]
		default:
			return illOpe(env, "illegal ALU operand "+operand)
		}
		return emitAccSource(env, op, src)
	}
}

func emitAccSource(env optab.Env, op byte, src string) (int, error) {
	src = strings.TrimSpace(src)
	if prefix, disp, ok := isIndexed(src); ok {
		d, err := dispByte(env, disp)
		if err != nil {
			return 0, err
		}
		env.Emit(prefix, 0x86|(op<<3), d)
		return 3, nil
	}
	upper := strings.ToUpper(src)
	if code, ok := optab.Lookup(upper); ok {
		if code > optab.RegA {
			return illOpe(env, "illegal ALU source "+src)
		}
		env.Emit(0x80 | (op << 3) | code)
		return 1, nil
	}
	if _, ok := optab.Pair(upper); ok {
		return illOpe(env, "illegal ALU source "+src)
	}
	n, err := evalByte(env, src)
	if err != nil {
		return 0, err
	}
	env.Emit(0xC6|(op<<3), n)
	return 2, nil
}

func aluEntries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "ADD", Encode: encodeADD},
		{Mnemonic: "ADC", Encode: encodeADC},
		{Mnemonic: "SUB", Encode: encodeAcc(aluSUB)},
		{Mnemonic: "SBC", Encode: encodeSBC},
		{Mnemonic: "AND", Encode: encodeAcc(aluAND)},
		{Mnemonic: "XOR", Encode: encodeAcc(aluXOR)},
		{Mnemonic: "OR", Encode: encodeAcc(aluOR)},
		{Mnemonic: "CP", Encode: encodeAcc(aluCP)},
		{Mnemonic: "INC", Encode: encodeINC},
		{Mnemonic: "DEC", Encode: encodeDEC},
	}
}

// ADD has a second shape beyond the accumulator family: ADD HL/IX/IY,rr.
func encodeADD(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) == 2 {
		if _, prefix, ok := pairAdd(ops[0]); ok {
			rp, ok := regPair(ops[1])
			if !ok {
				return illOpe(env, "illegal ADD pair source "+ops[1])
			}
			if prefix != 0 {
				env.Emit(prefix, 0x09|(rp<<4))
				return 2, nil
			}
			env.Emit(0x09 | (rp << 4))
			return 1, nil
		}
	}
	return encodeAcc(aluADD)(env, operand)
}

func encodeADC(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) == 2 && strings.EqualFold(ops[0], "HL") {
		rp, ok := regPair(ops[1])
		if !ok {
			return illOpe(env, "illegal ADC HL source "+ops[1])
		}
		env.Emit(0xED, 0x4A|(rp<<4))
		return 2, nil
	}
	return encodeAcc(aluADC)(env, operand)
}

func encodeSBC(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) == 2 && strings.EqualFold(ops[0], "HL") {
		rp, ok := regPair(ops[1])
		if !ok {
			return illOpe(env, "illegal SBC HL source "+ops[1])
		}
		env.Emit(0xED, 0x42|(rp<<4))
		return 2, nil
	}
	return encodeAcc(aluSBC)(env, operand)
}

// pairAdd reports whether dst is HL/IX/IY, the only destinations ADD's
// 16-bit form accepts, and the index prefix byte to use (0 for HL).
func pairAdd(dst string) (dst16 string, prefix byte, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(dst)) {
	case "HL":
		return "HL", 0, true
	case "IX":
		return "IX", 0xDD, true
	case "IY":
		return "IY", 0xFD, true
	}
	return "", 0, false
}

func regPair(s string) (byte, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BC":
		return optab.PairBC, true
	case "DE":
		return optab.PairDE, true
	case "HL", "IX", "IY":
		return optab.PairHL, true
	case "SP":
		return optab.PairSP, true
	}
	return 0, false
}

func encodeINC(env optab.Env, operand string) (int, error) {
	return incDec(env, operand, 0x04, 0x03)
}

func encodeDEC(env optab.Env, operand string) (int, error) {
	return incDec(env, operand, 0x05, 0x0B)
}

func incDec(env optab.Env, operand string, regBase, pairBase byte) (int, error) {
	operand = strings.TrimSpace(operand)
	if prefix, disp, ok := isIndexed(operand); ok {
		d, err := dispByte(env, disp)
		if err != nil {
			return 0, err
		}
		env.Emit(prefix, regBase|(optab.RegHL<<3), d)
		return 3, nil
	}
	switch strings.ToUpper(operand) {
	case "IX":
		env.Emit(0xDD, pairBase|(optab.PairHL<<4))
		return 2, nil
	case "IY":
		env.Emit(0xFD, pairBase|(optab.PairHL<<4))
		return 2, nil
	}
	if code, ok := optab.Lookup(strings.ToUpper(operand)); ok && code <= optab.RegA {
		env.Emit(regBase | (code << 3))
		return 1, nil
	}
	if rp, ok := regPair(operand); ok {
		env.Emit(pairBase | (rp << 4))
		return 1, nil
	}
	return illOpe(env, "illegal INC/DEC operand "+operand)
}
