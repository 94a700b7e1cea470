package encode

import (
	"strconv"
	"strings"

	"github.com/chettrick/zz80asm/pkg/optab"
)

// CB-prefixed rotate/shift operation indices, packed as 0x00|(op<<3)|r.
const (
	rotRLC = 0
	rotRRC = 1
	rotRL  = 2
	rotRR  = 3
	rotSLA = 4
	rotSRA = 5
	rotSRL = 7
)

func rotEntries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "RLC", Encode: encodeShift(rotRLC)},
		{Mnemonic: "RRC", Encode: encodeShift(rotRRC)},
		{Mnemonic: "RL", Encode: encodeShift(rotRL)},
		{Mnemonic: "RR", Encode: encodeShift(rotRR)},
		{Mnemonic: "SLA", Encode: encodeShift(rotSLA)},
		{Mnemonic: "SRA", Encode: encodeShift(rotSRA)},
		{Mnemonic: "SRL", Encode: encodeShift(rotSRL)},
		{Mnemonic: "BIT", Encode: encodeBitOp(0x40)},
		{Mnemonic: "SET", Encode: encodeBitOp(0xC0)},
		{Mnemonic: "RES", Encode: encodeBitOp(0x80)},
	}
}

// encodeShift builds the CB-prefixed rotate/shift encoder for one
// operation index: CB, op<<3|r for a plain register or (HL), or
// DD/FD, CB, d, op<<3|6 for an indexed form; IX/IY variants add the
// prefix and displacement byte before CB.
func encodeShift(op byte) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		operand = strings.TrimSpace(operand)
		if prefix, disp, ok := isIndexed(operand); ok {
			d, err := dispByte(env, disp)
			if err != nil {
				return 0, err
			}
			env.Emit(prefix, 0xCB, d, (op<<3)|optab.RegHL)
			return 4, nil
		}
		code, ok := optab.Lookup(strings.ToUpper(operand))
		if !ok || code > optab.RegA {
			return illOpe(env, "illegal shift/rotate operand "+operand)
		}
		env.Emit(0xCB, (op<<3)|code)
		return 2, nil
	}
}

// encodeBitOp builds the BIT/SET/RES encoder: base | (bit<<3) | r, where
// bit is a literal 0-7 and r is a register, (HL), or an indexed form.
func encodeBitOp(base byte) optab.EncodeFunc {
	return func(env optab.Env, operand string) (int, error) {
		ops := splitOperands(operand)
		if len(ops) != 2 {
			return illOpe(env, "bit operation requires two operands")
		}
		bit, err := strconv.Atoi(strings.TrimSpace(ops[0]))
		if err != nil || bit < 0 || bit > 7 {
			return illOpe(env, "illegal bit number "+ops[0])
		}
		reg := strings.TrimSpace(ops[1])
		if prefix, disp, ok := isIndexed(reg); ok {
			d, err := dispByte(env, disp)
			if err != nil {
				return 0, err
			}
			env.Emit(prefix, 0xCB, d, base|(byte(bit)<<3)|optab.RegHL)
			return 4, nil
		}
		code, ok := optab.Lookup(strings.ToUpper(reg))
		if !ok || code > optab.RegA {
			return illOpe(env, "illegal bit operation register "+reg)
		}
		env.Emit(0xCB, base|(byte(bit)<<3)|code)
		return 2, nil
	}
}
