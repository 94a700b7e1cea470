package encode

import (
	"strconv"
	"strings"

	"github.com/chettrick/zz80asm/pkg/eval"
	"github.com/chettrick/zz80asm/pkg/optab"
)

func jumpEntries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "JP", Encode: encodeJP},
		{Mnemonic: "JR", Encode: encodeJR},
		{Mnemonic: "CALL", Encode: encodeCALL},
		{Mnemonic: "DJNZ", Encode: encodeDJNZ},
		{Mnemonic: "RST", Encode: encodeRST},
	}
}

func encodeJP(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) == 1 {
		switch strings.ToUpper(strings.TrimSpace(ops[0])) {
		case "(HL)":
			env.Emit(0xE9)
			return 1, nil
		case "(IX)":
			env.Emit(0xDD, 0xE9)
			return 2, nil
		case "(IY)":
			env.Emit(0xFD, 0xE9)
			return 2, nil
		}
		nn, err := evalWord(env, ops[0])
		if err != nil {
			return 0, err
		}
		env.Emit(0xC3, byte(nn), byte(nn>>8))
		return 3, nil
	}
	if len(ops) == 2 {
		cond, ok := optab.Condition(strings.ToUpper(strings.TrimSpace(ops[0])))
		if !ok {
			return illOpe(env, "illegal JP condition "+ops[0])
		}
		nn, err := evalWord(env, ops[1])
		if err != nil {
			return 0, err
		}
		env.Emit(0xC2|(cond<<3), byte(nn), byte(nn>>8))
		return 3, nil
	}
	return illOpe(env, "illegal JP operand "+operand)
}

// relJumpCond maps the 4 condition names JR accepts to their bit pattern,
// a strict subset of the 8 accepted by JP/CALL/RET.
var relJumpCond = map[string]byte{"NZ": 0, "Z": 1, "NC": 2, "C": 3}

func encodeJR(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	var target string
	base := byte(0x18)
	switch len(ops) {
	case 1:
		target = ops[0]
	case 2:
		cond, ok := relJumpCond[strings.ToUpper(strings.TrimSpace(ops[0]))]
		if !ok {
			return illOpe(env, "illegal JR condition "+ops[0])
		}
		base = 0x20 | (cond << 3)
		target = ops[1]
	default:
		return illOpe(env, "illegal JR operand "+operand)
	}
	disp, err := relDisplacement(env, target)
	env.Emit(base, disp)
	return 2, err
}

func encodeDJNZ(env optab.Env, operand string) (int, error) {
	disp, err := relDisplacement(env, operand)
	env.Emit(0x10, disp)
	return 2, err
}

// relDisplacement evaluates target and folds it into the signed 8-bit
// displacement relative to the byte following this two-byte instruction:
// target - (PC+2), range-checked by CheckRel8.
// The check runs only in pass 2: a forward-referenced target evaluates to
// zero in pass 1 and would spuriously fail it, and both passes must agree
// on the two-byte length regardless. On error the displacement is zero so
// the instruction still occupies its two bytes.
func relDisplacement(env optab.Env, target string) (byte, error) {
	v, err := env.Eval(target)
	if err != nil {
		return 0, err
	}
	disp := v - int32(env.PC()) - 2
	if env.Pass() == 1 {
		return byte(disp), nil
	}
	if _, err := eval.CheckRel8(disp); err != nil {
		return 0, err
	}
	return byte(disp), nil
}

func encodeCALL(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) == 1 {
		nn, err := evalWord(env, ops[0])
		if err != nil {
			return 0, err
		}
		env.Emit(0xCD, byte(nn), byte(nn>>8))
		return 3, nil
	}
	if len(ops) == 2 {
		cond, ok := optab.Condition(strings.ToUpper(strings.TrimSpace(ops[0])))
		if !ok {
			return illOpe(env, "illegal CALL condition "+ops[0])
		}
		nn, err := evalWord(env, ops[1])
		if err != nil {
			return 0, err
		}
		env.Emit(0xC4|(cond<<3), byte(nn), byte(nn>>8))
		return 3, nil
	}
	return illOpe(env, "illegal CALL operand "+operand)
}

// restartAddrs is the closed set RST accepts: multiples of 8 from 0 to
// 0x38.
var restartAddrs = map[int32]bool{
	0x00: true, 0x08: true, 0x10: true, 0x18: true,
	0x20: true, 0x28: true, 0x30: true, 0x38: true,
}

// encodeRST parses operand as a bare hex literal first: the conventional
// notation for RST addresses (0,8,10,18,20,28,30,38) is always hex even
// without a trailing H. A suffixed or symbolic operand still works by
// falling back to the general evaluator.
func encodeRST(env optab.Env, operand string) (int, error) {
	operand = strings.TrimSpace(operand)
	v, err := strconv.ParseInt(operand, 16, 32)
	if err != nil {
		ev, everr := env.Eval(operand)
		if everr != nil {
			return 0, everr
		}
		v = int64(ev)
	}
	if !restartAddrs[int32(v)] {
		return illOpe(env, "illegal RST address "+operand)
	}
	env.Emit(0xC7 | byte(v))
	return 1, nil
}
