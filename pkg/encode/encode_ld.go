package encode

import (
	"strings"

	"github.com/chettrick/zz80asm/pkg/optab"
)

func ldEntries() []optab.OpEntry {
	return []optab.OpEntry{
		{Mnemonic: "LD", Encode: encodeLD},
	}
}

// encodeLD dispatches on the (dest-class, src-class) pair:
// register<->register, register<->immediate, register
// pair<->16-bit immediate, the handful of accumulator<->(BC)/(DE)/(nn)
// shortcuts, HL/IX/IY<->(nn), SP<-HL/IX/IY, the ED-prefixed dd<->(nn)
// forms for BC/DE/SP, A<->I/R, and the indexed (IX+d)/(IY+d) 8-bit and
// immediate forms.
func encodeLD(env optab.Env, operand string) (int, error) {
	ops := splitOperands(operand)
	if len(ops) != 2 {
		return illOpe(env, "LD requires two operands")
	}
	dst, src := strings.TrimSpace(ops[0]), strings.TrimSpace(ops[1])
	upperDst, upperSrc := strings.ToUpper(dst), strings.ToUpper(src)

	switch {
	case upperDst == "A" && upperSrc == "(BC)":
		env.Emit(0x0A)
		return 1, nil
	case upperDst == "A" && upperSrc == "(DE)":
		env.Emit(0x1A)
		return 1, nil
	case upperDst == "(BC)" && upperSrc == "A":
		env.Emit(0x02)
		return 1, nil
	case upperDst == "(DE)" && upperSrc == "A":
		env.Emit(0x12)
		return 1, nil
	case upperDst == "A" && upperSrc == "I":
		env.Emit(0xED, 0x57)
		return 2, nil
	case upperDst == "A" && upperSrc == "R":
		env.Emit(0xED, 0x5F)
		return 2, nil
	case upperDst == "I" && upperSrc == "A":
		env.Emit(0xED, 0x47)
		return 2, nil
	case upperDst == "R" && upperSrc == "A":
		env.Emit(0xED, 0x4F)
		return 2, nil
	case upperDst == "SP" && (upperSrc == "HL" || upperSrc == "IX" || upperSrc == "IY"):
		return ldSPFromIndex(env, upperSrc)
	}

	if inner, has := stripParens(dst); has && strings.EqualFold(upperSrc, "A") &&
		!isIndexParen(upperDst) && upperDst != "(HL)" {
		nn, err := evalWord(env, inner)
		if err != nil {
			return 0, err
		}
		env.Emit(0x32, byte(nn), byte(nn>>8))
		return 3, nil
	}
	if inner, has := stripParens(src); has && strings.EqualFold(upperDst, "A") &&
		!isIndexParen(upperSrc) && upperSrc != "(HL)" {
		nn, err := evalWord(env, inner)
		if err != nil {
			return 0, err
		}
		env.Emit(0x3A, byte(nn), byte(nn>>8))
		return 3, nil
	}

	if rp, prefix, ok := widePair(upperDst); ok && strings.HasPrefix(src, "(") {
		return ldWideFromMem(env, rp, prefix, src)
	}
	if rp, prefix, ok := widePair(upperSrc); ok && strings.HasPrefix(dst, "(") {
		return ldWideToMem(env, rp, prefix, dst)
	}

	if rp, prefix, ok := widePair(upperDst); ok {
		nn, err := evalWord(env, src)
		if err != nil {
			return 0, err
		}
		if prefix != 0 {
			env.Emit(prefix, 0x01|(rp<<4), byte(nn), byte(nn>>8))
			return 4, nil
		}
		env.Emit(0x01|(rp<<4), byte(nn), byte(nn>>8))
		return 3, nil
	}

	if dprefix, disp, ok := isIndexed(dst); ok {
		return ldToIndexed(env, dprefix, disp, src)
	}
	if sprefix, disp, ok := isIndexed(src); ok {
		return ldFromIndexed(env, sprefix, disp, dst)
	}

	dcode, dok := optab.Lookup(upperDst)
	if !dok || dcode > optab.RegA {
		return illOpe(env, "illegal LD destination "+dst)
	}
	if scode, sok := optab.Lookup(upperSrc); sok {
		if scode > optab.RegA {
			return illOpe(env, "illegal LD source "+src)
		}
		if dcode == optab.RegHL && scode == optab.RegHL {
			return illOpe(env, "LD (HL),(HL) is HALT, not a load")
		}
		env.Emit(0x40 | (dcode << 3) | scode)
		return 1, nil
	}
	n, err := evalByte(env, src)
	if err != nil {
		return 0, err
	}
	env.Emit(0x06|(dcode<<3), n)
	return 2, nil
}

func ldSPFromIndex(env optab.Env, src string) (int, error) {
	switch src {
	case "HL":
		env.Emit(0xF9)
		return 1, nil
	case "IX":
		env.Emit(0xDD, 0xF9)
		return 2, nil
	case "IY":
		env.Emit(0xFD, 0xF9)
		return 2, nil
	}
	return 0, nil
}

// widePair resolves a 16-bit destination/source name to its register-pair
// code and index prefix (0 for BC/DE/HL/SP).
func widePair(name string) (code, prefix byte, ok bool) {
	switch name {
	case "BC":
		return optab.PairBC, 0, true
	case "DE":
		return optab.PairDE, 0, true
	case "HL":
		return optab.PairHL, 0, true
	case "SP":
		return optab.PairSP, 0, true
	case "IX":
		return optab.PairHL, 0xDD, true
	case "IY":
		return optab.PairHL, 0xFD, true
	}
	return 0, 0, false
}

// isIndexParen reports whether s is an indexed form "(IX...)"/"(IY...)",
// which must be handled by the indexed-load paths rather than the plain
// "(nn),A" / "A,(nn)" shortcuts.
func isIndexParen(s string) bool {
	return strings.HasPrefix(s, "(IX") || strings.HasPrefix(s, "(IY")
}

func ldWideFromMem(env optab.Env, rp, prefix byte, src string) (int, error) {
	inner, _ := stripParens(src)
	nn, err := evalWord(env, inner)
	if err != nil {
		return 0, err
	}
	switch {
	case prefix != 0:
		env.Emit(prefix, 0x2A, byte(nn), byte(nn>>8))
		return 4, nil
	case rp == optab.PairHL:
		env.Emit(0x2A, byte(nn), byte(nn>>8))
		return 3, nil
	default:
		env.Emit(0xED, 0x4B|(rp<<4), byte(nn), byte(nn>>8))
		return 4, nil
	}
}

func ldWideToMem(env optab.Env, rp, prefix byte, dst string) (int, error) {
	inner, _ := stripParens(dst)
	nn, err := evalWord(env, inner)
	if err != nil {
		return 0, err
	}
	switch {
	case prefix != 0:
		env.Emit(prefix, 0x22, byte(nn), byte(nn>>8))
		return 4, nil
	case rp == optab.PairHL:
		env.Emit(0x22, byte(nn), byte(nn>>8))
		return 3, nil
	default:
		env.Emit(0xED, 0x43|(rp<<4), byte(nn), byte(nn>>8))
		return 4, nil
	}
}

// ldToIndexed handles LD (IX+d),r / LD (IX+d),n (and IY).
func ldToIndexed(env optab.Env, prefix byte, disp, src string) (int, error) {
	d, err := dispByte(env, disp)
	if err != nil {
		return 0, err
	}
	if code, ok := optab.Lookup(strings.ToUpper(src)); ok {
		if code == optab.RegHL || code > optab.RegA {
			return illOpe(env, "illegal indexed LD source "+src)
		}
		env.Emit(prefix, 0x70|code, d)
		return 3, nil
	}
	n, err := evalByte(env, src)
	if err != nil {
		return 0, err
	}
	env.Emit(prefix, 0x36, d, n)
	return 4, nil
}

// ldFromIndexed handles LD r,(IX+d) (and IY).
func ldFromIndexed(env optab.Env, prefix byte, disp, dst string) (int, error) {
	d, err := dispByte(env, disp)
	if err != nil {
		return 0, err
	}
	code, ok := optab.Lookup(strings.ToUpper(dst))
	if !ok || code == optab.RegHL || code > optab.RegA {
		return illOpe(env, "illegal indexed LD destination "+dst)
	}
	env.Emit(prefix, 0x46|(code<<3), d)
	return 3, nil
}
