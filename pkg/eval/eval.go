// Package eval implements the assembler's expression evaluator: a
// recursive, left-to-right, right-associative fold over literals, symbols,
// and operators, with deliberately NO operator precedence. This is
// load-bearing behavior, not a bug: 1+2*3 folds as 1+(2*3)=7,
// and 2*3+1 folds as 2*(3+1)=8. Do not "fix" this to standard precedence.
package eval

import (
	"strconv"
	"strings"

	"github.com/chettrick/zz80asm/pkg/errs"
)

// Resolver looks up a named symbol's value. pkg/symtab.Table satisfies
// this, as does a plain map for unit tests.
type Resolver interface {
	Get(name string) (int32, bool)
}

type mapResolver map[string]int32

func (m mapResolver) Get(name string) (int32, bool) {
	v, ok := m[strings.ToUpper(name)]
	return v, ok
}

// MapResolver adapts a plain map to Resolver, for tests and callers that
// don't need a full symbol table.
func MapResolver(m map[string]int32) Resolver {
	return mapResolver(m)
}

type evaluator struct {
	pc       uint16
	sym      Resolver
	firstErr error
}

func (e *evaluator) note(err error) {
	if e.firstErr == nil {
		e.firstErr = err
	}
}

// Eval evaluates expr, resolving symbols against sym and "$" against pc.
// It always returns a usable int32 (0 for any failed sub-term) alongside
// the first error encountered, if any; callers continue assembling with
// the zero value.
func Eval(expr string, pc uint16, sym Resolver) (int32, error) {
	e := &evaluator{pc: pc, sym: sym}
	v, _, hard := e.expr(expr)
	if hard != nil {
		return 0, hard
	}
	return v, e.firstErr
}

// expr parses one right-associative fold starting at s: a term, optionally
// followed by an operator and a recursively-evaluated remainder. A non-nil
// third return value is a hard parse error (unmatched paren/quote) that
// must stop evaluation of the whole expression immediately.
func (e *evaluator) expr(s string) (int32, string, error) {
	v, rest, herr := e.term(s)
	if herr != nil {
		return 0, rest, herr
	}
	rest = skipSpace(rest)
	if rest == "" {
		return v, rest, nil
	}
	op := rest[0]
	if !isOperator(op) {
		return v, rest, nil
	}
	rhs, rest2, herr2 := e.expr(rest[1:])
	if herr2 != nil {
		return 0, rest2, herr2
	}
	return combine(op, v, rhs), rest2, nil
}

func (e *evaluator) term(s string) (int32, string, error) {
	s = skipSpace(s)
	if s == "" {
		e.note(errs.New(errs.EMisOpe, "missing operand"))
		return 0, s, nil
	}
	switch c := s[0]; {
	case c == '~':
		v, rest, herr := e.term(s[1:])
		if herr != nil {
			return 0, rest, herr
		}
		return ^v, rest, nil
	case c == '(':
		inner, rest, ok := scanParen(s[1:])
		if !ok {
			return 0, "", errs.New(errs.EMisPar, "missing ')'")
		}
		v, _, herr := e.expr(inner)
		if herr != nil {
			return 0, rest, herr
		}
		return v, rest, nil
	case c == '\'':
		return e.charLiteral(s[1:])
	case c == '$' && !isIdentRune(peek(s, 1)):
		return int32(e.pc), s[1:], nil
	case c >= '0' && c <= '9':
		return e.number(s)
	case isIdentStart(c):
		return e.symbol(s)
	default:
		e.note(errs.New(errs.EMisOpe, "unexpected character '"+string(c)+"'"))
		return 0, s[1:], nil
	}
}

func peek(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// charLiteral evaluates a 'string' literal: the value is built by
// left-shift-by-8 accumulation of each character, so 'A' = 0x41 and
// 'AB' = 0x4142.
func (e *evaluator) charLiteral(s string) (int32, string, error) {
	i := 0
	var v int32
	for i < len(s) && s[i] != '\'' {
		v = (v << 8) | int32(s[i])
		i++
	}
	if i >= len(s) {
		return 0, "", errs.New(errs.EMisHyp, "unterminated '")
	}
	return v, s[i+1:], nil
}

// number parses a decimal/hex/octal/binary literal. Decimal is the
// default; a trailing H/O/B suffix selects hex/octal/binary. A hex literal
// must begin with a digit (hence "0FFH", never "FFH").
//
// The whole alnum word is scanned first and the base is picked by its
// last character: scanning only hex-digit characters first would
// misclassify binary literals, since 'B' is itself a hex digit and would
// be consumed into the digit run before ever being seen as a suffix.
func (e *evaluator) number(s string) (int32, string, error) {
	i := 0
	for i < len(s) && isAlnum(s[i]) {
		i++
	}
	word := s[:i]
	rest := s[i:]

	switch word[len(word)-1] {
	case 'H', 'h':
		digits := word[:len(word)-1]
		v, err := strconv.ParseInt(digits, 16, 64)
		if err != nil {
			e.note(errs.New(errs.EValOut, "malformed hex literal "+word))
			return 0, rest, nil
		}
		return int32(v), rest, nil
	case 'O', 'o':
		digits := word[:len(word)-1]
		v, err := strconv.ParseInt(digits, 8, 64)
		if err != nil {
			e.note(errs.New(errs.EValOut, "malformed octal literal "+word))
			return 0, rest, nil
		}
		return int32(v), rest, nil
	case 'B', 'b':
		digits := word[:len(word)-1]
		v, err := strconv.ParseInt(digits, 2, 64)
		if err != nil {
			e.note(errs.New(errs.EValOut, "malformed binary literal "+word))
			return 0, rest, nil
		}
		return int32(v), rest, nil
	}

	j := 0
	for j < len(word) && word[j] >= '0' && word[j] <= '9' {
		j++
	}
	dec := word[:j]
	leftover := word[j:] + rest
	if dec == "" {
		return 0, leftover, nil
	}
	v, _ := strconv.ParseInt(dec, 10, 64)
	return int32(v), leftover, nil
}

// symbol resolves an identifier against the symbol table. Undefined
// symbols raise E_UNDSYM and contribute 0, without stopping evaluation.
func (e *evaluator) symbol(s string) (int32, string, error) {
	i := 0
	for i < len(s) && isIdentRune(s[i]) {
		i++
	}
	name := s[:i]
	rest := s[i:]
	if v, ok := e.sym.Get(name); ok {
		return v, rest, nil
	}
	e.note(errs.New(errs.EUndSym, name))
	return 0, rest, nil
}

// scanParen scans s (the text just after an opening '(') for the matching
// ')', skipping over the contents of '...' string literals so a paren
// character inside a quoted string doesn't confuse depth tracking.
func scanParen(s string) (inner, rest string, ok bool) {
	depth := 1
	inQuote := false
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
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

func combine(op byte, lhs, rhs int32) int32 {
	switch op {
	case '+':
		return lhs + rhs
	case '-':
		return lhs - rhs
	case '*':
		return lhs * rhs
	case '/':
		if rhs == 0 {
			return 0
		}
		return lhs / rhs
	case '%':
		if rhs == 0 {
			return 0
		}
		return lhs % rhs
	case '<':
		return lhs << uint(rhs&0x1f)
	case '>':
		return lhs >> uint(rhs&0x1f)
	case '|':
		return lhs | rhs
	case '&':
		return lhs & rhs
	case '^':
		return lhs ^ rhs
	}
	return lhs
}

func isOperator(c byte) bool {
	switch c {
	case '+', '-', '*', '/', '%', '<', '>', '|', '&', '^':
		return true
	}
	return false
}

func isAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isIdentStart(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '_' || c == '?' || c == '.'
}

func isIdentRune(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func skipSpace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[i:]
}

// CheckImm8 implements chk_v1: an 8-bit immediate allowing both signed and
// unsigned representations, -255..255. Out of range raises E_VALOUT and
// returns 0.
func CheckImm8(v int32) (int32, error) {
	if v < -255 || v > 255 {
		return 0, errs.New(errs.EValOut, "immediate out of range")
	}
	return v, nil
}

// CheckRel8 implements chk_v2: a signed 8-bit displacement, -127..127.
func CheckRel8(v int32) (int32, error) {
	if v < -127 || v > 127 {
		return 0, errs.New(errs.EValOut, "displacement out of range")
	}
	return v, nil
}
