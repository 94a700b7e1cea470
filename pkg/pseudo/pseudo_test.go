package pseudo

import (
	"testing"

	"github.com/chettrick/zz80asm/pkg/errs"
	"github.com/chettrick/zz80asm/pkg/eval"
	"github.com/chettrick/zz80asm/pkg/optab"
)

type condFrame struct {
	parentGen bool
	active    bool
}

// fakeEnv is a minimal optab.Env that also models the conditional stack,
// enough to exercise IFDEF/ELSE/ENDIF gating end to end.
type fakeEnv struct {
	pc      uint16
	pass    int
	sym     map[string]int32
	buf     []byte
	noFill  bool
	gencode bool
	stack   []condFrame
	label   string
	origin  uint16
	printed    []string
	title      string
	page       int
	ejected    bool
	listing    bool
	originSeen bool
}

func newFakeEnv(pc uint16) *fakeEnv {
	return &fakeEnv{pc: pc, pass: 1, sym: map[string]int32{}, gencode: true, listing: true}
}

func (e *fakeEnv) PC() uint16      { return e.pc }
func (e *fakeEnv) SetPC(pc uint16) { e.pc = pc }
func (e *fakeEnv) Pass() int       { return e.pass }
func (e *fakeEnv) GenCode() bool   { return e.gencode }
func (e *fakeEnv) NoFill() bool    { return e.noFill }
func (e *fakeEnv) Label() string   { return e.label }

func (e *fakeEnv) Eval(expr string) (int32, error) {
	return eval.Eval(expr, e.pc, eval.MapResolver(e.sym))
}
func (e *fakeEnv) Emit(b ...byte) { e.buf = append(e.buf, b...) }
func (e *fakeEnv) Fill(n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, 0xFF)
	}
}

func (e *fakeEnv) Errorf(code errs.Code, detail string) {}

func (e *fakeEnv) SymbolDefined(name string) bool { _, ok := e.sym[name]; return ok }
func (e *fakeEnv) SetOrigin(addr uint16) {
	if !e.originSeen {
		e.origin = addr
		e.originSeen = true
	}
}

func (e *fakeEnv) DefineLabelHere(name string) bool {
	if e.SymbolDefined(name) {
		return false
	}
	e.sym[name] = int32(e.pc)
	return true
}
func (e *fakeEnv) DefineSymbol(name string, value int32, redefinable bool) bool {
	if !redefinable && e.SymbolDefined(name) {
		return false
	}
	e.sym[name] = value
	return true
}

func (e *fakeEnv) PushConditional(active bool) {
	e.stack = append(e.stack, condFrame{parentGen: e.gencode, active: active})
	e.gencode = e.gencode && active
}
func (e *fakeEnv) SetElseActive() {
	if len(e.stack) == 0 {
		return
	}
	top := &e.stack[len(e.stack)-1]
	top.active = !top.active
	e.gencode = top.parentGen && top.active
}
func (e *fakeEnv) PopConditional() error {
	if len(e.stack) == 0 {
		return errs.New(errs.EMisIff, "ENDIF without IF")
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	e.gencode = top.parentGen
	return nil
}

func (e *fakeEnv) Include(filename string) error { return nil }

func (e *fakeEnv) SetListingTitle(title string) { e.title = title }
func (e *fakeEnv) SetPage(n int)                { e.page = n }
func (e *fakeEnv) Eject()                       { e.ejected = true }
func (e *fakeEnv) SetListingEnabled(on bool)    { e.listing = on }
func (e *fakeEnv) Println(s string)             { e.printed = append(e.printed, s) }

func TestDEFBWithString(t *testing.T) {
	env := newFakeEnv(0)
	n, err := encodeDEFB(env, "'AB',0,'C'")
	if err != nil {
		t.Fatalf("DEFB error: %v", err)
	}
	want := []byte{0x41, 0x42, 0x00, 0x43}
	if n != len(want) || string(env.buf) != string(want) {
		t.Fatalf("DEFB 'AB',0,'C' = %d bytes %X, want %X", n, env.buf, want)
	}
}

func TestDEFWLittleEndian(t *testing.T) {
	env := newFakeEnv(0)
	n, err := encodeDEFW(env, "1234H,0ABCDH")
	if err != nil {
		t.Fatalf("DEFW error: %v", err)
	}
	want := []byte{0x34, 0x12, 0xCD, 0xAB}
	if n != len(want) || string(env.buf) != string(want) {
		t.Fatalf("DEFW = %d bytes %X, want %X", n, env.buf, want)
	}
}

func TestDEFMMissingQuoteIsMisHyp(t *testing.T) {
	env := newFakeEnv(0)
	_, err := encodeDEFM(env, "AB")
	ae, ok := err.(*errs.AssemblyError)
	if !ok || ae.Code != errs.EMisHyp {
		t.Fatalf("DEFM without quotes err = %v, want E_MISHYP", err)
	}
}

func TestConditionalExclusion(t *testing.T) {
	// IFDEF X / DEFB 1 / ELSE / DEFB 2 / ENDIF, with X predefined.
	env := newFakeEnv(0)
	env.sym["X"] = 0
	if _, err := encodeIFDEF(false)(env, "X"); err != nil {
		t.Fatal(err)
	}
	if !env.GenCode() {
		t.Fatal("gencode should be active under IFDEF X with X defined")
	}
	if _, err := encodeDEFB(env, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeELSE(env, ""); err != nil {
		t.Fatal(err)
	}
	if env.GenCode() {
		t.Fatal("gencode should be inactive in the ELSE branch")
	}
	if err := encodeDEFBIfActive(env, "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeENDIF(env, ""); err != nil {
		t.Fatal(err)
	}
	want := []byte{1}
	if string(env.buf) != string(want) {
		t.Fatalf("buf = %X, want %X", env.buf, want)
	}
}

// encodeDEFBIfActive mimics the driver's gencode gate: pseudo-ops don't
// check GenCode themselves, the driver decides whether to dispatch them.
func encodeDEFBIfActive(env *fakeEnv, operand string) error {
	if !env.GenCode() {
		return nil
	}
	_, err := encodeDEFB(env, operand)
	return err
}

func TestConditionalExclusionWithoutDefine(t *testing.T) {
	env := newFakeEnv(0)
	if _, err := encodeIFDEF(false)(env, "X"); err != nil {
		t.Fatal(err)
	}
	if env.GenCode() {
		t.Fatal("gencode should be inactive under IFDEF X without X defined")
	}
	if err := encodeDEFBIfActive(env, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeELSE(env, ""); err != nil {
		t.Fatal(err)
	}
	if !env.GenCode() {
		t.Fatal("gencode should be active in ELSE when the IF branch was false")
	}
	if err := encodeDEFBIfActive(env, "2"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeENDIF(env, ""); err != nil {
		t.Fatal(err)
	}
	want := []byte{2}
	if string(env.buf) != string(want) {
		t.Fatalf("buf = %X, want %X", env.buf, want)
	}
}

// TestIFCMPSkipsEvaluationInFalseBranch guards the spec rule that a
// condition is only evaluated inside an active branch: an IFEQ over
// undefined symbols must not raise E_UNDSYM when its enclosing IFDEF was
// false, and its frame must still balance with ENDIF.
func TestIFCMPSkipsEvaluationInFalseBranch(t *testing.T) {
	env := newFakeEnv(0)
	if _, err := encodeIFDEF(false)(env, "X"); err != nil {
		t.Fatal(err)
	}
	if env.GenCode() {
		t.Fatal("gencode should be false under IFDEF X with X undefined")
	}
	if _, err := encodeIFCMP(true)(env, "NOSUCH1,NOSUCH2"); err != nil {
		t.Fatalf("IFEQ in a false branch must not evaluate, got %v", err)
	}
	if _, err := encodeENDIF(env, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeENDIF(env, ""); err != nil {
		t.Fatal(err)
	}
	if !env.GenCode() {
		t.Fatal("gencode should be restored after both ENDIFs")
	}
}

func TestORGAdvancesAndFills(t *testing.T) {
	env := newFakeEnv(0)
	n, err := encodeORG(env, "4")
	if err != nil {
		t.Fatalf("ORG error: %v", err)
	}
	if n != 4 || env.pc != 4 {
		t.Fatalf("ORG 4 from pc=0: n=%d pc=%d, want 4,4", n, env.pc)
	}
	if len(env.buf) != 4 {
		t.Fatalf("ORG should fill 4 bytes, got %d", len(env.buf))
	}
}

func TestORGBackwardIsMemOvr(t *testing.T) {
	env := newFakeEnv(10)
	_, err := encodeORG(env, "4")
	ae, ok := err.(*errs.AssemblyError)
	if !ok || ae.Code != errs.EMemOvr {
		t.Fatalf("ORG backward err = %v, want E_MEMOVR", err)
	}
}

func TestEQUDefinesLabel(t *testing.T) {
	env := newFakeEnv(0)
	env.label = "FOO"
	if _, err := encodeEQU(env, "42"); err != nil {
		t.Fatal(err)
	}
	if v := env.sym["FOO"]; v != 42 {
		t.Fatalf("FOO = %d, want 42", v)
	}
	if _, err := encodeEQU(env, "43"); err == nil {
		t.Fatal("redefining an EQU label should fail")
	}
}

// TestEQUNotReEvaluatedInPass2 guards against a regression where pass 2
// re-ran EQU's definition and spuriously raised E_MULSYM against the
// symbol EQU itself defined in pass 1: EQU must not be evaluated in
// pass 2.
func TestEQUNotReEvaluatedInPass2(t *testing.T) {
	env := newFakeEnv(0)
	env.label = "FOO"
	if _, err := encodeEQU(env, "42"); err != nil {
		t.Fatal(err)
	}
	env.pass = 2
	if _, err := encodeEQU(env, "42"); err != nil {
		t.Fatalf("pass 2 EQU should be a no-op, got err: %v", err)
	}
	if v := env.sym["FOO"]; v != 42 {
		t.Fatalf("FOO = %d, want 42 (unchanged by pass 2)", v)
	}
}

func TestDEFLRedefinesSilently(t *testing.T) {
	env := newFakeEnv(0)
	env.label = "FOO"
	if _, err := encodeDEFL(env, "1"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeDEFL(env, "2"); err != nil {
		t.Fatal(err)
	}
	if v := env.sym["FOO"]; v != 2 {
		t.Fatalf("FOO = %d, want 2", v)
	}
}

func TestEntriesHasEveryDirective(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range Entries() {
		seen[e.Mnemonic] = true
	}
	for _, want := range []string{
		"ORG", "EQU", "DEFL", "DEFB", "DEFM", "DEFW", "DEFS", "INCLUDE",
		"IFDEF", "IFNDEF", "IFEQ", "IFNEQ", "ELSE", "ENDIF",
		"TITLE", "PAGE", "EJECT", "LIST", "NOLIST", "PRINT", "EXTRN", "PUBLIC",
	} {
		if !seen[want] {
			t.Errorf("Entries() missing %s", want)
		}
	}
}

var _ optab.Env = (*fakeEnv)(nil)
