// Package driver runs the two-pass assembly loop:
// tokenizing each source line into label/opcode/operand fields,
// dispatching through the merged opcode table, and threading program
// counter, symbol table, conditional/include stacks, object emission,
// and listing output through one Context. Context implements
// optab.Env, the seam pkg/encode and pkg/pseudo depend on instead of
// this package directly.
package driver

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/chettrick/zz80asm/pkg/config"
	"github.com/chettrick/zz80asm/pkg/emit"
	"github.com/chettrick/zz80asm/pkg/encode"
	"github.com/chettrick/zz80asm/pkg/errs"
	"github.com/chettrick/zz80asm/pkg/eval"
	"github.com/chettrick/zz80asm/pkg/listing"
	"github.com/chettrick/zz80asm/pkg/optab"
	"github.com/chettrick/zz80asm/pkg/pseudo"
	"github.com/chettrick/zz80asm/pkg/symtab"
)

// MaxIncludeDepth and MaxCondDepth bound the include and conditional
// nesting stacks.
const (
	MaxIncludeDepth = 5
	MaxCondDepth    = 5
)

type condFrame struct {
	parentGen bool
	active    bool
}

// Context owns every piece of mutable assembler state for one run:
// program counter, pass number, the symbol table, the conditional and
// include stacks, and (in pass 2) the object emitter and listing
// writer. It implements optab.Env.
type Context struct {
	table *optab.Table
	sym   *symtab.Table
	log   *slog.Logger

	opts config.Options

	pass     int
	pc       uint16
	errCount int

	origin    uint16
	originSet bool
	noFill    bool

	condStack    []condFrame
	gencode      bool
	includeDepth int

	curLabel string
	curFile  string
	fileLine int
	stmtLine int

	lineBytes []byte

	obj  *emit.Writer
	list *listing.Writer
}

// New builds a Context for opts, ready to run both passes.
func New(opts config.Options, log *slog.Logger) *Context {
	return &Context{
		table:   optab.BuildTable(encode.Entries(), pseudo.Entries()),
		sym:     symtab.New(),
		log:     log,
		opts:    opts,
		noFill:  opts.NoFill,
		gencode: true,
	}
}

// Run executes pass 1 then, if it succeeded, pass 2, writing the object
// file to objOut and (if listOut is non-nil) the listing to listOut. It
// returns the total recoverable error count; a non-nil error is fatal.
func (c *Context) Run(objOut *os.File, listOut *os.File) (int, error) {
	for _, name := range c.opts.Defines {
		c.sym.PutNew(symtab.Normalize(name), 0)
	}

	if err := c.runPass(1); err != nil {
		return c.errCount, err
	}
	if c.errCount > 0 {
		return c.errCount, nil
	}

	c.obj = emit.NewWriter(objOut, c.opts.Format, c.origin)
	if listOut != nil {
		c.list = listing.NewWriter(listOut)
	}

	if err := c.runPass(2); err != nil {
		return c.errCount, err
	}
	if err := c.obj.Close(); err != nil {
		return c.errCount, err
	}
	if listOut != nil && c.opts.SortSymbols != config.SortNone {
		listing.WriteSymbolTable(listOut, c.sym.CopyToArray(), c.opts.SortSymbols == config.SortByValue)
	}
	return c.errCount, nil
}

// runPass resets per-pass state and processes every source file. Pass 2
// starts PC at the recorded origin rather than 0: the object emitter's
// address cursor begins there too, so the first ORG of pass 2 finds PC
// already in place and emits no fill; only later ORGs fill forward.
func (c *Context) runPass(pass int) error {
	c.pass = pass
	c.pc = 0
	if pass == 2 {
		c.pc = c.origin
	}
	c.stmtLine = 0
	c.condStack = nil
	c.gencode = true
	c.includeDepth = 0

	if c.log != nil {
		c.log.Info("starting pass", "pass", pass)
	}
	for _, src := range c.opts.Sources {
		if c.log != nil {
			c.log.Info("assembling", "file", src)
		}
		if err := c.processFile(src); err != nil {
			return err
		}
	}
	return nil
}

// Include opens filename relative to the including file's directory and
// processes it inline, implementing the INCLUDE directive. It is also
// the pkg/encode/pkg/pseudo-facing entry point via optab.Env.
func (c *Context) Include(filename string) error {
	if c.includeDepth >= MaxIncludeDepth {
		c.Errorf(errs.EIncNest, filename)
		return nil
	}
	dir := filepath.Dir(c.curFile)
	path := filename
	if dir != "" && dir != "." && !filepath.IsAbs(filename) {
		path = filepath.Join(dir, filename)
	}
	c.includeDepth++
	defer func() { c.includeDepth-- }()
	return c.processFile(path)
}

func (c *Context) processFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return errs.Fatal(errs.FFOpen, filename)
	}
	defer f.Close()

	prevFile, prevLine := c.curFile, c.fileLine
	c.curFile = filename
	c.fileLine = 0
	defer func() {
		c.curFile, c.fileLine = prevFile, prevLine
	}()

	condDepthOnEntry := len(c.condStack)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		c.fileLine++
		c.stmtLine++
		if c.processLine(scanner.Text()) {
			break
		}
	}
	if len(c.condStack) > condDepthOnEntry {
		c.Errorf(errs.EMisEif, filename)
		c.condStack = c.condStack[:condDepthOnEntry]
	}
	return scanner.Err()
}

// processLine tokenizes and dispatches one source line, returning true
// if the file should stop (an END directive was seen).
func (c *Context) processLine(raw string) bool {
	label, opcode, operand, source := tokenizeLine(raw)
	c.curLabel = label
	c.lineBytes = nil

	if opcode == "END" {
		return true
	}

	if opcode == "" {
		if label != "" && c.gencode {
			c.defineLabelHere(label)
		}
		c.listLine(listing.NoAddrData, c.pc, source)
		return false
	}

	if !c.gencode && !isConditionalDirective(opcode) {
		return false
	}

	entry, ok := c.table.Lookup(opcode)
	if !ok {
		c.Errorf(errs.EIllOpc, opcode)
		c.listLine(listing.NoAddrData, c.pc, source)
		return false
	}

	isLabelBinding := opcode != "EQU" && opcode != "DEFL"
	if label != "" && isLabelBinding && c.gencode {
		c.defineLabelHere(label)
	}

	pcBefore := c.pc
	n, err := entry.Encode(c, operand)
	if err != nil {
		if ae, ok := err.(*errs.AssemblyError); ok {
			c.record(ae)
		}
	}
	if opcode != "ORG" {
		c.pc += uint16(n)
	}

	switch opcode {
	case "EQU", "DEFL":
		v, _ := c.sym.Get(label)
		c.listLine(listing.NoData, uint16(v), source)
	default:
		c.list2(listing.ShowAll, pcBefore, c.lineBytes, source)
	}
	return false
}

func isConditionalDirective(opcode string) bool {
	switch opcode {
	case "IFDEF", "IFNDEF", "IFEQ", "IFNEQ", "ELSE", "ENDIF":
		return true
	}
	return false
}

func (c *Context) defineLabelHere(name string) {
	name = symtab.Normalize(name)
	if c.pass == 1 {
		if !c.sym.PutNew(name, int32(c.pc)) {
			c.Errorf(errs.EMulSym, name)
		}
		return
	}
	c.sym.Put(name, int32(c.pc))
}

func (c *Context) record(ae *errs.AssemblyError) {
	ae.File = c.curFile
	ae.Line = c.fileLine
	c.errCount++
	if c.pass == 1 {
		if c.log != nil {
			c.log.Warn(ae.Error())
		}
		return
	}
	if c.list != nil {
		c.list.SetPendingError(ae.Error())
		return
	}
	if c.log != nil {
		c.log.Warn(ae.Error())
	}
}

// listLine writes a listing line with no associated object bytes (blank
// lines, comments, unknown opcodes, EQU/DEFL).
func (c *Context) listLine(suppress listing.Suppress, addr uint16, source string) {
	if c.pass != 2 || c.list == nil {
		return
	}
	c.list.Line(suppress, addr, nil, c.fileLine, c.stmtLine, source)
}

// list2 writes a listing line carrying the bytes the current line's
// encoder emitted.
func (c *Context) list2(suppress listing.Suppress, addr uint16, data []byte, source string) {
	if c.pass != 2 || c.list == nil {
		return
	}
	c.list.Line(suppress, addr, data, c.fileLine, c.stmtLine, source)
}

// optab.Env implementation.

func (c *Context) PC() uint16      { return c.pc }
func (c *Context) SetPC(pc uint16) { c.pc = pc }
func (c *Context) Pass() int       { return c.pass }
func (c *Context) GenCode() bool   { return c.gencode }
func (c *Context) NoFill() bool    { return c.noFill }
func (c *Context) Label() string   { return c.curLabel }

// Eval evaluates expr against the live symbol table. An undefined
// symbol is a pass-2-only error: a forward reference has no value yet
// in pass 1, which needs the zero placeholder to keep PC advancement
// consistent across both passes but must not count the error or it
// would abort assembly before the symbol is ever defined.
func (c *Context) Eval(expr string) (int32, error) {
	v, err := eval.Eval(expr, c.pc, c.sym)
	if c.pass == 1 {
		if ae, ok := err.(*errs.AssemblyError); ok && ae.Code == errs.EUndSym {
			return v, nil
		}
	}
	return v, err
}

func (c *Context) Emit(b ...byte) {
	c.lineBytes = append(c.lineBytes, b...)
	if c.pass == 2 && c.obj != nil {
		c.obj.WriteBytes(b)
	}
}

func (c *Context) Fill(n int) {
	if c.pass == 2 && c.obj != nil {
		c.obj.Fill(n)
	}
}

func (c *Context) Errorf(code errs.Code, detail string) {
	c.record(errs.New(code, detail))
}

func (c *Context) SymbolDefined(name string) bool {
	_, ok := c.sym.Get(name)
	return ok
}

func (c *Context) SetOrigin(addr uint16) {
	if !c.originSet {
		c.origin = addr
		c.originSet = true
	}
}

func (c *Context) DefineLabelHere(name string) bool {
	if c.pass == 1 {
		return c.sym.PutNew(symtab.Normalize(name), int32(c.pc))
	}
	c.sym.Put(symtab.Normalize(name), int32(c.pc))
	return true
}

func (c *Context) DefineSymbol(name string, value int32, redefinable bool) bool {
	name = symtab.Normalize(name)
	if redefinable {
		c.sym.Put(name, value)
		return true
	}
	return c.sym.PutNew(name, value)
}

func (c *Context) PushConditional(active bool) {
	if len(c.condStack) >= MaxCondDepth {
		c.Errorf(errs.EIfNest, "")
		return
	}
	c.condStack = append(c.condStack, condFrame{parentGen: c.gencode, active: active})
	c.gencode = c.gencode && active
}

func (c *Context) SetElseActive() {
	if len(c.condStack) == 0 {
		c.Errorf(errs.EMisIff, "ELSE without IF")
		return
	}
	top := &c.condStack[len(c.condStack)-1]
	top.active = !top.active
	c.gencode = top.parentGen && top.active
}

func (c *Context) PopConditional() error {
	if len(c.condStack) == 0 {
		return errs.New(errs.EMisIff, "ENDIF without IF")
	}
	top := c.condStack[len(c.condStack)-1]
	c.condStack = c.condStack[:len(c.condStack)-1]
	c.gencode = top.parentGen
	return nil
}

func (c *Context) SetListingTitle(title string) {
	if c.list != nil {
		c.list.SetTitle(title)
	}
}

func (c *Context) SetPage(n int) {
	if c.list != nil {
		c.list.SetLinesPerPage(n)
	}
}

func (c *Context) Eject() {
	if c.list != nil {
		c.list.Eject()
	}
}

func (c *Context) SetListingEnabled(on bool) {
	if c.list != nil {
		c.list.SetEnabled(on)
	}
}

func (c *Context) Println(s string) {
	if c.opts.Verbose && c.log != nil {
		c.log.Info(s)
	}
}

var _ optab.Env = (*Context)(nil)
