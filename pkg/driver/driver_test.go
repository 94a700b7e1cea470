package driver

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chettrick/zz80asm/pkg/config"
	"github.com/chettrick/zz80asm/pkg/emit"
)

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func assemble(t *testing.T, opts config.Options) ([]byte, int) {
	t.Helper()
	dir := t.TempDir()
	objPath := filepath.Join(dir, "out.bin")
	objFile, err := os.Create(objPath)
	if err != nil {
		t.Fatal(err)
	}
	defer objFile.Close()

	ctx := New(opts, nil)
	errCount, err := ctx.Run(objFile, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	objFile.Sync()
	data, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatal(err)
	}
	return data, errCount
}

func TestHelloSequenceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "hello.asm", "  LD A,'A'\n  HALT\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x3E, 0x41, 0x76}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestForwardReferenceEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "fwd.asm", "  JP L1\n  NOP\nL1: HALT\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0xC3, 0x04, 0x00, 0x00, 0x76}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestConditionalExclusionEndToEndWithDefine(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "cond.asm", "  IFDEF X\n  DEFB 1\n  ELSE\n  DEFB 2\n  ENDIF\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw, Defines: []string{"X"}})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	if !bytes.Equal(data, []byte{1}) {
		t.Fatalf("got %X, want 01", data)
	}
}

func TestConditionalExclusionEndToEndWithoutDefine(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "cond.asm", "  IFDEF X\n  DEFB 1\n  ELSE\n  DEFB 2\n  ENDIF\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	if !bytes.Equal(data, []byte{2}) {
		t.Fatalf("got %X, want 02", data)
	}
}

func TestDEFBWithStringEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "defb.asm", "  DEFB 'AB',0,'C'\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x41, 0x42, 0x00, 0x43}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestDEFWLittleEndianEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "defw.asm", "  DEFW 1234H,0ABCDH\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x34, 0x12, 0xCD, 0xAB}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestRelativeJumpInRangeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "jr.asm", "  ORG 100H\n  JR 180H\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x18, 0x7E}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestRelativeJumpOutOfRangeEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "jr.asm", "  ORG 100H\n  JR 200H\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 1 {
		t.Fatalf("errCount = %d, want exactly 1 for one out-of-range JR", errCount)
	}
	// The line still occupies two bytes, displacement zeroed.
	want := []byte{0x18, 0x00}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestHelloSequenceIntelHex(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "hello.asm", "  ORG 100H\n  LD A,'A'\n  HALT\n  END\n")
	objPath := filepath.Join(dir, "out.hex")
	objFile, err := os.Create(objPath)
	if err != nil {
		t.Fatal(err)
	}
	defer objFile.Close()

	ctx := New(config.Options{Sources: []string{src}, Format: emit.HEX}, nil)
	errCount, err := ctx.Run(objFile, nil)
	if err != nil || errCount != 0 {
		t.Fatalf("Run = %d errors, %v", errCount, err)
	}
	if ctx.PC() != 0x0103 {
		t.Fatalf("PC after assembly = %04X, want 0103", ctx.PC())
	}

	data, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d HEX lines, want 2: %q", len(lines), string(data))
	}
	if lines[0] != ":030100003E417607" {
		t.Fatalf("data record = %q, want :030100003E417607", lines[0])
	}
	if lines[1] != ":00000001FF" {
		t.Fatalf("terminator = %q, want :00000001FF", lines[1])
	}
}

func TestForwardRelativeJump(t *testing.T) {
	// A forward JR must not be range-flagged in pass 1 (the target reads
	// as 0 there) and must still occupy two bytes in both passes.
	dir := t.TempDir()
	src := writeSource(t, dir, "fwd.asm", "  JR L1\n  NOP\nL1: HALT\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x18, 0x01, 0x00, 0x76}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestDEFSFillsAndAdvancesPC(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "defs.asm", "  DEFB 1\n  DEFS 3\n  DEFB 2\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x01, 0xFF, 0xFF, 0xFF, 0x02}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestLaterORGFillsGap(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "org.asm", "  ORG 100H\n  DEFB 1\n  ORG 104H\n  DEFB 2\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x01, 0xFF, 0xFF, 0xFF, 0x02}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestORGBackwardRaisesMemOvr(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "back.asm", "  ORG 100H\n  DEFB 1\n  ORG 0\n  END\n")
	_, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount == 0 {
		t.Fatal("expected E_MEMOVR for a backward ORG")
	}
}

func TestIncludeDirective(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "inc.asm", "  LD A,1\n  HALT\n  END\n")
	// The operand is upper-cased outside quotes, so the lower-case file
	// name is quoted to keep its case.
	main := writeSource(t, dir, "main.asm", "  INCLUDE 'inc.asm'\n")
	data, errCount := assemble(t, config.Options{Sources: []string{main}, Format: emit.Raw})
	if errCount != 0 {
		t.Fatalf("errCount = %d, want 0", errCount)
	}
	want := []byte{0x3E, 0x01, 0x76}
	if !bytes.Equal(data, want) {
		t.Fatalf("got %X, want %X", data, want)
	}
}

func TestIllegalOpcodeAbortsBeforeObjectEmission(t *testing.T) {
	// A pass-1 error count above zero stops assembly before pass 2 ever
	// runs: no object bytes are produced at all, even for
	// the lines after the bad opcode.
	dir := t.TempDir()
	src := writeSource(t, dir, "bad.asm", "  BOGUS 1,2\n  HALT\n  END\n")
	data, errCount := assemble(t, config.Options{Sources: []string{src}, Format: emit.Raw})
	if errCount == 0 {
		t.Fatal("expected E_ILLOPC to be counted")
	}
	if len(data) != 0 {
		t.Fatalf("expected no object bytes after a pass-1 error, got %X", data)
	}
}
