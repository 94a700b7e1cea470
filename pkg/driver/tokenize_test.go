package driver

import "testing"

func TestTokenizeLabelOpcodeOperand(t *testing.T) {
	label, opcode, operand, _ := tokenizeLine("START: LD A,5")
	if label != "START" || opcode != "LD" || operand != "A,5" {
		t.Fatalf("got %q %q %q", label, opcode, operand)
	}
}

func TestTokenizeNoLabelWhenIndented(t *testing.T) {
	label, opcode, operand, _ := tokenizeLine("    HALT")
	if label != "" || opcode != "HALT" || operand != "" {
		t.Fatalf("got %q %q %q", label, opcode, operand)
	}
}

func TestTokenizeStarIsFullLineComment(t *testing.T) {
	label, opcode, operand, _ := tokenizeLine("* this is a comment")
	if label != "" || opcode != "" || operand != "" {
		t.Fatalf("expected empty fields for a * comment, got %q %q %q", label, opcode, operand)
	}
}

func TestTokenizeSemicolonEndsOperand(t *testing.T) {
	_, opcode, operand, _ := tokenizeLine("  LD A,5 ; load five")
	if opcode != "LD" || operand != "A,5" {
		t.Fatalf("got %q %q", opcode, operand)
	}
}

func TestTokenizePreservesQuotedCaseAndStripsTrailingSpace(t *testing.T) {
	_, opcode, operand, _ := tokenizeLine("  DEFB 'AbC',0   ")
	if opcode != "DEFB" || operand != "'AbC',0" {
		t.Fatalf("got %q %q", opcode, operand)
	}
}

func TestTokenizeExAFAFPrimeIsNotAStringLiteral(t *testing.T) {
	_, opcode, operand, _ := tokenizeLine("  EX AF,AF'")
	if opcode != "EX" || operand != "AF,AF'" {
		t.Fatalf("got %q %q, want EX / AF,AF'", opcode, operand)
	}
}

func TestTokenizeLabelTruncatedToEight(t *testing.T) {
	label, _, _, _ := tokenizeLine("TOOLONGLABEL: NOP")
	if label != "TOOLONGL" {
		t.Fatalf("label = %q, want truncated to 8 chars TOOLONGL", label)
	}
}
