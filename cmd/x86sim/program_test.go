package main

import (
	"strings"
	"testing"
)

func TestParseProgram(t *testing.T) {
	src := `; sum 1..10
XOR EAX, EAX
MOV ECX, 10
top:
ADD EAX, ECX  ; accumulate
DEC ECX
JNZ top
HLT
`
	instrs, labels, err := parseProgram(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parseProgram: %v", err)
	}
	if len(instrs) != 6 {
		t.Fatalf("got %d instructions, want 6", len(instrs))
	}
	if got := labels["top"]; got != 2 {
		t.Errorf("label top = %d, want 2", got)
	}
	if instrs[0].Mnemonic != "XOR" || len(instrs[0].Operands) != 2 {
		t.Errorf("instrs[0] = %+v", instrs[0])
	}
	if instrs[0].Operands[0] != "EAX" || instrs[0].Operands[1] != "EAX" {
		t.Errorf("instrs[0].Operands = %v", instrs[0].Operands)
	}
	if instrs[5].Mnemonic != "HLT" || len(instrs[5].Operands) != 0 {
		t.Errorf("instrs[5] = %+v", instrs[5])
	}
}

func TestParseProgramEmptyLabel(t *testing.T) {
	_, _, err := parseProgram(strings.NewReader(":\n"))
	if err == nil {
		t.Fatal("expected error for empty label")
	}
}
