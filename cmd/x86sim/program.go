package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/intuitionamiga/x86sim/engine"
)

// parseProgram reads a minimal line-oriented assembly listing:
//
//	; full-line or trailing comment
//	label:
//	MNEMONIC
//	MNEMONIC op1, op2
//
// This is the tool's own stand-in for the lexer/parser spec.md treats
// as an external collaborator — just enough to drive the engine from
// a text file on the command line.
func parseProgram(r io.Reader) ([]engine.InstructionRecord, map[string]int, error) {
	var instrs []engine.InstructionRecord
	labels := map[string]int{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") {
			name := strings.TrimSuffix(line, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				return nil, nil, fmt.Errorf("line %d: empty label", lineNo)
			}
			labels[name] = len(instrs)
			continue
		}

		mnemonic, operands := splitInstruction(line)
		instrs = append(instrs, engine.InstructionRecord{
			Line:     lineNo,
			Mnemonic: strings.ToUpper(mnemonic),
			Operands: operands,
			Raw:      line,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading program: %w", err)
	}
	return instrs, labels, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		return line[:i]
	}
	return line
}

func splitInstruction(line string) (mnemonic string, operands []string) {
	fields := strings.SplitN(line, " ", 2)
	mnemonic = fields[0]
	if len(fields) == 1 {
		return mnemonic, nil
	}
	for _, op := range strings.Split(fields[1], ",") {
		operands = append(operands, strings.TrimSpace(op))
	}
	return mnemonic, operands
}
