package engine

import (
	"fmt"
	"strconv"
	"strings"
)

type operandKind int

const (
	opReg32 operandKind = iota
	opReg8
	opImm
	opMem
)

// Operand is the parsed form of one instruction operand (C7):
// register, immediate, or memory expression. Memory expressions are
// stored unresolved (base register index + displacement, or a bare
// absolute address) because the base register's value is only known
// at execution time.
type Operand struct {
	kind operandKind

	reg32 int
	r8    reg8
	imm   uint32

	memHasBase bool
	memBase    int
	memDisp    int32
	memAddr    uint32
}

// ParseOperand recognizes register names (32- and 8-bit), immediates
// (hex/bin/decimal/char-literal), and memory expressions
// [imm]/[reg]/[reg±disp], per spec.md 4.1.
func ParseOperand(tok string) (Operand, error) {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") && len(tok) >= 2 {
		return parseMemOperand(tok[1 : len(tok)-1])
	}
	if idx, ok := lookupReg32(tok); ok {
		return Operand{kind: opReg32, reg32: idx}, nil
	}
	if r8, ok := lookupReg8(tok); ok {
		return Operand{kind: opReg8, r8: r8}, nil
	}
	imm, err := parseImmediate(tok)
	if err != nil {
		return Operand{}, err
	}
	return Operand{kind: opImm, imm: imm}, nil
}

func parseMemOperand(inner string) (Operand, error) {
	inner = strings.TrimSpace(inner)

	splitAt := -1
	for i := 1; i < len(inner); i++ {
		if inner[i] == '+' || inner[i] == '-' {
			splitAt = i
			break
		}
	}

	if splitAt >= 0 {
		baseTok := strings.TrimSpace(inner[:splitAt])
		sign := inner[splitAt]
		dispTok := strings.TrimSpace(inner[splitAt+1:])
		disp, err := parseImmediate(dispTok)
		if err != nil {
			return Operand{}, err
		}
		if regIdx, ok := lookupReg32(baseTok); ok {
			d := int32(disp)
			if sign == '-' {
				d = -d
			}
			return Operand{kind: opMem, memHasBase: true, memBase: regIdx, memDisp: d}, nil
		}
		// base token not a register: the whole expression is a raw
		// constant address, base ± displacement, per spec.md 4.1.
		base, err := parseImmediate(baseTok)
		if err != nil {
			return Operand{}, err
		}
		addr := base + disp
		if sign == '-' {
			addr = base - disp
		}
		return Operand{kind: opMem, memAddr: addr}, nil
	}

	if regIdx, ok := lookupReg32(inner); ok {
		return Operand{kind: opMem, memHasBase: true, memBase: regIdx}, nil
	}
	imm, err := parseImmediate(inner)
	if err != nil {
		return Operand{}, err
	}
	return Operand{kind: opMem, memAddr: imm}, nil
}

// parseImmediate accepts 0x.. hex, 0b.. binary, signed decimal, and
// single-character literals 'X' resolving to their ASCII code.
func parseImmediate(tok string) (uint32, error) {
	tok = strings.TrimSpace(tok)
	if len(tok) >= 3 && tok[0] == '\'' && tok[len(tok)-1] == '\'' {
		return uint32(tok[1]), nil
	}
	if tok == "" {
		return 0, fmt.Errorf("%w: empty operand", ErrBadOperand)
	}

	neg := false
	s := tok
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	lower := strings.ToLower(s)
	var val uint64
	var err error
	switch {
	case strings.HasPrefix(lower, "0x"):
		val, err = strconv.ParseUint(s[2:], 16, 64)
	case strings.HasPrefix(lower, "0b"):
		val, err = strconv.ParseUint(s[2:], 2, 64)
	default:
		val, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadOperand, tok)
	}
	v := uint32(val)
	if neg {
		v = -v
	}
	return v, nil
}

// resolveAddress computes the effective address of a memory operand
// using the register file's current values.
func (op Operand) resolveAddress(regs *Registers) uint32 {
	if !op.memHasBase {
		return op.memAddr
	}
	return regs.Get(op.memBase) + uint32(op.memDisp)
}

// read evaluates an operand's value: a register's contents, an
// immediate, or a little-endian 32-bit memory word through the MMIO
// router.
func read(op Operand, regs *Registers, mmio *MMIORouter) (uint32, error) {
	switch op.kind {
	case opReg32:
		return regs.Get(op.reg32), nil
	case opReg8:
		return uint32(regs.Get8(op.r8)), nil
	case opImm:
		return op.imm, nil
	case opMem:
		return mmio.Read32(op.resolveAddress(regs)), nil
	default:
		return 0, ErrBadOperand
	}
}

// write stores a value into an operand's destination. An immediate
// destination (e.g. MOV 5, EAX) is not an error: the write is
// silently dropped.
func write(op Operand, regs *Registers, mmio *MMIORouter, v uint32) {
	switch op.kind {
	case opReg32:
		regs.Set(op.reg32, v)
	case opReg8:
		regs.Set8(op.r8, uint8(v))
	case opMem:
		mmio.Write32(op.resolveAddress(regs), v)
	}
}

// isMemory reports whether op is a memory expression, used by MOV's
// strict-mode memory-to-memory check.
func (op Operand) isMemory() bool { return op.kind == opMem }
