package engine

import "strings"

// opHandler implements one mnemonic's semantics (C9). It returns
// branched=true when it set EIP itself (JMP/CALL/RET-taken/HLT/IRET),
// which tells the control-flow driver not to auto-advance.
type opHandler func(e *Engine, rec InstructionRecord, ops []Operand) (branched bool, err error)

// opSpec pairs a handler with its required operand count. arity=-1
// means the handler validates its own arity (IMUL's 1/2/3-operand
// forms).
type opSpec struct {
	arity int
	fn    opHandler
}

// dispatchTable maps mnemonic to handler, built once as a package
// literal the way the teacher's initBaseOps/initExtendedOps build
// [256]func(*CPU_X86) tables — keyed here by mnemonic string instead
// of byte opcode, since this engine dispatches on a pre-parsed
// mnemonic, not a decoded instruction byte.
var dispatchTable = map[string]opSpec{
	"MOV":   {2, opMOV},
	"XCHG":  {2, opXCHG},
	"LEA":   {2, opLEA},
	"MOVZX": {2, opMOVZX},
	"MOVSX": {2, opMOVSX},

	"ADD": {2, opADD},
	"SUB": {2, opSUB},
	"CMP": {2, opCMP},
	"INC": {1, opINC},
	"DEC": {1, opDEC},
	"NEG": {1, opNEG},

	"AND":  {2, opAND},
	"OR":   {2, opOR},
	"XOR":  {2, opXOR},
	"NOT":  {1, opNOT},
	"TEST": {2, opTEST},

	"SHL": {2, opSHL},
	"SHR": {2, opSHR},
	"SAR": {2, opSAR},
	"ROL": {2, opROL},
	"ROR": {2, opROR},

	"MUL":  {1, opMUL},
	"IMUL": {-1, opIMUL},
	"DIV":  {1, opDIV},
	"IDIV": {1, opIDIV},

	"PUSH": {1, opPUSH},
	"POP":  {1, opPOP},

	"HLT": {0, opHLT},
	"NOP": {0, opNOP},
	"INT": {1, opINT},

	"IRET": {0, opIRET},
	"RET":  {0, opRET},
}

var conditionTable = map[string]func(flags uint32) bool{
	"JE":  func(f uint32) bool { return getFlag(f, FlagZF) },
	"JZ":  func(f uint32) bool { return getFlag(f, FlagZF) },
	"JNE": func(f uint32) bool { return !getFlag(f, FlagZF) },
	"JNZ": func(f uint32) bool { return !getFlag(f, FlagZF) },
	"JG":  func(f uint32) bool { return !getFlag(f, FlagZF) && getFlag(f, FlagSF) == getFlag(f, FlagOF) },
	"JGE": func(f uint32) bool { return getFlag(f, FlagSF) == getFlag(f, FlagOF) },
	"JL":  func(f uint32) bool { return getFlag(f, FlagSF) != getFlag(f, FlagOF) },
	"JLE": func(f uint32) bool { return getFlag(f, FlagZF) || getFlag(f, FlagSF) != getFlag(f, FlagOF) },
	"JS":  func(f uint32) bool { return getFlag(f, FlagSF) },
	"JNS": func(f uint32) bool { return !getFlag(f, FlagSF) },
	"JA":  func(f uint32) bool { return !getFlag(f, FlagCF) && !getFlag(f, FlagZF) },
	"JAE": func(f uint32) bool { return !getFlag(f, FlagCF) },
	"JB":  func(f uint32) bool { return getFlag(f, FlagCF) },
	"JBE": func(f uint32) bool { return getFlag(f, FlagCF) || getFlag(f, FlagZF) },
}

func isJumpMnemonic(m string) bool {
	if m == "JMP" || m == "CALL" {
		return true
	}
	_, ok := conditionTable[m]
	return ok
}

// dispatch looks up and runs rec's mnemonic. Unknown mnemonics and
// wrong-arity calls are silently ignored per spec.md's documented
// tolerance. Fatal errors come from operand parsing, label lookups,
// strict-mode memory-to-memory MOV, and LEA with a non-memory source;
// each is detected before any state mutation so a failed dispatch
// never leaves a half-applied write.
func (e *Engine) dispatch(rec InstructionRecord) (bool, error) {
	mnemonic := strings.ToUpper(rec.Mnemonic)

	if isJumpMnemonic(mnemonic) {
		return e.dispatchJump(mnemonic, rec)
	}

	spec, ok := dispatchTable[mnemonic]
	if !ok {
		return false, nil // UnknownMnemonic: swallowed
	}
	if spec.arity >= 0 && len(rec.Operands) != spec.arity {
		return false, nil // WrongArity: swallowed
	}

	ops := make([]Operand, len(rec.Operands))
	for i, tok := range rec.Operands {
		op, err := ParseOperand(tok)
		if err != nil {
			return false, ErrBadOperand
		}
		ops[i] = op
	}
	return spec.fn(e, rec, ops)
}

func (e *Engine) dispatchJump(mnemonic string, rec InstructionRecord) (bool, error) {
	if len(rec.Operands) != 1 {
		return false, nil // WrongArity: swallowed
	}

	if mnemonic == "JMP" {
		idx, ok := e.labels[rec.Operands[0]]
		if !ok {
			return false, ErrUnknownLabel
		}
		e.eip = idx
		return true, nil
	}

	if mnemonic == "CALL" {
		idx, ok := e.labels[rec.Operands[0]]
		if !ok {
			return false, ErrUnknownLabel
		}
		e.callStack = append(e.callStack, e.eip+1)
		e.eip = idx
		return true, nil
	}

	cond := conditionTable[mnemonic]
	if !cond(e.flags) {
		return false, nil
	}
	idx, ok := e.labels[rec.Operands[0]]
	if !ok {
		return false, ErrUnknownLabel
	}
	e.eip = idx
	return true, nil
}

func opMOV(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	if e.mode == ModeStrictX86 && dest.isMemory() && src.isMemory() {
		return false, ErrStrictMovMemToMem
	}
	v, _ := read(src, &e.regs, e.mmio)
	write(dest, &e.regs, e.mmio, v)
	return false, nil
}

func opXCHG(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	a, b := ops[0], ops[1]
	va, _ := read(a, &e.regs, e.mmio)
	vb, _ := read(b, &e.regs, e.mmio)
	write(a, &e.regs, e.mmio, vb)
	write(b, &e.regs, e.mmio, va)
	return false, nil
}

func opLEA(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	if !src.isMemory() {
		return false, ErrBadOperand
	}
	write(dest, &e.regs, e.mmio, src.resolveAddress(&e.regs))
	return false, nil
}

func movExtend(e *Engine, ops []Operand, signed bool) (bool, error) {
	dest, src := ops[0], ops[1]
	v, _ := read(src, &e.regs, e.mmio)
	b := uint8(v)
	var out uint32
	if signed {
		out = uint32(int32(int8(b)))
	} else {
		out = uint32(b)
	}
	write(dest, &e.regs, e.mmio, out)
	return false, nil
}

func opMOVZX(e *Engine, rec InstructionRecord, ops []Operand) (bool, error) {
	return movExtend(e, ops, false)
}

func opMOVSX(e *Engine, rec InstructionRecord, ops []Operand) (bool, error) {
	return movExtend(e, ops, true)
}

func opADD(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a + b
	write(dest, &e.regs, e.mmio, res)
	e.flags = arithFlags(e.flags, a, b, res, false)
	return false, nil
}

func opSUB(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a - b
	write(dest, &e.regs, e.mmio, res)
	e.flags = arithFlags(e.flags, a, b, res, true)
	return false, nil
}

func opCMP(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a - b
	e.flags = arithFlags(e.flags, a, b, res, true)
	return false, nil
}

func opINC(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest := ops[0]
	a, _ := read(dest, &e.regs, e.mmio)
	res := a + 1
	write(dest, &e.regs, e.mmio, res)
	e.flags = incDecFlags(e.flags, a, res, false)
	return false, nil
}

func opDEC(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest := ops[0]
	a, _ := read(dest, &e.regs, e.mmio)
	res := a - 1
	write(dest, &e.regs, e.mmio, res)
	e.flags = incDecFlags(e.flags, a, res, true)
	return false, nil
}

func opNEG(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest := ops[0]
	a, _ := read(dest, &e.regs, e.mmio)
	res := uint32(0) - a
	write(dest, &e.regs, e.mmio, res)
	e.flags = arithFlags(e.flags, 0, a, res, true)
	return false, nil
}

func opAND(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a & b
	write(dest, &e.regs, e.mmio, res)
	e.flags = logicFlags(e.flags, res)
	return false, nil
}

func opOR(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a | b
	write(dest, &e.regs, e.mmio, res)
	e.flags = logicFlags(e.flags, res)
	return false, nil
}

func opXOR(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	res := a ^ b
	write(dest, &e.regs, e.mmio, res)
	e.flags = logicFlags(e.flags, res)
	return false, nil
}

func opNOT(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest := ops[0]
	a, _ := read(dest, &e.regs, e.mmio)
	write(dest, &e.regs, e.mmio, ^a)
	return false, nil
}

func opTEST(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, src := ops[0], ops[1]
	a, _ := read(dest, &e.regs, e.mmio)
	b, _ := read(src, &e.regs, e.mmio)
	e.flags = logicFlags(e.flags, a&b)
	return false, nil
}

func shiftCount(e *Engine, countOp Operand) uint {
	v, _ := read(countOp, &e.regs, e.mmio)
	return uint(v & 0x1F)
}

func opSHL(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, countOp := ops[0], ops[1]
	operand, _ := read(dest, &e.regs, e.mmio)
	count := shiftCount(e, countOp)
	res := operand << count
	write(dest, &e.regs, e.mmio, res)
	e.flags = shiftFlags(e.flags, shiftSHL, operand, res, count)
	return false, nil
}

func opSHR(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, countOp := ops[0], ops[1]
	operand, _ := read(dest, &e.regs, e.mmio)
	count := shiftCount(e, countOp)
	res := operand >> count
	write(dest, &e.regs, e.mmio, res)
	e.flags = shiftFlags(e.flags, shiftSHR, operand, res, count)
	return false, nil
}

func opSAR(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, countOp := ops[0], ops[1]
	operand, _ := read(dest, &e.regs, e.mmio)
	count := shiftCount(e, countOp)
	res := uint32(int32(operand) >> count)
	write(dest, &e.regs, e.mmio, res)
	e.flags = shiftFlags(e.flags, shiftSAR, operand, res, count)
	return false, nil
}

func opROL(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, countOp := ops[0], ops[1]
	operand, _ := read(dest, &e.regs, e.mmio)
	count := shiftCount(e, countOp)
	res := operand
	if count > 0 {
		n := count % 32
		res = (operand << n) | (operand >> (32 - n))
	}
	write(dest, &e.regs, e.mmio, res)
	e.flags = rotateFlags(e.flags, rotateROL, res, count, e.mode == ModeEducational)
	return false, nil
}

func opROR(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	dest, countOp := ops[0], ops[1]
	operand, _ := read(dest, &e.regs, e.mmio)
	count := shiftCount(e, countOp)
	res := operand
	if count > 0 {
		n := count % 32
		res = (operand >> n) | (operand << (32 - n))
	}
	write(dest, &e.regs, e.mmio, res)
	e.flags = rotateFlags(e.flags, rotateROR, res, count, e.mode == ModeEducational)
	return false, nil
}

func opMUL(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	v, _ := read(ops[0], &e.regs, e.mmio)
	eax := e.regs.Get(RegEAX)
	product := uint64(eax) * uint64(v)
	low, high := uint32(product), uint32(product>>32)
	e.regs.Set(RegEAX, low)
	e.regs.Set(RegEDX, high)
	e.flags = mulFlags(e.flags, high != 0)
	return false, nil
}

func opIMUL(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	switch len(ops) {
	case 1:
		v, _ := read(ops[0], &e.regs, e.mmio)
		eax := e.regs.Get(RegEAX)
		product := int64(int32(eax)) * int64(int32(v))
		low, high := uint32(product), uint32(product>>32)
		e.regs.Set(RegEAX, low)
		e.regs.Set(RegEDX, high)
		expectedHigh := uint32(0)
		if low&0x80000000 != 0 {
			expectedHigh = 0xFFFFFFFF
		}
		e.flags = mulFlags(e.flags, high != expectedHigh)
		return false, nil
	case 2:
		dest, src := ops[0], ops[1]
		a, _ := read(dest, &e.regs, e.mmio)
		b, _ := read(src, &e.regs, e.mmio)
		product := int64(int32(a)) * int64(int32(b))
		res := uint32(product)
		overflow := int64(int32(res)) != product
		write(dest, &e.regs, e.mmio, res)
		e.flags = imulFlags(e.flags, overflow)
		return false, nil
	case 3:
		dest, src, immOp := ops[0], ops[1], ops[2]
		b, _ := read(src, &e.regs, e.mmio)
		c, _ := read(immOp, &e.regs, e.mmio)
		product := int64(int32(b)) * int64(int32(c))
		res := uint32(product)
		overflow := int64(int32(res)) != product
		write(dest, &e.regs, e.mmio, res)
		e.flags = imulFlags(e.flags, overflow)
		return false, nil
	default:
		return false, nil // WrongArity: swallowed
	}
}

func opDIV(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	v, _ := read(ops[0], &e.regs, e.mmio)
	if v == 0 {
		e.regs.Set(RegEAX, 0)
		e.regs.Set(RegEDX, 0)
		return false, nil
	}
	dividend := uint64(e.regs.Get(RegEDX))<<32 | uint64(e.regs.Get(RegEAX))
	e.regs.Set(RegEAX, uint32(dividend/uint64(v)))
	e.regs.Set(RegEDX, uint32(dividend%uint64(v)))
	return false, nil
}

func opIDIV(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	v, _ := read(ops[0], &e.regs, e.mmio)
	if v == 0 {
		e.regs.Set(RegEAX, 0)
		e.regs.Set(RegEDX, 0)
		return false, nil
	}
	dividend := int64(uint64(e.regs.Get(RegEDX))<<32 | uint64(e.regs.Get(RegEAX)))
	divisor := int64(int32(v))
	e.regs.Set(RegEAX, uint32(dividend/divisor))
	e.regs.Set(RegEDX, uint32(dividend%divisor))
	return false, nil
}

func opPUSH(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	v, _ := read(ops[0], &e.regs, e.mmio)
	e.pushDword(v)
	return false, nil
}

func opPOP(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	v := e.popDword()
	write(ops[0], &e.regs, e.mmio, v)
	return false, nil
}

func opHLT(e *Engine, _ InstructionRecord, _ []Operand) (bool, error) {
	e.halted = true
	return true, nil
}

func opNOP(e *Engine, _ InstructionRecord, _ []Operand) (bool, error) {
	return false, nil
}

func opINT(e *Engine, _ InstructionRecord, ops []Operand) (bool, error) {
	vec, _ := read(ops[0], &e.regs, e.mmio)
	eax := e.regs.Get(RegEAX)
	ah := byte(eax >> 8)
	al := byte(eax)
	switch vec {
	case 0x10:
		if ah == 0x0E {
			e.console = append(e.console, al)
		}
	case 0x20:
		e.halted = true
	case 0x21:
		if ah == 0x02 {
			dl := byte(e.regs.Get(RegEDX))
			e.console = append(e.console, dl)
		}
	}
	return false, nil
}

func opIRET(e *Engine, _ InstructionRecord, _ []Operand) (bool, error) {
	retEIP := e.popDword()
	retFlags := e.popDword()
	e.eip = int(retEIP)
	e.flags = retFlags
	return true, nil
}

func opRET(e *Engine, _ InstructionRecord, _ []Operand) (bool, error) {
	if len(e.callStack) > 0 {
		idx := e.callStack[len(e.callStack)-1]
		e.callStack = e.callStack[:len(e.callStack)-1]
		e.eip = idx
		return true, nil
	}
	return false, nil // permissive: default advance to eip+1
}
