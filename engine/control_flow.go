package engine

// Step executes the instruction at EIP and returns its source line,
// or -1 if the engine was already halted or EIP ran past the end of
// the program (which halts it as a side effect), per spec.md 4.4. A
// non-nil error means a fatal step error (UnknownLabel,
// StrictMovMemToMem, BadOperand); engine state remains well-formed
// since every handler resolves labels and parses operands before
// mutating anything.
func (e *Engine) Step() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stepLocked()
}

func (e *Engine) stepLocked() (int, error) {
	if e.halted {
		return -1, nil
	}
	if e.eip < 0 || e.eip >= len(e.instructions) {
		e.halted = true
		return -1, nil
	}

	rec := e.instructions[e.eip]
	branched, err := e.dispatch(rec)
	if err != nil {
		return -1, stepErr(rec.Line, err)
	}

	line := rec.Line
	if !branched {
		e.eip++
	}
	e.pc++
	return line, nil
}

// Run repeatedly steps until halted, paused, a breakpoint is reached,
// or a fatal error occurs. It does not stop immediately for a
// breakpoint at the EIP it starts from — only for one reached by a
// later step, matching ordinary debugger "continue" behavior.
func (e *Engine) Run() error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	first := true
	for {
		e.mu.Lock()
		if !e.running || e.halted {
			e.mu.Unlock()
			return nil
		}
		if !first {
			if _, hit := e.breakpoints[e.eip]; hit {
				e.running = false
				e.mu.Unlock()
				return nil
			}
		}
		first = false

		_, err := e.stepLocked()
		if err != nil {
			e.running = false
			e.mu.Unlock()
			return err
		}
		e.mu.Unlock()
	}
}

// ExecuteInstruction dispatches a single mnemonic/operand pair
// without touching the loaded program and without advancing EIP, for
// one-off checks (spec.md Section 6). A taken jump, a CALL, a RET with
// a non-empty call stack, or an IRET still sets EIP (and CALL/RET the
// call stack) exactly as it would under Step.
func (e *Engine) ExecuteInstruction(mnemonic string, operands []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := InstructionRecord{Line: -1, Mnemonic: mnemonic, Operands: operands, Raw: mnemonic}
	_, err := e.dispatch(rec)
	if err != nil {
		return stepErr(-1, err)
	}
	return nil
}

// pushDword and popDword implement PUSH/POP's stack discipline:
// ESP wraps at 16 bits and addresses bank A directly, bypassing the
// MMIO router, per spec.md 4.3's "write 4 little-endian bytes to bank
// A at new ESP" — PUSH/POP never route through Display/Keyboard/Audio
// even where their address range would otherwise overlap the display
// window; see DESIGN.md for why this is taken literally rather than
// routed.
func (e *Engine) pushDword(v uint32) {
	esp := e.regs.Get(RegESP)
	esp = uint32(uint16(esp - 4))
	e.bankA.write32LE(esp, v)
	e.regs.Set(RegESP, esp)
}

func (e *Engine) popDword() uint32 {
	esp := e.regs.Get(RegESP)
	v := e.bankA.read32LE(esp)
	esp = uint32(uint16(esp + 4))
	e.regs.Set(RegESP, esp)
	return v
}
