package engine

import "testing"

func TestNewInitialState(t *testing.T) {
	e := New(64, 64, ModeEducational)
	st := e.GetState()
	if st.Registers["ESP"] != stackInit {
		t.Errorf("ESP = %#x, want %#x", st.Registers["ESP"], uint32(stackInit))
	}
	if st.EIP != 0 || st.Halted || st.Running {
		t.Errorf("unexpected initial state: %+v", st)
	}
}

func TestResetPreservesBreakpoints(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.AddBreakpoint(3)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "1"),
		rec(2, "HLT"),
	}, nil)
	runToHalt(t, e, 10)

	e.Reset()

	fresh := New(64, 64, ModeEducational)
	got, want := e.GetState(), fresh.GetState()
	if got.Flags != want.Flags || got.EIP != want.EIP || got.Halted != want.Halted ||
		got.Running != want.Running || got.CallStackDepth != want.CallStackDepth {
		t.Errorf("Reset() state = %+v, want %+v", got, want)
	}
	if regs := e.GetRegisters(); regs["ESP"] != stackInit || regs["EAX"] != 0 {
		t.Errorf("Reset() registers = %+v", regs)
	}
	if e.CallStackDepth() != 0 {
		t.Errorf("Reset() left call stack depth %d", e.CallStackDepth())
	}
	// breakpoint at 3 must have survived the reset
	e.LoadInstructions([]InstructionRecord{
		rec(1, "NOP"), rec(2, "NOP"), rec(3, "NOP"), rec(4, "HLT"),
	}, nil)
	if err := e.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := e.GetState().EIP; got != 3 {
		t.Errorf("EIP = %d after breakpoint hit, want 3 (the HLT at the surviving breakpoint)", got)
	}
}

func TestLoadDataRoundTrip(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadData([]DataItem{
		{Address: 0x100, Size: 1, Values: []uint32{0xAB}},
		{Address: 0x200, Size: 2, Values: []uint32{0x1234}},
		{Address: 0x300, Size: 4, Values: []uint32{0xDEADBEEF}},
	})

	if got := e.GetMemoryA(0x100, 1); got[0] != 0xAB {
		t.Errorf("byte at 0x100 = %#x, want 0xAB", got[0])
	}
	lo := e.GetMemoryA(0x200, 2)
	if lo[0] != 0x34 || lo[1] != 0x12 {
		t.Errorf("word at 0x200 = %v, want little-endian [0x34 0x12]", lo)
	}
	dw := e.GetMemoryA(0x300, 4)
	want := []byte{0xEF, 0xBE, 0xAD, 0xDE}
	for i := range want {
		if dw[i] != want[i] {
			t.Errorf("dword at 0x300 = %v, want %v", dw, want)
		}
	}
}

func TestRegisterWriteWrapsModulo32(t *testing.T) {
	var regs Registers
	regs.Set(RegEAX, 0xFFFFFFFF)
	regs.Set(RegEAX, regs.Get(RegEAX)+2)
	if got := regs.Get(RegEAX); got != 1 {
		t.Errorf("EAX = %#x, want 1 (wrapped)", got)
	}
}

func TestXorSelfZeroesAndSetsZF(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "0x1234"),
		rec(2, "XOR", "EAX", "EAX"),
		rec(3, "HLT"),
	}, nil)
	runToHalt(t, e, 10)

	if got := e.GetRegisters()["EAX"]; got != 0 {
		t.Errorf("EAX = %#x, want 0", got)
	}
	if !getFlag(e.GetFlags(), FlagZF) {
		t.Error("ZF not set after XOR EAX, EAX")
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "0xCAFEBABE"),
		rec(2, "PUSH", "EAX"),
		rec(3, "POP", "EBX"),
		rec(4, "HLT"),
	}, nil)
	runToHalt(t, e, 10)

	regs := e.GetRegisters()
	if regs["EBX"] != 0xCAFEBABE {
		t.Errorf("EBX = %#x, want 0xCAFEBABE", regs["EBX"])
	}
	if regs["ESP"] != stackInit {
		t.Errorf("ESP = %#x, want %#x (restored after matched PUSH/POP)", regs["ESP"], uint32(stackInit))
	}
}

func TestDivisionByZeroIsSwallowed(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "10"),
		rec(2, "MOV", "ECX", "0"),
		rec(3, "DIV", "ECX"),
		rec(4, "HLT"),
	}, nil)
	flagsBefore := e.GetFlags()
	runToHalt(t, e, 10)

	regs := e.GetRegisters()
	if regs["EAX"] != 0 || regs["EDX"] != 0 {
		t.Errorf("after DIV by zero, EAX=%d EDX=%d, want 0, 0", regs["EAX"], regs["EDX"])
	}
	if e.GetFlags() != flagsBefore {
		t.Errorf("DIV by zero changed flags: %#x != %#x", e.GetFlags(), flagsBefore)
	}
}

func TestShiftCountMaskingWrapsAt32(t *testing.T) {
	e := New(64, 64, ModeEducational)
	// SHL by 33 masks to count 1, identical to a plain SHL by 1.
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "1"),
		rec(2, "SHL", "EAX", "33"),
		rec(3, "HLT"),
	}, nil)
	runToHalt(t, e, 10)
	if got := e.GetRegisters()["EAX"]; got != 2 {
		t.Errorf("EAX = %d, want 2 (SHL by 33 masked to SHL by 1)", got)
	}
}
