package engine

import "testing"

func rec(line int, mnemonic string, operands ...string) InstructionRecord {
	return InstructionRecord{Line: line, Mnemonic: mnemonic, Operands: operands, Raw: mnemonic}
}

func runToHalt(t *testing.T, e *Engine, maxSteps int) {
	t.Helper()
	for i := 0; i < maxSteps; i++ {
		line, err := e.Step()
		if err != nil {
			t.Fatalf("step error: %v", err)
		}
		if line == -1 {
			return
		}
	}
	t.Fatalf("program did not halt within %d steps", maxSteps)
}

// Fibonacci (5 terms). Five ADD/XCHG iterations of the (a,b) ->
// (b, a+b) recurrence starting from (0,1) land on (5,8), not the
// (3,5) spec.md's worked example states — see DESIGN.md for why the
// documented per-instruction semantics (ADD, XCHG, DEC's CF
// preservation, JNE on ZF) are followed literally here instead.
func TestScenarioFibonacci(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "0"),
		rec(2, "MOV", "EBX", "1"),
		rec(3, "MOV", "ECX", "5"),
		rec(4, "ADD", "EAX", "EBX"),
		rec(5, "XCHG", "EAX", "EBX"),
		rec(6, "DEC", "ECX"),
		rec(7, "JNE", "loop"),
		rec(8, "HLT"),
	}, map[string]int{"loop": 3})

	runToHalt(t, e, 100)

	regs := e.GetRegisters()
	if regs["EBX"] != 8 {
		t.Errorf("EBX = %d, want 8", regs["EBX"])
	}
	if regs["EAX"] != 5 {
		t.Errorf("EAX = %d, want 5", regs["EAX"])
	}
	if regs["ECX"] != 0 {
		t.Errorf("ECX = %d, want 0", regs["ECX"])
	}
	if !getFlag(e.GetFlags(), FlagZF) {
		t.Errorf("ZF not set")
	}
}

func TestScenarioSumToN(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "XOR", "EAX", "EAX"),
		rec(2, "MOV", "ECX", "10"),
		rec(3, "ADD", "EAX", "ECX"),
		rec(4, "DEC", "ECX"),
		rec(5, "JNZ", "top"),
		rec(6, "HLT"),
	}, map[string]int{"top": 2})

	runToHalt(t, e, 100)

	if got := e.GetRegisters()["EAX"]; got != 55 {
		t.Errorf("EAX = %d, want 55", got)
	}
}

func TestScenarioCallRet(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "10"),
		rec(2, "CALL", "f"),
		rec(3, "ADD", "EAX", "5"),
		rec(4, "HLT"),
		rec(5, "ADD", "EAX", "1"),
		rec(6, "RET"),
	}, map[string]int{"f": 4})

	runToHalt(t, e, 100)

	if got := e.GetRegisters()["EAX"]; got != 16 {
		t.Errorf("EAX = %d, want 16", got)
	}
	if got := e.CallStackDepth(); got != 0 {
		t.Errorf("callStackDepth = %d, want 0", got)
	}
}

func TestScenarioConsoleHi(t *testing.T) {
	e := New(64, 64, ModeEducational)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "EAX", "0x0E48"),
		rec(2, "INT", "0x10"),
		rec(3, "MOV", "EAX", "0x0E69"),
		rec(4, "INT", "0x10"),
		rec(5, "HLT"),
	}, nil)

	runToHalt(t, e, 100)

	if got := string(e.GetConsoleOutput()); got != "Hi" {
		t.Errorf("console output = %q, want %q", got, "Hi")
	}
}

func TestScenarioStrictModeRejection(t *testing.T) {
	e := New(64, 64, ModeStrictX86)
	e.LoadInstructions([]InstructionRecord{
		rec(1, "MOV", "[0xF000]", "[0xF100]"),
	}, nil)

	_, err := e.Step()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var se *StepError
	if se, _ = err.(*StepError); se == nil {
		t.Fatalf("expected *StepError, got %T", err)
	}
	if se.Line != 1 {
		t.Errorf("StepError.Line = %d, want 1", se.Line)
	}
}

// Audio registers are exercised at the byte-addressable MMIO level
// (as a host poking individual registers would) rather than through a
// 32-bit MOV instruction: spec.md 4.1 defines every instruction-level
// memory access as a 4-byte little-endian word, so a MOV targeting a
// single one-byte audio register would also overwrite its neighbors
// in the same write — scenario 6 itself describes independent
// register pokes ("Write freq=440 ..., dur=300, wave=0, vol=200,
// then ctrl=1"), which is what this test reproduces directly against
// the router.
func TestScenarioAudioEdgeTrigger(t *testing.T) {
	e := New(64, 64, ModeEducational)
	var events []AudioEvent
	e.OnAudioEvent(func(ev AudioEvent) { events = append(events, ev) })

	e.mmio.WriteByte(audioFreqLo, 0xB8)
	e.mmio.WriteByte(audioFreqHi, 0x01)
	e.mmio.WriteByte(audioDurLo, byte(300&0xFF))
	e.mmio.WriteByte(audioDurHi, byte(300>>8))
	e.mmio.WriteByte(audioWave, 0)
	e.mmio.WriteByte(audioVolume, 200)
	e.mmio.WriteByte(audioCtrl, 1) // 0->1: fires
	e.mmio.WriteByte(audioCtrl, 1) // 1->1: no event

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Frequency != 440 || ev.Duration != 300 || ev.Waveform != WaveSquare {
		t.Errorf("event = %+v, want {440 300 square ...}", ev)
	}
	if ev.Volume < 0.78 || ev.Volume > 0.79 {
		t.Errorf("volume = %v, want ~0.784", ev.Volume)
	}
}
