package engine

// MMIORouter dispatches byte-level memory accesses to Display,
// Keyboard, Audio, or bank A RAM depending on address range (C8).
// Addresses are routed as a layer over the logical address space
// rather than by extending bank A's byte array, per the teacher's
// IORegion callback-registration pattern in machine_bus.go — keeping
// bank A a tight contiguous 64 KiB buffer while the keyboard/audio
// windows, which sit above 64 KiB, remain pure dispatch targets.
type MMIORouter struct {
	bankA    *memoryBank
	display  *Display
	keyboard *Keyboard
	audio    *Audio
}

func newMMIORouter(bankA *memoryBank, display *Display, keyboard *Keyboard, audio *Audio) *MMIORouter {
	return &MMIORouter{bankA: bankA, display: display, keyboard: keyboard, audio: audio}
}

func (r *MMIORouter) inDisplay(addr uint32) bool {
	return addr >= DisplayBase && addr < DisplayBase+uint32(r.display.size())
}

func (r *MMIORouter) inAudio(addr uint32) bool {
	return addr >= AudioRangeLo && addr <= AudioRangeHi
}

// ReadByte reads a single byte through the router.
func (r *MMIORouter) ReadByte(addr uint32) byte {
	switch {
	case r.inAudio(addr):
		return r.audio.readByte(addr)
	case addr == KeyboardStatus:
		return byte(r.keyboard.status())
	case addr == KeyboardKeyCode:
		return byte(r.keyboard.popKeyCode())
	case addr == KeyboardState:
		return byte(r.keyboard.state())
	case r.inDisplay(addr):
		return r.display.get(int(addr - DisplayBase))
	default:
		return r.bankA.readByte(addr)
	}
}

// WriteByte writes a single byte through the router. Writes to
// read-only keyboard registers are accepted and discarded without
// touching any backing store.
func (r *MMIORouter) WriteByte(addr uint32, v byte) {
	switch {
	case r.inAudio(addr):
		r.audio.writeByte(addr, v)
	case addr == KeyboardStatus, addr == KeyboardKeyCode, addr == KeyboardState:
		// read-only / pop-on-read; writes are silently discarded.
	case r.inDisplay(addr):
		r.display.set(int(addr-DisplayBase), v)
	default:
		r.bankA.writeByte(addr, v)
	}
}

// Read32 reads four little-endian bytes, each routed independently so
// an access straddling a device boundary only touches the bytes
// actually inside that device's range.
func (r *MMIORouter) Read32(addr uint32) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(r.ReadByte(addr+uint32(i))) << (8 * i)
	}
	return v
}

// Write32 stores v as four little-endian bytes, each routed
// independently.
func (r *MMIORouter) Write32(addr uint32, v uint32) {
	for i := 0; i < 4; i++ {
		r.WriteByte(addr+uint32(i), byte(v>>(8*i)))
	}
}
