package engine

// CompatibilityMode selects whether memory-to-memory MOV is permitted
// and whether shift/rotate operations additionally update ZF/SF when
// x86 leaves them undefined.
type CompatibilityMode int

const (
	ModeEducational CompatibilityMode = iota
	ModeStrictX86
)

func (m CompatibilityMode) String() string {
	if m == ModeStrictX86 {
		return "strict-x86"
	}
	return "educational"
}

// InstructionRecord is a single pre-parsed, immutable instruction
// supplied by the external lexer/parser collaborator.
type InstructionRecord struct {
	Line     int
	Mnemonic string
	Operands []string
	Raw      string
}

// DataItem describes initialized bytes to store into bank A via
// loadData, little-endian for size 2/4.
type DataItem struct {
	Address uint32
	Size    int
	Values  []uint32
}
