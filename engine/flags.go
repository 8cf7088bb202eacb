package engine

// Flag bits within the 32-bit flags word. Only these four are defined;
// every other bit is reserved and write-preserved.
const (
	FlagCF uint32 = 1 << 0
	FlagZF uint32 = 1 << 6
	FlagSF uint32 = 1 << 7
	FlagOF uint32 = 1 << 11
)

func getFlag(flags uint32, bit uint32) bool {
	return flags&bit != 0
}

func setFlag(flags uint32, bit uint32, set bool) uint32 {
	if set {
		return flags | bit
	}
	return flags &^ bit
}

// zsFlags computes ZF/SF for a 32-bit result, the "ZS helper" of the
// flag kernel. Every arithmetic/logical/shift path that touches
// ZF/SF routes through this.
func zsFlags(flags uint32, result uint32) uint32 {
	flags = setFlag(flags, FlagZF, result == 0)
	flags = setFlag(flags, FlagSF, result&0x80000000 != 0)
	return flags
}

// arithFlags implements the Flag Kernel's Arithmetic rule for
// ADD/SUB/CMP/NEG/ADC-like ops. dest and src are the pre-operation
// operands; result is the truncated 32-bit outcome; sub selects
// subtract-style CF/OF semantics (SUB, CMP, NEG) vs add-style (ADD).
func arithFlags(flags uint32, dest, src, result uint32, sub bool) uint32 {
	flags = zsFlags(flags, result)

	var cf, of bool
	destSign := dest&0x80000000 != 0
	srcSign := src&0x80000000 != 0
	resSign := result&0x80000000 != 0

	if sub {
		cf = src > dest
		of = destSign != srcSign && resSign != destSign
	} else {
		cf = result < dest
		of = destSign == srcSign && destSign != resSign
	}

	flags = setFlag(flags, FlagCF, cf)
	flags = setFlag(flags, FlagOF, of)
	return flags
}

// incDecFlags implements the INC/DEC exception: CF is preserved,
// everything else follows the arithmetic rule.
func incDecFlags(flags uint32, dest, result uint32, sub bool) uint32 {
	cf := getFlag(flags, FlagCF)
	flags = arithFlags(flags, dest, 1, result, sub)
	return setFlag(flags, FlagCF, cf)
}

// logicFlags implements the Logical rule for AND/OR/XOR/TEST: clear
// CF and OF, update ZF/SF. NOT does not call this — it preserves all
// flags, per spec.
func logicFlags(flags uint32, result uint32) uint32 {
	flags = zsFlags(flags, result)
	flags = setFlag(flags, FlagCF, false)
	flags = setFlag(flags, FlagOF, false)
	return flags
}

type shiftKind int

const (
	shiftSHL shiftKind = iota
	shiftSHR
	shiftSAR
)

// shiftFlags implements the Shift rule. operand is the pre-shift
// value, result the post-shift value, count the masked (0..31) shift
// amount.
func shiftFlags(flags uint32, kind shiftKind, operand, result uint32, count uint) uint32 {
	if count == 0 {
		return flags
	}
	flags = zsFlags(flags, result)

	var cf bool
	switch kind {
	case shiftSHL:
		if count <= 32 {
			cf = operand&(1<<(32-count)) != 0
		}
	case shiftSHR, shiftSAR:
		cf = operand&(1<<(count-1)) != 0
	}
	flags = setFlag(flags, FlagCF, cf)

	if count == 1 {
		var of bool
		switch kind {
		case shiftSHL:
			msb := result&0x80000000 != 0
			of = msb != cf
		case shiftSHR:
			of = operand&0x80000000 != 0
		case shiftSAR:
			of = false
		}
		flags = setFlag(flags, FlagOF, of)
	} else {
		flags = setFlag(flags, FlagOF, false)
	}
	return flags
}

type rotateKind int

const (
	rotateROL rotateKind = iota
	rotateROR
)

// rotateFlags implements the Rotate rule. updateZS selects the
// educational-mode behavior of also updating ZF/SF from the result;
// strict-x86 mode leaves them unchanged.
func rotateFlags(flags uint32, kind rotateKind, result uint32, count uint, updateZS bool) uint32 {
	if count == 0 {
		return flags
	}

	var cf bool
	switch kind {
	case rotateROL:
		cf = result&1 != 0
	case rotateROR:
		cf = result&0x80000000 != 0
	}
	flags = setFlag(flags, FlagCF, cf)

	if count == 1 {
		var of bool
		switch kind {
		case rotateROL:
			msb := result&0x80000000 != 0
			of = msb != cf
		case rotateROR:
			bit31 := result&0x80000000 != 0
			bit30 := result&0x40000000 != 0
			of = bit31 != bit30
		}
		flags = setFlag(flags, FlagOF, of)
	} else {
		flags = setFlag(flags, FlagOF, false)
	}

	if updateZS {
		flags = zsFlags(flags, result)
	}
	return flags
}

// mulFlags implements the Multiply rule for one-operand MUL/IMUL. ZF
// and SF are left unspecified by spec and are cleared here.
func mulFlags(flags uint32, highNonZero bool) uint32 {
	flags = setFlag(flags, FlagCF, highNonZero)
	flags = setFlag(flags, FlagOF, highNonZero)
	flags = setFlag(flags, FlagZF, false)
	flags = setFlag(flags, FlagSF, false)
	return flags
}

// imulFlags implements the two/three-operand IMUL rule: CF and OF set
// iff the 32-bit truncated result lost significant bits of the signed
// 64-bit product.
func imulFlags(flags uint32, overflow bool) uint32 {
	flags = setFlag(flags, FlagCF, overflow)
	flags = setFlag(flags, FlagOF, overflow)
	return flags
}
