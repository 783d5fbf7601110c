package valve

import "fmt"

// Code is the 3-bit valve opcode.
type Code byte

// Bit positions.
const (
	FillBit  Code = 1 << 2
	DumpBit  Code = 1 << 1
	CheckBit Code = 1 << 0

	// MaxCode is the largest representable Code.
	MaxCode Code = FillBit | DumpBit | CheckBit
)

// Named codes.
const (
	CodeOff       Code = 0
	CodeDontCare  Code = CheckBit
	CodeDumping   Code = DumpBit
	CodeFillReady Code = FillBit
	CodeFilling   Code = FillBit | CheckBit
)

// State is the decoded form of a Code.
type State struct {
	Fill  bool
	Dump  bool
	Check bool
}

// Encode packs the three valve inputs into a Code.
func Encode(fill, dump, check bool) Code {
	var c Code
	if fill {
		c |= FillBit
	}
	if dump {
		c |= DumpBit
	}
	if check {
		c |= CheckBit
	}
	return c
}

// Code encodes the state.
func (s State) Code() Code {
	return Encode(s.Fill, s.Dump, s.Check)
}

func (s State) String() string {
	return fmt.Sprintf("fill=%d dump=%d check=%d", bit(s.Fill), bit(s.Dump), bit(s.Check))
}

// Decode unpacks the Code into valve states.
func (c Code) Decode() State {
	return State{
		Fill:  (c>>2)&1 == 1,
		Dump:  (c>>1)&1 == 1,
		Check: c&1 == 1,
	}
}

// Valid reports whether the code fits in 3 bits.
func (c Code) Valid() bool {
	return c <= MaxCode
}

// Unsafe reports whether applying the code to outputs is disallowed.
func (c Code) Unsafe() bool {
	return IsUnsafe(byte(c))
}

// Label classifies the code.
func (c Code) Label() Label {
	return Classify(byte(c))
}

func (c Code) String() string {
	return BitString(byte(c)) + " (" + c.Label().String() + ")"
}

// IsUnsafe reports whether b is one of the don't-care or forbidden codes.
// Bytes out of the 3-bit range are not in the unsafe set; callers must
// reject them before reaching the latch.
func IsUnsafe(b byte) bool {
	switch b {
	case 1, 3, 6, 7:
		return true
	}
	return false
}

// BitString renders b as 8 binary digits, most significant first.
func BitString(b byte) string {
	return fmt.Sprintf("%08b", b)
}

func bit(v bool) int {
	if v {
		return 1
	}
	return 0
}
