package valve

// Label is the classification of a raw opcode byte.
type Label int

// Labels, one per Code plus LabelUnknown.
const (
	LabelOff Label = iota
	LabelDontCare
	LabelDumping
	LabelForbiddenDumpCheck
	LabelFillReady
	LabelFilling
	LabelForbiddenFillDump
	LabelForbiddenAll
	LabelUnknown
)

var labelNames = [...]string{
	LabelOff:                "off",
	LabelDontCare:           "don't-care",
	LabelDumping:            "dumping",
	LabelForbiddenDumpCheck: "forbidden dump+check",
	LabelFillReady:          "fill-ready",
	LabelFilling:            "filling",
	LabelForbiddenFillDump:  "forbidden fill+dump",
	LabelForbiddenAll:       "forbidden fill+dump+check",
	LabelUnknown:            "unknown",
}

// Classify maps an opcode byte to its Label by exact match.
// No masking is applied: anything above 7 is LabelUnknown.
func Classify(b byte) Label {
	if b > byte(MaxCode) {
		return LabelUnknown
	}
	return Label(b)
}

// Forbidden reports whether the label names a forbidden combination.
func (l Label) Forbidden() bool {
	switch l {
	case LabelForbiddenDumpCheck, LabelForbiddenFillDump, LabelForbiddenAll:
		return true
	}
	return false
}

func (l Label) String() string {
	if l >= 0 && int(l) < len(labelNames) {
		return labelNames[l]
	}
	return labelNames[LabelUnknown]
}
