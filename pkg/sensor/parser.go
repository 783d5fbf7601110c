package sensor

// Separator splits sensor fields.
const Separator byte = '|'

// MaxFields is the number of fields a payload carries.
const MaxFields = 3

// Fields is a decoded sensor payload. Missing fields are empty.
type Fields [MaxFields]string

// Parser decodes a sensor payload one byte at a time.
// The first two fields end at a Separator, the last one takes all
// remaining bytes verbatim, separators included.
type Parser struct {
	separators int
	fields     [MaxFields][]byte
}

// Reset clears the parser for the next payload.
func (p *Parser) Reset() {
	p.separators = 0
	for n := range p.fields {
		p.fields[n] = p.fields[n][:0]
	}
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) {
	if b == Separator && p.separators < MaxFields-1 {
		p.separators++
		return
	}
	p.fields[p.separators] = append(p.fields[p.separators], b)
}

// Fields returns the fields accumulated so far as an immutable record.
func (p *Parser) Fields() (f Fields) {
	for n, field := range p.fields {
		f[n] = string(field)
	}
	return
}

// Decode parses a complete payload.
func Decode(payload []byte) Fields {
	var p Parser
	for _, b := range payload {
		p.Parse(b)
	}
	return p.Fields()
}
