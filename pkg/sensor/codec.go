// Package sensor encodes sensor readings into the delimited text
// payload carried back from the Actuator Unit.
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTooManyFields indicates more readings than a payload carries.
	ErrTooManyFields = errors.New("too many sensor fields")
)

// Codec formats readings as decimal text.
type Codec struct {
	// Precision is the number of decimals. A negative value formats the
	// shortest representation, keeping at least one decimal.
	Precision int
}

// DefaultCodec uses the shortest representation.
var DefaultCodec = Codec{Precision: -1}

// Encode encodes readings with DefaultCodec.
func Encode(values ...float64) ([]byte, error) {
	return DefaultCodec.Encode(values...)
}

// Encode joins up to MaxFields readings with Separator.
func (c Codec) Encode(values ...float64) ([]byte, error) {
	if len(values) > MaxFields {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFields, len(values))
	}
	var b []byte
	for n, v := range values {
		if n > 0 {
			b = append(b, Separator)
		}
		b = append(b, c.Format(v)...)
	}
	return b, nil
}

// Format renders a single reading.
func (c Codec) Format(v float64) string {
	if c.Precision >= 0 {
		return strconv.FormatFloat(v, 'f', c.Precision, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// Values parses the non-empty fields as numbers. The third field may
// carry extra separators and is parsed up to the first one.
func (f Fields) Values() ([]float64, error) {
	values := make([]float64, 0, MaxFields)
	for n, field := range f {
		if n == MaxFields-1 {
			if pos := strings.IndexByte(field, Separator); pos >= 0 {
				field = field[:pos]
			}
		}
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return values, fmt.Errorf("field %d: %w", n+1, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (f Fields) String() string {
	return strings.Join(f[:], string(Separator))
}
