package valve

import (
	"errors"
	"fmt"
)

// ErrCodeOutOfRange indicates a code that doesn't fit in 3 bits was
// given to the latch.
var ErrCodeOutOfRange = errors.New("valve code out of range")

// UnsafeCodeError reports a code rejected by the Latch.
type UnsafeCodeError struct {
	Code Code
	Held Code
}

// Error implements error.
func (e *UnsafeCodeError) Error() string {
	return fmt.Sprintf("unsafe code %s rejected, holding %s", e.Code, e.Held)
}

// Latch retains the last applied safe Code. It is owned by the
// actuator cycle and not safe for concurrent use.
type Latch struct {
	code Code
}

// NewLatch creates a Latch holding CodeOff.
func NewLatch() *Latch {
	return &Latch{code: CodeOff}
}

// Code returns the latched code.
func (l *Latch) Code() Code {
	return l.code
}

// Apply latches c if it is safe and returns the code to drive the
// outputs with. An unsafe or out-of-range c leaves the latch untouched,
// returns the held code and a non-nil error describing the rejection.
func (l *Latch) Apply(c Code) (Code, error) {
	if !c.Valid() {
		return l.code, fmt.Errorf("%w: %d", ErrCodeOutOfRange, byte(c))
	}
	if c.Unsafe() {
		return l.code, &UnsafeCodeError{Code: c, Held: l.code}
	}
	l.code = c
	return c, nil
}
