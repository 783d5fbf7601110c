package link

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPacket indicates the packet is too short for the header,
	// or its payload is not a valid frame.
	ErrMalformedPacket = errors.New("malformed packet")
)

// AddressMismatchError reports a packet not sent to us by our peer.
type AddressMismatchError struct {
	Recipient Address
	Sender    Address
}

// Error implements error.
func (e *AddressMismatchError) Error() string {
	return fmt.Sprintf("address mismatch: to %s from %s", e.Recipient, e.Sender)
}

// IsRejected reports whether err is a per-packet rejection.
func IsRejected(err error) bool {
	var mismatch *AddressMismatchError
	return errors.Is(err, ErrMalformedPacket) || errors.As(err, &mismatch)
}
