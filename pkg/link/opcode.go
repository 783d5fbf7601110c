package link

import (
	"fmt"

	"github.com/robotalks/valvelink/pkg/valve"
)

// EncodeOpcode builds the one-byte opcode payload.
func EncodeOpcode(c valve.Code) []byte {
	return []byte{byte(c)}
}

// DecodeOpcode validates an opcode payload. Payloads that are not
// exactly one byte, and bytes outside 0-7, are ErrMalformedPacket so
// they never reach the latch.
func DecodeOpcode(payload []byte) (valve.Code, error) {
	if len(payload) != 1 {
		return 0, fmt.Errorf("%w: opcode payload of %d bytes", ErrMalformedPacket, len(payload))
	}
	if c := valve.Code(payload[0]); c.Valid() {
		return c, nil
	}
	return 0, fmt.Errorf("%w: opcode %s (%s)", ErrMalformedPacket,
		valve.BitString(payload[0]), valve.Classify(payload[0]))
}
