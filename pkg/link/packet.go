package link

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HeaderLen is the number of address bytes before the payload.
const HeaderLen = 2

// Address is a fixed per-unit radio address.
type Address byte

// ParseAddress parses hex text like "bb" or "0xBB".
func ParseAddress(s string) (Address, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(hex, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return Address(v), nil
}

func (a Address) String() string {
	return fmt.Sprintf("0x%02X", byte(a))
}

// Packet is a framed radio packet.
type Packet struct {
	Dest    Address
	Src     Address
	Payload []byte
}

// Frame prepends the address header to payload.
func Frame(dest, src Address, payload []byte) []byte {
	b := make([]byte, HeaderLen+len(payload))
	b[0], b[1] = byte(dest), byte(src)
	copy(b[HeaderLen:], payload)
	return b
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	return Frame(p.Dest, p.Src, p.Payload)
}

// WriteTo writes encoded bytes in a single Write so transports that
// take one Write as one packet keep the boundary.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// Filter is the static allow-list of a unit: it accepts packets
// addressed to Local and sent by Peer only.
type Filter struct {
	Local Address
	Peer  Address
}

// Frame frames payload for the peer.
func (f Filter) Frame(payload []byte) []byte {
	return Frame(f.Peer, f.Local, payload)
}

// Parse implements the filter, see Parse.
func (f Filter) Parse(raw []byte) ([]byte, error) {
	return Parse(raw, f.Local, f.Peer)
}

// Parse returns the payload of raw if its recipient is local and its
// sender is peer. The payload aliases raw.
func Parse(raw []byte, local, peer Address) ([]byte, error) {
	if len(raw) < HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(raw))
	}
	recipient, sender := Address(raw[0]), Address(raw[1])
	if recipient != local || sender != peer {
		return nil, &AddressMismatchError{Recipient: recipient, Sender: sender}
	}
	return raw[HeaderLen:], nil
}

// Decode parses raw into a Packet without filtering.
func Decode(raw []byte) (*Packet, error) {
	if len(raw) < HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(raw))
	}
	return &Packet{Dest: Address(raw[0]), Src: Address(raw[1]), Payload: raw[HeaderLen:]}, nil
}
