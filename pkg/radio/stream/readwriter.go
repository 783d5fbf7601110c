// Package stream carries radio packets over byte streams such as a TCP
// connection or the UART of a radio modem.
package stream

import (
	"errors"
	"fmt"
	"io"
)

// MaxPacketLen is the largest packet a length byte can describe.
const MaxPacketLen = 0xff

// ErrPacketTooLarge indicates a packet exceeding MaxPacketLen.
var ErrPacketTooLarge = errors.New("packet too large")

// ReadWriter implements radio.PacketReadWriter.
// Each packet is prefixed by a single byte holding its length, the
// framing used by UART radio modems in packet mode.
type ReadWriter struct {
	io.ReadWriter
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{s}
}

// ReadPacket implements radio.PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size [1]byte
	if _, err := io.ReadFull(p.ReadWriter, size[:]); err != nil {
		return nil, err
	}
	pkt := make([]byte, size[0])
	if _, err := io.ReadFull(p.ReadWriter, pkt); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return pkt, nil
}

// WritePacket implements radio.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketLen {
		return fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, len(pkt))
	}
	b := make([]byte, len(pkt)+1)
	b[0] = byte(len(pkt))
	copy(b[1:], pkt)
	_, err := p.ReadWriter.Write(b)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *ReadWriter) Close() error {
	if c, ok := p.ReadWriter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
