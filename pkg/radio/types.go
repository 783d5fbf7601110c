package radio

import "context"

// PacketReader reads packets in bytes.
type PacketReader interface {
	// ReadPacket blocks until a complete packet is available.
	ReadPacket() ([]byte, error)
}

// PacketWriter writes packets in bytes.
type PacketWriter interface {
	WritePacket([]byte) error
}

// PacketReadWriter reads/writes packets in bytes. This is the raw
// transceiver: packet boundaries are preserved, contents are not
// interpreted.
type PacketReadWriter interface {
	PacketReader
	PacketWriter
}

// Initializer is implemented by transceivers requiring a handshake
// before use. Init may block until the hardware or peer is ready.
type Initializer interface {
	Init(context.Context) error
}

// PacketHandler is called when a packet is received.
type PacketHandler interface {
	HandlePacket(context.Context, []byte)
}

// HandlePacketFunc is func type of PacketHandler.
type HandlePacketFunc func(context.Context, []byte)

// HandlePacket implements PacketHandler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt []byte) {
	f(ctx, pkt)
}
