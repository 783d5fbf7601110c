// Package stub provides in-memory transceivers for host tests and
// simulation. A pair of endpoints forms a lossy two-party air link.
package stub

import (
	"context"
	"io"
	"sync"
)

// DefaultBufferLen is the number of packets an endpoint buffers
// before further packets are lost.
const DefaultBufferLen = 16

// Endpoint implements radio.PacketReadWriter and radio.Initializer.
type Endpoint struct {
	// InitErr is returned by Init to simulate a dead transceiver.
	InitErr error

	rx     chan []byte
	peer   *Endpoint
	closed chan struct{}

	lock    sync.Mutex
	sent    [][]byte
	inited  bool
	lost    int
	closeMu sync.Once
}

// New creates an unpaired Endpoint. Written packets are only recorded.
func New() *Endpoint {
	return &Endpoint{
		rx:     make(chan []byte, DefaultBufferLen),
		closed: make(chan struct{}),
	}
}

// Pair creates two endpoints delivering to each other.
func Pair() (*Endpoint, *Endpoint) {
	a, b := New(), New()
	a.peer, b.peer = b, a
	return a, b
}

// Init implements radio.Initializer.
func (e *Endpoint) Init(context.Context) error {
	if e.InitErr != nil {
		return e.InitErr
	}
	e.lock.Lock()
	e.inited = true
	e.lock.Unlock()
	return nil
}

// Inited reports whether Init succeeded.
func (e *Endpoint) Inited() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.inited
}

// ReadPacket implements radio.PacketReader.
func (e *Endpoint) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-e.rx:
		return pkt, nil
	case <-e.closed:
		return nil, io.EOF
	}
}

// WritePacket implements radio.PacketWriter.
func (e *Endpoint) WritePacket(pkt []byte) error {
	select {
	case <-e.closed:
		return io.ErrClosedPipe
	default:
	}
	cp := append([]byte(nil), pkt...)
	e.lock.Lock()
	e.sent = append(e.sent, cp)
	e.lock.Unlock()
	if e.peer != nil {
		e.peer.Inject(cp)
	}
	return nil
}

// Inject puts a packet on air towards this endpoint. It is lost if the
// receive buffer is full.
func (e *Endpoint) Inject(pkt []byte) {
	select {
	case e.rx <- append([]byte(nil), pkt...):
	default:
		e.lock.Lock()
		e.lost++
		e.lock.Unlock()
	}
}

// Sent returns copies of all packets written.
func (e *Endpoint) Sent() [][]byte {
	e.lock.Lock()
	defer e.lock.Unlock()
	out := make([][]byte, len(e.sent))
	copy(out, e.sent)
	return out
}

// Lost returns the number of packets lost on a full buffer.
func (e *Endpoint) Lost() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.lost
}

// Close implements io.Closer. Pending reads return io.EOF.
func (e *Endpoint) Close() error {
	e.closeMu.Do(func() { close(e.closed) })
	return nil
}
