// Package radio wraps a packet transceiver and delivers received
// packets to the unit cycle, either polled or through a callback.
package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"
)

var (
	// ErrTransceiverInit indicates the transceiver failed to initialize.
	// A unit must not run its cycle after this error.
	ErrTransceiverInit = errors.New("transceiver init failed")
	// ErrNotReady indicates the radio is used before Init succeeded.
	ErrNotReady = errors.New("radio not ready")
)

// DefaultQueueLen is the receive queue depth in polling mode, similar
// to the FIFO of common radio chips.
const DefaultQueueLen = 3

// Radio sends packets through a transceiver and pumps received ones
// either into a poll queue or to a registered handler.
type Radio struct {
	Transport PacketReadWriter

	ready   int32
	dropped uint64
	queue   chan []byte

	handler PacketHandler
	lock    sync.RWMutex
}

// New creates a Radio over the transport.
func New(t PacketReadWriter) *Radio {
	return NewWithQueue(t, DefaultQueueLen)
}

// NewWithQueue creates a Radio with the specified poll queue depth.
func NewWithQueue(t PacketReadWriter, queueLen int) *Radio {
	if queueLen < 1 {
		queueLen = 1
	}
	return &Radio{Transport: t, queue: make(chan []byte, queueLen)}
}

// Init performs the transceiver handshake. Any failure is wrapped with
// ErrTransceiverInit.
func (r *Radio) Init(ctx context.Context) error {
	if init, ok := r.Transport.(Initializer); ok {
		if err := init.Init(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrTransceiverInit, err)
		}
	}
	atomic.StoreInt32(&r.ready, 1)
	return nil
}

// Ready reports whether Init succeeded.
func (r *Radio) Ready() bool {
	return atomic.LoadInt32(&r.ready) != 0
}

// Send transmits a framed packet.
func (r *Radio) Send(pkt []byte) error {
	if !r.Ready() {
		return ErrNotReady
	}
	glog.V(2).Infof("radio TX % x", pkt)
	return r.Transport.WritePacket(pkt)
}

// OnReceive registers a handler invoked on the pump goroutine for every
// received packet. With a handler registered, Poll yields nothing.
func (r *Radio) OnReceive(h PacketHandler) {
	r.lock.Lock()
	r.handler = h
	r.lock.Unlock()
}

// Poll returns a received packet if one is available. It never blocks.
func (r *Radio) Poll() ([]byte, bool) {
	select {
	case pkt := <-r.queue:
		return pkt, true
	default:
		return nil, false
	}
}

// Pending returns the number of packets waiting in the poll queue.
func (r *Radio) Pending() int {
	return len(r.queue)
}

// Dropped returns the number of packets dropped on a full poll queue.
func (r *Radio) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

// Run implements Runnable. It pumps packets until ctx is canceled or
// the transport fails.
func (r *Radio) Run(ctx context.Context) error {
	if !r.Ready() {
		return ErrNotReady
	}
	pktCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.readLoop(subCtx, pktCh, errCh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			if err == io.EOF && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		case pkt := <-pktCh:
			r.deliver(ctx, pkt)
		}
	}
}

func (r *Radio) readLoop(ctx context.Context, pktCh chan<- []byte, errCh chan<- error) {
	for {
		pkt, err := r.Transport.ReadPacket()
		if err != nil {
			errCh <- err
			return
		}
		glog.V(2).Infof("radio RX % x", pkt)
		select {
		case pktCh <- pkt:
		case <-ctx.Done():
			return
		}
	}
}

func (r *Radio) deliver(ctx context.Context, pkt []byte) {
	r.lock.RLock()
	h := r.handler
	r.lock.RUnlock()
	if h != nil {
		h.HandlePacket(ctx, pkt)
		return
	}
	select {
	case r.queue <- pkt:
	default:
		atomic.AddUint64(&r.dropped, 1)
		glog.Warningf("radio RX queue full, dropped % x", pkt)
	}
}
