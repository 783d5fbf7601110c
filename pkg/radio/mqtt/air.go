package mqtt

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/valvelink/pkg/link"
)

// AirTopic is the topic a packet for addr is published to.
func AirTopic(addr link.Address) string {
	return fmt.Sprintf("air/%02x", byte(addr))
}

// Air implements radio.PacketReadWriter over MQTT. A packet is published
// to the AirTopic of its destination byte; a unit listens on the
// AirTopic of its own address. Packets arriving while the receive
// buffer is full are lost, like on air.
type Air struct {
	Queue *Queue
	Local link.Address

	packetCh chan []byte
	done     chan struct{}
	sub      *Subscription
	once     sync.Once
}

// NewAir creates an Air transport for the local address.
func NewAir(q *Queue, local link.Address) *Air {
	return &Air{
		Queue:    q,
		Local:    local,
		packetCh: make(chan []byte, 8),
		done:     make(chan struct{}),
	}
}

// Init implements radio.Initializer: it connects to the broker and
// subscribes the local air topic.
func (a *Air) Init(ctx context.Context) error {
	if err := a.Queue.Connect(ctx); err != nil {
		return err
	}
	a.sub = a.Queue.Sub(AirTopic(a.Local), a.handleMsg)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-waitToken(a.sub.Token):
		return a.sub.Token.Error()
	}
}

// ReadPacket implements radio.PacketReader.
func (a *Air) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-a.packetCh:
		return pkt, nil
	case <-a.done:
		return nil, io.EOF
	}
}

// WritePacket implements radio.PacketWriter.
func (a *Air) WritePacket(pkt []byte) error {
	if len(pkt) == 0 {
		return link.ErrMalformedPacket
	}
	token := a.Queue.Pub(AirTopic(link.Address(pkt[0])), pkt)
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (a *Air) Close() (err error) {
	a.once.Do(func() {
		close(a.done)
		if a.sub != nil {
			err = a.sub.Close()
		}
	})
	return
}

func (a *Air) handleMsg(topic string, payload []byte) {
	pkt := append([]byte(nil), payload...)
	select {
	case a.packetCh <- pkt:
	case <-a.done:
	default:
		glog.Warningf("air %s: receive buffer full, packet lost", topic)
	}
}
