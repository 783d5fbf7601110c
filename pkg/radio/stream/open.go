package stream

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"

	fx "github.com/robotalks/valvelink/pkg/framework"
)

// ErrNotConnected indicates no peer is connected yet.
var ErrNotConnected = errors.New("not connected")

// DefaultBaudRate of UART radio modems.
const DefaultBaudRate = 9600

// OpenSerial opens a UART-attached radio modem.
func OpenSerial(name string, baudRate int) (*ReadWriter, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	return New(port), nil
}

// Dial connects to a TCP peer, e.g. a radio bridge or a simulated unit.
func Dial(addr string, timeout time.Duration) (*ReadWriter, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Listener accepts exactly one TCP peer. Init blocks until the peer
// connects, which stands in for the radio handshake at startup.
type Listener struct {
	Addr string

	lock sync.RWMutex
	rw   *ReadWriter
}

// Listen creates a Listener on addr.
func Listen(addr string) *Listener {
	return &Listener{Addr: addr}
}

// Init implements radio.Initializer.
func (l *Listener) Init(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.Addr)
	if err != nil {
		return err
	}
	glog.Infof("waiting for peer on %s", ln.Addr())
	var conn net.Conn
	err = fx.RunWithContextCloser(ctx, ln, func() (err error) {
		conn, err = ln.Accept()
		return
	})
	if err != nil {
		return err
	}
	glog.Infof("peer connected from %s", conn.RemoteAddr())
	l.lock.Lock()
	l.rw = New(conn)
	l.lock.Unlock()
	return nil
}

func (l *Listener) conn() *ReadWriter {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.rw
}

// ReadPacket implements radio.PacketReader.
func (l *Listener) ReadPacket() ([]byte, error) {
	if rw := l.conn(); rw != nil {
		return rw.ReadPacket()
	}
	return nil, ErrNotConnected
}

// WritePacket implements radio.PacketWriter.
func (l *Listener) WritePacket(pkt []byte) error {
	if rw := l.conn(); rw != nil {
		return rw.WritePacket(pkt)
	}
	return ErrNotConnected
}

// Close implements io.Closer.
func (l *Listener) Close() error {
	if rw := l.conn(); rw != nil {
		return rw.Close()
	}
	return nil
}
