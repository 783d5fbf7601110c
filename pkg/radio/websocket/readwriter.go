// Package websocket carries radio packets as binary websocket messages,
// used to bridge units through a browser-facing or remote relay.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// ErrNotConnected indicates no peer is connected yet.
var ErrNotConnected = errors.New("websocket not connected")

// ReadWriter implements radio.PacketReadWriter.
type ReadWriter websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *ReadWriter {
	return (*ReadWriter)(conn)
}

// Dial connects to a websocket endpoint.
func Dial(url, origin string) (*ReadWriter, error) {
	conn, err := websocket.Dial(url, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadPacket implements radio.PacketReader.
func (p *ReadWriter) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements radio.PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *ReadWriter) Close() error {
	return (*websocket.Conn)(p).Close()
}

// Server accepts one websocket peer on Addr at Path.
type Server struct {
	Addr string
	Path string

	server *http.Server
	connCh chan *websocket.Conn
	done   chan struct{}

	lock   sync.RWMutex
	rw     *ReadWriter
	paired bool
}

// NewServer creates a Server.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/"
	}
	return &Server{Addr: addr, Path: path}
}

// Init implements radio.Initializer, blocking until a peer connects.
func (s *Server) Init(ctx context.Context) error {
	s.connCh, s.done = make(chan *websocket.Conn, 1), make(chan struct{})
	mux := http.NewServeMux()
	mux.Handle(s.Path, websocket.Handler(s.serve))
	s.server = &http.Server{Addr: s.Addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- s.server.ListenAndServe() }()
	glog.Infof("waiting for websocket peer on %s%s", s.Addr, s.Path)
	select {
	case <-ctx.Done():
		s.server.Close()
		return ctx.Err()
	case err := <-errCh:
		return err
	case conn := <-s.connCh:
		s.lock.Lock()
		s.rw = New(conn)
		s.lock.Unlock()
		return nil
	}
}

// serve hands the first connection over and keeps it open until Close;
// the handler returning closes the websocket.
func (s *Server) serve(conn *websocket.Conn) {
	s.lock.Lock()
	first := !s.paired
	s.paired = true
	s.lock.Unlock()
	if !first {
		glog.Warningf("websocket peer %s refused, already paired", conn.Request().RemoteAddr)
		return
	}
	s.connCh <- conn
	<-s.done
}

func (s *Server) conn() *ReadWriter {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.rw
}

// ReadPacket implements radio.PacketReader.
func (s *Server) ReadPacket() ([]byte, error) {
	if rw := s.conn(); rw != nil {
		return rw.ReadPacket()
	}
	return nil, ErrNotConnected
}

// WritePacket implements radio.PacketWriter.
func (s *Server) WritePacket(pkt []byte) error {
	if rw := s.conn(); rw != nil {
		return rw.WritePacket(pkt)
	}
	return ErrNotConnected
}

// Close implements io.Closer.
func (s *Server) Close() error {
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
