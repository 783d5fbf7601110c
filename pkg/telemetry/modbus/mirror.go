// Package modbus mirrors actuator status into holding registers of a
// Modbus TCP server, for supervisory systems that only speak Modbus.
package modbus

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/robotalks/valvelink/pkg/telemetry"
)

// Register offsets relative to Config.Base.
const (
	RegLatched = iota
	RegFill
	RegDump
	RegCheck
	RegAccepted
	RegRejected

	NumRegs
)

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = time.Second

// RegisterWriter is the subset of modbus.Client used by Mirror.
type RegisterWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Config configures a Mirror.
type Config struct {
	Endpoint string
	UnitID   uint8
	Base     uint16
	Timeout  time.Duration
}

// Mirror implements telemetry.Reporter by writing registers
// [latched, fill, dump, check, accepted, rejected] starting at Base.
type Mirror struct {
	Base uint16

	mu      sync.Mutex
	client  RegisterWriter
	handler *modbus.TCPClientHandler
	regs    [NumRegs]uint16
}

// NewMirror connects to a Modbus TCP endpoint.
func NewMirror(cfg Config) (*Mirror, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus mirror: endpoint required")
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	if h.Timeout == 0 {
		h.Timeout = DefaultTimeout
	}
	h.SlaveId = cfg.UnitID
	if err := h.Connect(); err != nil {
		return nil, err
	}
	m := NewMirrorWith(modbus.NewClient(h), cfg.Base)
	m.handler = h
	return m, nil
}

// NewMirrorWith creates a Mirror over an existing client.
func NewMirrorWith(client RegisterWriter, base uint16) *Mirror {
	return &Mirror{Base: base, client: client}
}

// Report implements telemetry.Reporter.
func (m *Mirror) Report(msg telemetry.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := msg.(type) {
	case *telemetry.ValveStatus:
		m.regs[RegLatched] = uint16(v.Code)
		m.regs[RegFill] = flag(v.Fill)
		m.regs[RegDump] = flag(v.Dump)
		m.regs[RegCheck] = flag(v.Check)
	case *telemetry.LinkStats:
		m.regs[RegAccepted] = uint16(v.Accepted)
		m.regs[RegRejected] = uint16(v.Mismatched + v.Malformed + v.Unsafe)
	default:
		return nil
	}
	return m.write()
}

// Registers returns the current register values.
func (m *Mirror) Registers() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	regs := make([]uint16, NumRegs)
	copy(regs, m.regs[:])
	return regs
}

// Close implements io.Closer.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler != nil {
		return m.handler.Close()
	}
	return nil
}

func (m *Mirror) write() error {
	_, err := m.client.WriteMultipleRegisters(m.Base, NumRegs, packRegisters(m.regs[:]))
	return err
}

func flag(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
