package radio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/valvelink/pkg/link"
)

// Mode selects how received packets reach the unit cycle.
type Mode int

const (
	// ModePolling processes packets synchronously when the cycle asks.
	ModePolling Mode = iota
	// ModeCallback processes packets on arrival and publishes the
	// decoded record to a Slot read by the cycle.
	ModeCallback
)

// ParseMode parses "polling" or "callback".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "polling", "poll":
		return ModePolling, nil
	case "callback", "interrupt":
		return ModeCallback, nil
	}
	return ModePolling, fmt.Errorf("unknown receive mode %q", s)
}

func (m Mode) String() string {
	if m == ModeCallback {
		return "callback"
	}
	return "polling"
}

// DecodeFunc converts an accepted payload into a complete record.
type DecodeFunc func(payload []byte) (interface{}, error)

// RejectFunc is notified of every rejected packet.
type RejectFunc func(raw []byte, err error)

// Stats counts receive path events.
type Stats struct {
	Received   uint64
	Accepted   uint64
	Mismatched uint64
	Malformed  uint64
}

// ReceivePath filters and decodes packets from a Radio. The decode logic
// is shared by both modes; they differ only in which goroutine runs it
// and how the record reaches Next.
type ReceivePath struct {
	Name   string
	Filter link.Filter
	Decode DecodeFunc
	Reject RejectFunc
	// Records carries decoded records in ModeCallback. It is a Slot
	// unless replaced before the radio runs.
	Records Records

	mode  Mode
	radio *Radio
	stats Stats
}

// NewReceivePath creates a ReceivePath. In ModeCallback it registers
// itself as the packet handler of r.
func NewReceivePath(r *Radio, mode Mode, filter link.Filter, decode DecodeFunc) *ReceivePath {
	p := &ReceivePath{
		Filter:  filter,
		Decode:  decode,
		Records: NewSlot(),

		mode:  mode,
		radio: r,
	}
	if mode == ModeCallback {
		r.OnReceive(p)
	}
	return p
}

// Mode returns the delivery mode.
func (p *ReceivePath) Mode() Mode {
	return p.mode
}

// Next yields the next complete decoded record, or false if none.
// In ModePolling it drains available packets until one is accepted.
func (p *ReceivePath) Next() (interface{}, bool) {
	if p.mode == ModeCallback {
		return p.Records.Take()
	}
	for {
		raw, ok := p.radio.Poll()
		if !ok {
			return nil, false
		}
		if rec, err := p.process(raw); err == nil {
			return rec, true
		}
	}
}

// Pending returns the number of packets or records waiting for Next.
func (p *ReceivePath) Pending() int {
	if p.mode == ModeCallback {
		return p.Records.Len()
	}
	return p.radio.Pending()
}

// HandlePacket implements PacketHandler for ModeCallback.
func (p *ReceivePath) HandlePacket(ctx context.Context, raw []byte) {
	rec, err := p.process(raw)
	if err != nil {
		return
	}
	if !p.Records.Put(ctx, rec) {
		glog.Warningf("[%s] RX record dropped: %v", p.Name, ctx.Err())
	}
}

// Stats returns a snapshot of the counters.
func (p *ReceivePath) Stats() Stats {
	return Stats{
		Received:   atomic.LoadUint64(&p.stats.Received),
		Accepted:   atomic.LoadUint64(&p.stats.Accepted),
		Mismatched: atomic.LoadUint64(&p.stats.Mismatched),
		Malformed:  atomic.LoadUint64(&p.stats.Malformed),
	}
}

func (p *ReceivePath) process(raw []byte) (interface{}, error) {
	atomic.AddUint64(&p.stats.Received, 1)
	payload, err := p.Filter.Parse(raw)
	var rec interface{}
	if err == nil {
		rec, err = p.Decode(payload)
	}
	if err != nil {
		var mismatch *link.AddressMismatchError
		if errors.As(err, &mismatch) {
			atomic.AddUint64(&p.stats.Mismatched, 1)
		} else {
			atomic.AddUint64(&p.stats.Malformed, 1)
		}
		glog.Warningf("[%s] RX rejected % x: %v", p.Name, raw, err)
		if fn := p.Reject; fn != nil {
			fn(raw, err)
		}
		return nil, err
	}
	atomic.AddUint64(&p.stats.Accepted, 1)
	return rec, nil
}
