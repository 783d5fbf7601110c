// Package unit implements the two roles paired over the radio link:
// the Command Unit sending valve opcodes and the Actuator Unit
// applying them and sending back sensor readings.
package unit

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/schedule"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/telemetry"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Roles.
const (
	RoleCommand  = "command"
	RoleActuator = "actuator"
)

// Default addresses of the pairing.
const (
	CommandAddress  link.Address = 0xCC
	ActuatorAddress link.Address = 0xBB
)

// Unit is a running role.
type Unit interface {
	Run(ctx context.Context) error
	Status() Status
}

// Options are common to both roles.
type Options struct {
	Name  string
	Local link.Address
	Peer  link.Address
	Mode  radio.Mode
	// QueueLen is the poll queue depth, DefaultQueueLen if zero.
	QueueLen int
	// Interval is the cycle period of the loop.
	Interval time.Duration
	Clock    fx.Clock
	// Jitter is the random source of the scheduler.
	Jitter   rand.Source
	Reporter telemetry.Reporter
	// Runnables start along with the cycle, after the transceiver is up.
	Runnables []fx.Runnable
}

// Stats counts link events of a unit.
type Stats struct {
	radio.Stats
	Sent       uint64
	SendErrors uint64
	Unsafe     uint64
	Dropped    uint64
}

// Msg converts to the telemetry message.
func (s Stats) Msg() *telemetry.LinkStats {
	return &telemetry.LinkStats{
		Sent:       s.Sent,
		Received:   s.Received,
		Accepted:   s.Accepted,
		Mismatched: s.Mismatched,
		Malformed:  s.Malformed,
		Unsafe:     s.Unsafe,
		Dropped:    s.Dropped,
	}
}

// Status is a snapshot of a unit.
type Status struct {
	Role string
	// Code is the latched code of an Actuator Unit, or the last code
	// sent by a Command Unit.
	Code valve.Code
	// Sensors are the last sensor fields sent or received.
	Sensors sensor.Fields
	Stats   Stats
}

type node struct {
	role      string
	name      string
	reporter  telemetry.Reporter
	radio     *radio.Radio
	rx        *radio.ReceivePath
	filter    link.Filter
	scheduler *schedule.Scheduler
	loop      *fx.Loop
	queueLen  int

	sent       uint64
	sendErrors uint64
	unsafe     uint64

	lock    sync.RWMutex
	code    valve.Code
	sensors sensor.Fields
}

func newNode(role string, t radio.PacketReadWriter, opts Options, decode radio.DecodeFunc) *node {
	n := &node{
		role:      role,
		name:      opts.Name,
		reporter:  opts.Reporter,
		filter:    link.Filter{Local: opts.Local, Peer: opts.Peer},
		scheduler: schedule.New(opts.Jitter),
		loop:      fx.NewLoop(),
	}
	if n.name == "" {
		n.name = role
	}
	queueLen := opts.QueueLen
	if queueLen <= 0 {
		queueLen = radio.DefaultQueueLen
	}
	n.queueLen = queueLen
	n.radio = radio.NewWithQueue(t, queueLen)
	n.rx = radio.NewReceivePath(n.radio, opts.Mode, n.filter, decode)
	n.rx.Name = n.name
	if opts.Interval > 0 {
		n.loop.Interval = opts.Interval
	}
	if opts.Clock != nil {
		n.loop.Clock = opts.Clock
	}
	n.loop.AddRunnable(opts.Runnables...)
	return n
}

// Name implements Named.
func (n *node) Name() string {
	return n.name
}

// Radio exposes the radio of the unit.
func (n *node) Radio() *radio.Radio {
	return n.radio
}

// Loop exposes the cycle of the unit.
func (n *node) Loop() *fx.Loop {
	return n.loop
}

// Init initializes the transceiver. On failure the unit must not run.
func (n *node) Init(ctx context.Context) error {
	if err := n.radio.Init(ctx); err != nil {
		glog.Errorf("[%s] %v", n.name, err)
		return err
	}
	glog.Infof("[%s] %s unit ready %s <-> %s, %s receive",
		n.name, n.role, n.filter.Local, n.filter.Peer, n.rx.Mode())
	return nil
}

// Run initializes the transceiver, then runs the radio pump and the
// cycle until ctx is canceled or the transport fails. It never starts
// the cycle if the transceiver fails to initialize.
func (n *node) Run(ctx context.Context) error {
	if err := n.Init(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopAll := func(r fx.Runnable) fx.Runnable {
		return fx.RunFunc(func(ctx context.Context) error {
			defer cancel()
			return r.Run(ctx)
		})
	}
	return fx.NewRunnerWith(runCtx).
		Go(fx.NamedRun(n.name+"/radio", stopAll(n.radio))).
		Go(fx.NamedRun(n.name+"/loop", stopAll(n.loop))).
		Wait()
}

// Stats returns a snapshot of the counters.
func (n *node) Stats() Stats {
	return Stats{
		Stats:      n.rx.Stats(),
		Sent:       atomic.LoadUint64(&n.sent),
		SendErrors: atomic.LoadUint64(&n.sendErrors),
		Unsafe:     atomic.LoadUint64(&n.unsafe),
		Dropped:    n.radio.Dropped(),
	}
}

// Status implements Unit.
func (n *node) Status() Status {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return Status{Role: n.role, Code: n.code, Sensors: n.sensors, Stats: n.Stats()}
}

func (n *node) send(payload []byte) error {
	if err := n.radio.Send(n.filter.Frame(payload)); err != nil {
		atomic.AddUint64(&n.sendErrors, 1)
		return err
	}
	atomic.AddUint64(&n.sent, 1)
	return nil
}

func (n *node) report(msg telemetry.Message) {
	if n.reporter == nil {
		return
	}
	if err := n.reporter.Report(msg); err != nil {
		glog.Warningf("[%s] report %T: %v", n.name, msg, err)
	}
}

func (n *node) setCode(c valve.Code) {
	n.lock.Lock()
	n.code = c
	n.lock.Unlock()
}

func (n *node) setSensors(f sensor.Fields) {
	n.lock.Lock()
	n.sensors = f
	n.lock.Unlock()
}

func statusMsg(c valve.Code, now time.Time) *telemetry.ValveStatus {
	st := c.Decode()
	return &telemetry.ValveStatus{
		Code:     uint32(c),
		Label:    c.Label().String(),
		Fill:     st.Fill,
		Dump:     st.Dump,
		Check:    st.Check,
		UnixNano: now.UnixNano(),
	}
}

func sensorMsg(f sensor.Fields, now time.Time) *telemetry.SensorReport {
	msg := &telemetry.SensorReport{Fields: f[:], UnixNano: now.UnixNano()}
	if values, err := f.Values(); err == nil {
		msg.Values = values
	}
	return msg
}
