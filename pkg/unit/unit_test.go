package unit

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/pins"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/radio/stub"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/telemetry"
	"github.com/robotalks/valvelink/pkg/valve"
)

var testModes = []radio.Mode{radio.ModePolling, radio.ModeCallback}

type testClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.lock.Lock()
	c.now = c.now.Add(d)
	c.lock.Unlock()
}

type testBench struct {
	cmdEp, actEp *stub.Endpoint
	cmdPins      *pins.Sim
	actPins      *pins.Sim
	cmd          *Command
	act          *Actuator
	clock        *testClock
	reports      telemetry.Recorder
}

func newTestBench(t *testing.T, mode radio.Mode) *testBench {
	b := &testBench{
		cmdPins: pins.NewSim(),
		actPins: pins.NewSim(),
		clock:   &testClock{now: time.Unix(1000, 0)},
	}
	b.cmdEp, b.actEp = stub.Pair()
	b.cmd = NewCommand(b.cmdEp, b.cmdPins, Options{
		Name:  "cmd",
		Local: CommandAddress,
		Peer:  ActuatorAddress,
		Mode:  mode,
		Clock: b.clock,
	})
	b.act = NewActuator(b.actEp, b.actPins, b.actPins, Options{
		Name:     "act",
		Local:    ActuatorAddress,
		Peer:     CommandAddress,
		Mode:     mode,
		QueueLen: stub.DefaultBufferLen,
		Clock:    b.clock,
		Jitter:   rand.NewSource(1),
		Reporter: &b.reports,
	})
	return b
}

// start initializes both radios and runs their pumps. The cycles are
// driven by the test through RunOnce.
func (b *testBench) start(t *testing.T) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	for _, r := range []*radio.Radio{b.cmd.Radio(), b.act.Radio()} {
		require.NoError(t, r.Init(ctx))
		go r.Run(ctx)
	}
	return ctx, cancel
}

func cycleUntil(t *testing.T, ctx context.Context, loop *fx.Loop, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		loop.RunOnce(ctx)
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			require.FailNow(t, "condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func outputsEqual(sim *pins.Sim, st valve.State) func() bool {
	return func() bool {
		out, writes := sim.Outputs()
		return writes > 0 && out == st
	}
}

func TestCommandToActuator(t *testing.T) {
	for _, mode := range testModes {
		t.Run(mode.String(), func(t *testing.T) {
			b := newTestBench(t, mode)
			ctx, cancel := b.start(t)
			defer cancel()
			b.cmdPins.SetInputs(valve.State{Fill: true, Check: true})
			b.actPins.SetReadings(12, 34.5, 6)

			b.cmd.Loop().RunOnce(ctx)
			sent := b.cmdEp.Sent()
			require.Len(t, sent, 1)
			require.Equal(t, []byte{0xBB, 0xCC, 5}, sent[0])
			require.Equal(t, valve.CodeFilling, b.cmd.Status().Code)

			cycleUntil(t, ctx, b.act.Loop(), outputsEqual(b.actPins, valve.State{Fill: true, Check: true}))
			require.Equal(t, valve.CodeFilling, b.act.Latch.Code())
			require.Equal(t, valve.CodeFilling, b.act.Status().Code)

			// sensors flow back on the first actuator cycle.
			require.Equal(t, []byte("\xCC\xBB12.0|34.5|6.0"), b.actEp.Sent()[0])
			cycleUntil(t, ctx, b.cmd.Loop(), func() bool {
				return b.cmd.Status().Sensors == sensor.Fields{"12.0", "34.5", "6.0"}
			})

			status, ok := b.reports.Last(telemetry.ValveStatusTypeID).(*telemetry.ValveStatus)
			require.True(t, ok)
			require.Equal(t, uint32(5), status.Code)
			require.Equal(t, "filling", status.Label)
			require.False(t, status.Rejected)
		})
	}
}

func TestActuatorHoldsOnUnsafeOpcode(t *testing.T) {
	for _, mode := range testModes {
		t.Run(mode.String(), func(t *testing.T) {
			b := newTestBench(t, mode)
			ctx, cancel := b.start(t)
			defer cancel()
			filling := valve.State{Fill: true, Check: true}

			b.actEp.Inject(link.Frame(ActuatorAddress, CommandAddress, []byte{5}))
			cycleUntil(t, ctx, b.act.Loop(), outputsEqual(b.actPins, filling))
			_, writes := b.actPins.Outputs()

			b.actEp.Inject(link.Frame(ActuatorAddress, CommandAddress, []byte{7}))
			cycleUntil(t, ctx, b.act.Loop(), func() bool { return b.act.Stats().Unsafe == 1 })

			out, after := b.actPins.Outputs()
			require.Equal(t, filling, out)
			require.Equal(t, writes, after)
			require.Equal(t, valve.CodeFilling, b.act.Latch.Code())

			status := b.reports.Last(telemetry.ValveStatusTypeID).(*telemetry.ValveStatus)
			require.True(t, status.Rejected)
			require.Equal(t, uint32(7), status.Received)
			require.Equal(t, uint32(5), status.Code)
		})
	}
}

func TestActuatorLatchesEveryOpcodeOfACycle(t *testing.T) {
	testCases := []struct {
		name    string
		codes   []byte
		latched valve.Code
		unsafe  uint64
	}{
		{"safe then unsafe", []byte{2, 7}, valve.CodeDumping, 1},
		{"unsafe then safe", []byte{7, 5}, valve.CodeFilling, 1},
		{"safe then safe", []byte{2, 4}, valve.CodeFillReady, 0},
		{"unsafe then unsafe", []byte{3, 6}, valve.CodeOff, 2},
	}
	for _, mode := range testModes {
		for _, tc := range testCases {
			t.Run(mode.String()+"/"+tc.name, func(t *testing.T) {
				b := newTestBench(t, mode)
				ctx, cancel := b.start(t)
				defer cancel()
				for _, code := range tc.codes {
					b.actEp.Inject(link.Frame(ActuatorAddress, CommandAddress, []byte{code}))
				}
				waitPending(t, b.act, len(tc.codes))

				b.act.Loop().RunOnce(ctx)
				require.Equal(t, tc.latched, b.act.Latch.Code())
				out, writes := b.actPins.Outputs()
				require.Equal(t, tc.latched.Decode(), out)
				require.Equal(t, 1, writes)
				require.Equal(t, tc.unsafe, b.act.Stats().Unsafe)
				require.Equal(t, uint64(len(tc.codes)), b.act.Stats().Accepted)
				// no readings to send back, so only one status for each opcode.
				require.Equal(t, len(tc.codes), b.reports.Count())

				last := tc.codes[len(tc.codes)-1]
				status := b.reports.Last(telemetry.ValveStatusTypeID).(*telemetry.ValveStatus)
				require.Equal(t, uint32(last), status.Received)
				require.Equal(t, uint32(tc.latched), status.Code)
				require.Equal(t, valve.Code(last).Unsafe(), status.Rejected)
			})
		}
	}
}

// waitPending waits until n packets or records are ready for one cycle.
func waitPending(t *testing.T, act *Actuator, n int) {
	deadline := time.Now().Add(2 * time.Second)
	for act.rx.Pending() < n {
		if time.Now().After(deadline) {
			require.FailNow(t, "packets not received in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestActuatorDiscardsRejectedPackets(t *testing.T) {
	testCases := []struct {
		name string
		pkt  []byte
		stat func(Stats) uint64
	}{
		{"short", []byte{0xBB}, func(s Stats) uint64 { return s.Malformed }},
		{"wrong recipient", []byte{0xAA, 0xCC, 4}, func(s Stats) uint64 { return s.Mismatched }},
		{"wrong sender", []byte{0xBB, 0x99, 4}, func(s Stats) uint64 { return s.Mismatched }},
		{"out of range", []byte{0xBB, 0xCC, 200}, func(s Stats) uint64 { return s.Malformed }},
		{"long opcode", []byte{0xBB, 0xCC, 4, 4}, func(s Stats) uint64 { return s.Malformed }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBench(t, radio.ModeCallback)
			ctx, cancel := b.start(t)
			defer cancel()
			b.actEp.Inject(tc.pkt)
			cycleUntil(t, ctx, b.act.Loop(), func() bool { return tc.stat(b.act.Stats()) == 1 })
			b.act.Loop().RunOnce(ctx)

			out, _ := b.actPins.Outputs()
			require.Equal(t, valve.State{}, out)
			require.Equal(t, valve.CodeOff, b.act.Latch.Code())
			require.Zero(t, b.act.Stats().Accepted)
			require.Zero(t, b.act.Stats().Unsafe)
		})
	}
}

func TestCommandTransmitSchedule(t *testing.T) {
	b := newTestBench(t, radio.ModePolling)
	ctx, cancel := b.start(t)
	defer cancel()
	b.cmdPins.SetInputs(valve.State{Dump: true})

	b.cmd.Loop().RunOnce(ctx)
	require.Len(t, b.cmdEp.Sent(), 1)

	interval := b.cmd.scheduler.Interval()
	b.clock.advance(interval)
	b.cmd.Loop().RunOnce(ctx)
	require.Len(t, b.cmdEp.Sent(), 1)

	b.clock.advance(time.Millisecond)
	b.cmd.Loop().RunOnce(ctx)
	require.Len(t, b.cmdEp.Sent(), 2)
	require.Equal(t, uint64(2), b.cmd.Stats().Sent)
}

func TestRelayCommand(t *testing.T) {
	ep := stub.New()
	relay := &pins.Relay{}
	clock := &testClock{now: time.Unix(1000, 0)}
	cmd := NewCommand(ep, relay, Options{Local: CommandAddress, Peer: ActuatorAddress, Clock: clock})
	ctx := context.Background()
	require.NoError(t, cmd.Init(ctx))

	handle := telemetry.RelayHandler(func(c valve.Code) {
		require.NoError(t, relay.Set(c))
	})
	// codes not fitting in 3 bits never reach the air.
	for _, code := range []uint32{uint32(valve.CodeDumping), 13, 261} {
		encoded, err := telemetry.Encode(&telemetry.RelayCommand{Code: code})
		require.NoError(t, err)
		handle(telemetry.RelayTopic("cmd"), encoded)
		cmd.Loop().RunOnce(ctx)
		clock.advance(2 * time.Second)
	}
	require.Equal(t, [][]byte{{0xBB, 0xCC, 2}, {0xBB, 0xCC, 2}, {0xBB, 0xCC, 2}}, ep.Sent())
}

func TestActuatorSendsFirstThreeReadings(t *testing.T) {
	ep := stub.New()
	sim := pins.NewSim()
	sim.SetReadings(1, 2.5, 3, 4)
	act := NewActuator(ep, sim, sim, Options{Local: ActuatorAddress, Peer: CommandAddress})
	ctx := context.Background()
	require.NoError(t, act.Init(ctx))
	act.Loop().RunOnce(ctx)
	require.Equal(t, [][]byte{[]byte("\xCC\xBB1.0|2.5|3.0")}, ep.Sent())
	require.Equal(t, sensor.Fields{"1.0", "2.5", "3.0"}, act.Status().Sensors)
}

func TestTransceiverInitFailure(t *testing.T) {
	ep := stub.New()
	ep.InitErr = errors.New("no response from chip")
	sim := pins.NewSim()
	sim.SetReadings(1, 2, 3)
	act := NewActuator(ep, sim, sim, Options{Local: ActuatorAddress, Peer: CommandAddress, Interval: time.Millisecond})

	err := act.Run(context.Background())
	require.True(t, errors.Is(err, radio.ErrTransceiverInit))
	require.False(t, act.Radio().Ready())
	_, writes := sim.Outputs()
	require.Zero(t, writes)
	require.Empty(t, ep.Sent())
}

func TestRun(t *testing.T) {
	cmdEp, actEp := stub.Pair()
	cmdPins, actPins := pins.NewSim(), pins.NewSim()
	cmdPins.SetInputs(valve.State{Fill: true})
	cmd := NewCommand(cmdEp, cmdPins, Options{Local: CommandAddress, Peer: ActuatorAddress, Interval: time.Millisecond})
	act := NewActuator(actEp, actPins, nil, Options{
		Local:    ActuatorAddress,
		Peer:     CommandAddress,
		Mode:     radio.ModeCallback,
		Interval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)
	for _, u := range []Unit{cmd, act} {
		go func(u Unit) { errCh <- u.Run(ctx) }(u)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !outputsEqual(actPins, valve.State{Fill: true})() {
		require.True(t, time.Now().Before(deadline), "outputs not applied")
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, <-errCh)
	require.Empty(t, actEp.Sent())
}
