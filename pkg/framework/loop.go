package framework

import (
	"context"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the cycle period when Loop.Interval is not set.
const DefaultInterval = 10 * time.Millisecond

// Loop runs the periodic cycle of a unit. Controllers are grouped
// by Phase and executed in phase order, one cycle at a time, on the
// loop goroutine only.
type Loop struct {
	Interval time.Duration
	Clock    Clock

	controllers [Phases][]Controller
	runners     []Runnable

	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type cycle struct {
	*Loop
	ctx   context.Context
	time  time.Time
	phase Phase
}

var loopCtxKey = &Loop{}

// LoopCtlFrom gets LoopControl from context passed to runnables.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtxKey).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		Clock:    SystemClock,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at the specified phase.
func (l *Loop) AddController(phase Phase, ctls ...Controller) *Loop {
	l.controllers[phase] = append(l.controllers[phase], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions started along with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
	runCtx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(context.WithValue(runCtx, loopCtxKey, LoopControl(l)))
	runner.Go(l.runners...)
	defer func() {
		cancel()
		runner.Wait()
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.RunOnce(ctx)
		case <-l.wakeUpCh:
			l.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single cycle synchronously.
func (l *Loop) RunOnce(ctx context.Context) {
	clock := l.Clock
	if clock == nil {
		clock = SystemClock
	}
	c := &cycle{Loop: l, ctx: ctx, time: clock.Now()}
	for i := 0; i < Phases; i++ {
		c.phase = Phase(i)
		for _, ctl := range l.controllers[i] {
			if err := ctl.Control(c); err != nil {
				glog.Errorf("controller error (%s): %v", c.phase, err)
			}
		}
	}
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (c *cycle) Context() context.Context {
	return c.ctx
}

func (c *cycle) Time() time.Time {
	return c.time
}

func (c *cycle) Phase() Phase {
	return c.phase
}
