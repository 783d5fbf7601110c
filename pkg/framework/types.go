package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// Controller defines the logic executed once per cycle.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// Clock provides the current monotonic time.
type Clock interface {
	Now() time.Time
}

// ClockFunc is the func form of Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads time.Now.
var SystemClock Clock = ClockFunc(time.Now)

// ControlContext provides the context of current cycle.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context
	// Phase gets the phase currently being executed.
	Phase() Phase

	LoopControl
}

// LoopControl exposes access to the running loop.
type LoopControl interface {
	// TriggerNext schedules the next cycle to be executed
	// immediately after the current one.
	TriggerNext()
}

// Phase orders controllers inside a single cycle.
type Phase int

// Phases of a cycle, executed in declaration order.
const (
	// PhaseReceive consumes packets delivered since the last cycle.
	PhaseReceive Phase = iota
	// PhaseSense samples local inputs and sensors.
	PhaseSense
	// PhaseControl makes decisions on received and sensed state.
	PhaseControl
	// PhaseActuate writes outputs.
	PhaseActuate
	// PhaseTransmit sends packets when the scheduler fires.
	PhaseTransmit
	// PhaseReport publishes status after everything else.
	PhaseReport

	// Phases is the total number of phases.
	Phases int = iota
)

var phaseNames = [...]string{"receive", "sense", "control", "actuate", "transmit", "report"}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "phase?"
}
