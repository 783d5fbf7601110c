// Package tank simulates the plumbing behind the Actuator Unit: a
// supply, a line between the fill, dump and check valves, and a tank.
// It drives the pressure sensors from the valve outputs so an actuator
// runs end to end without hardware.
package tank

import (
	"math"
	"sync"
	"time"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Config holds the physical constants.
type Config struct {
	// SupplyPressure is the constant pressure upstream of the fill valve.
	SupplyPressure float64 `yaml:"supply_pressure"`
	// FillTau is the time constant of the line reaching supply pressure.
	FillTau time.Duration `yaml:"fill_tau"`
	// DumpTau is the time constant of the line venting.
	DumpTau time.Duration `yaml:"dump_tau"`
	// CheckTau is the time constant of the line and tank equalizing.
	CheckTau time.Duration `yaml:"check_tau"`
	// TankRatio is the tank volume relative to the line volume.
	TankRatio float64 `yaml:"tank_ratio"`
}

// DefaultConfig is a small bench setup.
var DefaultConfig = Config{
	SupplyPressure: 100,
	FillTau:        500 * time.Millisecond,
	DumpTau:        300 * time.Millisecond,
	CheckTau:       time.Second,
	TankRatio:      10,
}

const maxStep = 10 * time.Millisecond

// Tank implements pins.Outputs and pins.Sensors.
// Readings are supply, line and tank pressure.
type Tank struct {
	Config Config
	Clock  fx.Clock

	lock   sync.Mutex
	valves valve.State
	line   float64
	tank   float64
	last   time.Time
}

// New creates a depressurized Tank.
func New(conf Config, clock fx.Clock) *Tank {
	if clock == nil {
		clock = fx.SystemClock
	}
	return &Tank{Config: conf, Clock: clock}
}

// WriteOutputs implements pins.Outputs.
func (t *Tank) WriteOutputs(st valve.State) error {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.estimate(t.Clock.Now())
	t.valves = st
	return nil
}

// ReadSensors implements pins.Sensors.
func (t *Tank) ReadSensors() ([]float64, error) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.estimate(t.Clock.Now())
	return []float64{round(t.Config.SupplyPressure), round(t.line), round(t.tank)}, nil
}

// Valves returns the current valve state.
func (t *Tank) Valves() valve.State {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.valves
}

func (t *Tank) estimate(now time.Time) {
	if t.last.IsZero() || !now.After(t.last) {
		t.last = now
		return
	}
	for t.last.Before(now) {
		dt := now.Sub(t.last)
		if dt > maxStep {
			dt = maxStep
		}
		t.step(dt)
		t.last = t.last.Add(dt)
	}
}

func (t *Tank) step(dt time.Duration) {
	if t.valves.Fill {
		t.line += (t.Config.SupplyPressure - t.line) * relax(dt, t.Config.FillTau)
	}
	if t.valves.Dump {
		t.line -= t.line * relax(dt, t.Config.DumpTau)
	}
	if t.valves.Check {
		ratio := t.Config.TankRatio
		if ratio <= 0 {
			ratio = 1
		}
		flow := (t.line - t.tank) * relax(dt, t.Config.CheckTau)
		t.line -= flow * ratio / (ratio + 1)
		t.tank += flow / (ratio + 1)
	}
}

func relax(dt, tau time.Duration) float64 {
	if tau <= 0 {
		return 1
	}
	return 1 - math.Exp(-float64(dt)/float64(tau))
}

func round(v float64) float64 {
	return math.Round(v*10) / 10
}
