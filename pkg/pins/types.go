// Package pins defines the hardware collaborators of a unit: digital
// switch inputs, valve outputs and analog sensors.
package pins

import (
	"fmt"
	"sync"

	"github.com/robotalks/valvelink/pkg/valve"
)

// Inputs reads the three control switches of the Command Unit.
type Inputs interface {
	ReadInputs() (valve.State, error)
}

// Outputs drives the three valve solenoids of the Actuator Unit.
type Outputs interface {
	WriteOutputs(valve.State) error
}

// Sensors samples up to three readings.
type Sensors interface {
	ReadSensors() ([]float64, error)
}

// OutputsMux drives several Outputs with the same state, e.g. real
// solenoids and a simulated tank behind them.
type OutputsMux []Outputs

// WriteOutputs implements Outputs. All outputs are written even if one
// fails, the first error is returned.
func (m OutputsMux) WriteOutputs(st valve.State) (err error) {
	for _, out := range m {
		if e := out.WriteOutputs(st); e != nil && err == nil {
			err = e
		}
	}
	return
}

// Sim is an in-memory implementation of Inputs, Outputs and Sensors.
type Sim struct {
	lock     sync.Mutex
	inputs   valve.State
	outputs  valve.State
	writes   int
	readings []float64
}

// NewSim creates a Sim with everything off.
func NewSim() *Sim {
	return &Sim{}
}

// SetInputs sets the switch positions.
func (s *Sim) SetInputs(st valve.State) {
	s.lock.Lock()
	s.inputs = st
	s.lock.Unlock()
}

// SetReadings sets the sensor readings.
func (s *Sim) SetReadings(values ...float64) {
	s.lock.Lock()
	s.readings = append([]float64(nil), values...)
	s.lock.Unlock()
}

// ReadInputs implements Inputs.
func (s *Sim) ReadInputs() (valve.State, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.inputs, nil
}

// WriteOutputs implements Outputs.
func (s *Sim) WriteOutputs(st valve.State) error {
	s.lock.Lock()
	s.outputs = st
	s.writes++
	s.lock.Unlock()
	return nil
}

// Outputs returns the last written outputs and the number of writes.
func (s *Sim) Outputs() (valve.State, int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.outputs, s.writes
}

// ReadSensors implements Sensors.
func (s *Sim) ReadSensors() ([]float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]float64(nil), s.readings...), nil
}

// Relay is the Inputs of a Command Unit without switches: it relays
// the last opcode set by an operator.
type Relay struct {
	lock sync.Mutex
	code valve.Code
}

// Set replaces the relayed code. Unsafe codes are relayed as well;
// filtering them is the job of the Actuator Unit. A code not fitting in
// 3 bits is refused and the previous code is kept.
func (r *Relay) Set(c valve.Code) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", valve.ErrCodeOutOfRange, byte(c))
	}
	r.lock.Lock()
	r.code = c
	r.lock.Unlock()
	return nil
}

// ReadInputs implements Inputs.
func (r *Relay) ReadInputs() (valve.State, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.code.Decode(), nil
}
