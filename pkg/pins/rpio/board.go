// Package rpio drives unit pins through Raspberry Pi GPIO.
package rpio

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/robotalks/valvelink/pkg/valve"
)

// PinMap assigns BCM pin numbers to the valve channels.
type PinMap struct {
	Fill  int `yaml:"fill"`
	Dump  int `yaml:"dump"`
	Check int `yaml:"check"`
}

// Board implements pins.Inputs and pins.Outputs on GPIO.
// Inputs are pulled up and read active low, as switches to ground.
type Board struct {
	In  *PinMap
	Out *PinMap

	lock sync.Mutex
}

// Open maps GPIO memory and configures the pins. Either map may be nil.
func Open(in, out *PinMap) (*Board, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	b := &Board{In: in, Out: out}
	if in != nil {
		for _, n := range in.pins() {
			pin := rpio.Pin(n)
			pin.Input()
			pin.PullUp()
		}
	}
	if out != nil {
		for _, n := range out.pins() {
			pin := rpio.Pin(n)
			pin.Output()
			pin.Low()
		}
	}
	return b, nil
}

// ReadInputs implements pins.Inputs.
func (b *Board) ReadInputs() (valve.State, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return valve.State{
		Fill:  rpio.Pin(b.In.Fill).Read() == rpio.Low,
		Dump:  rpio.Pin(b.In.Dump).Read() == rpio.Low,
		Check: rpio.Pin(b.In.Check).Read() == rpio.Low,
	}, nil
}

// WriteOutputs implements pins.Outputs.
func (b *Board) WriteOutputs(st valve.State) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	write(b.Out.Fill, st.Fill)
	write(b.Out.Dump, st.Dump)
	write(b.Out.Check, st.Check)
	return nil
}

// Close releases all outputs and unmaps GPIO memory.
func (b *Board) Close() error {
	if b.Out != nil {
		b.WriteOutputs(valve.State{})
	}
	return rpio.Close()
}

func (m *PinMap) pins() []int {
	return []int{m.Fill, m.Dump, m.Check}
}

func write(n int, on bool) {
	if on {
		rpio.Pin(n).High()
	} else {
		rpio.Pin(n).Low()
	}
}
