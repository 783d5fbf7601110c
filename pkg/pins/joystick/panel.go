// Package joystick uses three joystick buttons as the control switches
// of a Command Unit, handy on a bench without a switch panel.
package joystick

import (
	"context"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/valvelink/pkg/valve"
)

// Buttons assigns button indices to valve channels.
type Buttons struct {
	Fill  int `yaml:"fill"`
	Dump  int `yaml:"dump"`
	Check int `yaml:"check"`
}

// DefaultButtons maps the first three buttons.
var DefaultButtons = Buttons{Fill: 0, Dump: 1, Check: 2}

// Panel implements pins.Inputs. A button held down is a closed switch.
type Panel struct {
	Buttons Buttons
	Name    string

	dev     *device
	lock    sync.Mutex
	pressed map[int]bool
}

// Open opens /dev/input/js<index>.
func Open(index int, buttons Buttons) (*Panel, error) {
	dev, err := openDevice(index)
	if err != nil {
		return nil, err
	}
	for _, n := range []int{buttons.Fill, buttons.Dump, buttons.Check} {
		if n < 0 || n >= int(dev.buttons) {
			dev.close()
			return nil, fmt.Errorf("joystick %q has %d buttons, button %d unavailable", dev.name, dev.buttons, n)
		}
	}
	return &Panel{Buttons: buttons, Name: dev.name, dev: dev, pressed: make(map[int]bool)}, nil
}

// Run implements Runnable, tracking button events until ctx is done
// or the device is unplugged.
func (p *Panel) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		for {
			index, pressed, err := p.dev.readButton()
			if err != nil {
				errCh <- err
				return
			}
			glog.V(1).Infof("joystick button %d pressed=%v", index, pressed)
			p.lock.Lock()
			p.pressed[index] = pressed
			p.lock.Unlock()
		}
	}()
	select {
	case <-ctx.Done():
		p.dev.close()
		return ctx.Err()
	case err := <-errCh:
		p.release()
		return err
	}
}

// ReadInputs implements pins.Inputs.
func (p *Panel) ReadInputs() (valve.State, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return valve.State{
		Fill:  p.pressed[p.Buttons.Fill],
		Dump:  p.pressed[p.Buttons.Dump],
		Check: p.pressed[p.Buttons.Check],
	}, nil
}

func (p *Panel) release() {
	p.lock.Lock()
	p.pressed = make(map[int]bool)
	p.lock.Unlock()
}
