package unit

import (
	"github.com/golang/glog"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/pins"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Command is the Command Unit. It samples three inputs each cycle and
// transmits them as an opcode whenever the scheduler fires. Sensor
// fields received from the Actuator Unit are logged and reported.
type Command struct {
	*node
	Inputs pins.Inputs

	sensed valve.Code
}

// NewCommand creates a Command Unit over the transport.
func NewCommand(t radio.PacketReadWriter, inputs pins.Inputs, opts Options) *Command {
	c := &Command{Inputs: inputs}
	c.node = newNode(RoleCommand, t, opts, decodeSensors)
	c.loop.
		AddController(fx.PhaseReceive, fx.ControlFunc(c.receive)).
		AddController(fx.PhaseSense, fx.ControlFunc(c.sense)).
		AddController(fx.PhaseTransmit, fx.ControlFunc(c.transmit))
	return c
}

func decodeSensors(payload []byte) (interface{}, error) {
	return sensor.Decode(payload), nil
}

func (c *Command) receive(cc fx.ControlContext) error {
	var (
		fields sensor.Fields
		got    bool
	)
	for rec, ok := c.rx.Next(); ok; rec, ok = c.rx.Next() {
		fields, got = rec.(sensor.Fields), true
	}
	if !got {
		return nil
	}
	glog.Infof("[%s] RX sensors %s", c.name, fields)
	c.setSensors(fields)
	c.report(sensorMsg(fields, cc.Time()))
	return nil
}

func (c *Command) sense(fx.ControlContext) error {
	st, err := c.Inputs.ReadInputs()
	if err != nil {
		return err
	}
	c.sensed = st.Code()
	return nil
}

func (c *Command) transmit(cc fx.ControlContext) error {
	if !c.scheduler.Tick(cc.Time()) {
		return nil
	}
	code := c.sensed
	if err := c.send(link.EncodeOpcode(code)); err != nil {
		return err
	}
	glog.Infof("[%s] TX opcode %s (%s)", c.name, valve.BitString(byte(code)), code.Label())
	c.setCode(code)
	c.report(statusMsg(code, cc.Time()))
	c.report(c.Stats().Msg())
	return nil
}
