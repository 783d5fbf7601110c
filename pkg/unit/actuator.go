package unit

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/pins"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Actuator is the Actuator Unit. Every received opcode passes the latch
// in arrival order before the outputs are driven with the latched code,
// and local sensor readings are sent back whenever the scheduler fires.
type Actuator struct {
	*node
	Outputs pins.Outputs
	// Sensors is optional, nothing is sent back without it.
	Sensors pins.Sensors
	Codec   sensor.Codec
	Latch   *valve.Latch

	pending []valve.Code
	written bool
	applied valve.Code
}

// NewActuator creates an Actuator Unit over the transport.
func NewActuator(t radio.PacketReadWriter, outputs pins.Outputs, sensors pins.Sensors, opts Options) *Actuator {
	a := &Actuator{
		Outputs: outputs,
		Sensors: sensors,
		Codec:   sensor.DefaultCodec,
		Latch:   valve.NewLatch(),
	}
	a.node = newNode(RoleActuator, t, opts, decodeOpcode)
	// the latch depends on every opcode and their order.
	a.rx.Records = radio.NewQueue(a.queueLen)
	a.loop.
		AddController(fx.PhaseReceive, fx.ControlFunc(a.receive)).
		AddController(fx.PhaseControl, fx.ControlFunc(a.control)).
		AddController(fx.PhaseActuate, fx.ControlFunc(a.actuate)).
		AddController(fx.PhaseTransmit, fx.ControlFunc(a.transmit))
	return a
}

func decodeOpcode(payload []byte) (interface{}, error) {
	return link.DecodeOpcode(payload)
}

func (a *Actuator) receive(fx.ControlContext) error {
	for rec, ok := a.rx.Next(); ok; rec, ok = a.rx.Next() {
		code := rec.(valve.Code)
		glog.Infof("[%s] RX opcode %s (%s)", a.name, valve.BitString(byte(code)), code.Label())
		a.pending = append(a.pending, code)
	}
	return nil
}

func (a *Actuator) control(cc fx.ControlContext) error {
	pending := a.pending
	a.pending = a.pending[:0]
	for _, code := range pending {
		if err := a.apply(code, cc.Time()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actuator) apply(code valve.Code, now time.Time) error {
	effective, err := a.Latch.Apply(code)
	a.setCode(effective)
	msg := statusMsg(effective, now)
	msg.Received = uint32(code)
	if err != nil {
		var unsafe *valve.UnsafeCodeError
		if !errors.As(err, &unsafe) {
			return err
		}
		atomic.AddUint64(&a.unsafe, 1)
		msg.Rejected = true
		glog.Warningf("[%s] %v", a.name, err)
	}
	a.report(msg)
	return nil
}

func (a *Actuator) actuate(fx.ControlContext) error {
	code := a.Latch.Code()
	if a.written && code == a.applied {
		return nil
	}
	if err := a.Outputs.WriteOutputs(code.Decode()); err != nil {
		return err
	}
	a.written, a.applied = true, code
	glog.Infof("[%s] outputs %s", a.name, code.Decode())
	return nil
}

func (a *Actuator) transmit(cc fx.ControlContext) error {
	if a.Sensors == nil || !a.scheduler.Tick(cc.Time()) {
		return nil
	}
	values, err := a.Sensors.ReadSensors()
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if len(values) > sensor.MaxFields {
		glog.V(2).Infof("[%s] %d sensor readings, sending the first %d", a.name, len(values), sensor.MaxFields)
		values = values[:sensor.MaxFields]
	}
	payload, err := a.Codec.Encode(values...)
	if err != nil {
		return err
	}
	if err := a.send(payload); err != nil {
		return err
	}
	fields := sensor.Decode(payload)
	glog.Infof("[%s] TX sensors %s", a.name, fields)
	a.setSensors(fields)
	a.report(sensorMsg(fields, cc.Time()))
	a.report(a.Stats().Msg())
	return nil
}
