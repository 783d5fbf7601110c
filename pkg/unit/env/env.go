package env

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/golang/glog"

	fx "github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/pins"
	"github.com/robotalks/valvelink/pkg/pins/joystick"
	"github.com/robotalks/valvelink/pkg/pins/rpio"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/radio/mqtt"
	"github.com/robotalks/valvelink/pkg/radio/stream"
	"github.com/robotalks/valvelink/pkg/radio/stub"
	"github.com/robotalks/valvelink/pkg/radio/websocket"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/sim/tank"
	"github.com/robotalks/valvelink/pkg/telemetry"
	"github.com/robotalks/valvelink/pkg/telemetry/modbus"
	"github.com/robotalks/valvelink/pkg/unit"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Env holds the collaborators of a unit built from Config.
type Env struct {
	Config    *Config
	Transport radio.PacketReadWriter
	Inputs    pins.Inputs
	Outputs   pins.Outputs
	Sensors   pins.Sensors
	Reporters telemetry.Reporters
	// Relay is set when the inputs source is relay.
	Relay *pins.Relay
	// Queue is the telemetry MQTT connection, if configured.
	Queue     *mqtt.Queue
	Runnables []fx.Runnable

	closers []io.Closer
}

// NewEnv creates Env from config. Transports are connected lazily in
// the transceiver init of the unit.
func (c *Config) NewEnv(ctx context.Context) (env *Env, err error) {
	env = &Env{Config: c}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()
	if env.Transport, err = c.newTransport(); err != nil {
		return
	}
	env.addCloser(env.Transport)

	if c.Telemetry.MQTTURL != "" {
		if env.Queue, err = mqtt.NewQueueFromURL(c.Telemetry.MQTTURL); err != nil {
			return env, fmt.Errorf("telemetry MQTT: %w", err)
		}
		connCtx, cancel := context.WithTimeout(ctx, c.Transport.Timeout)
		err = env.Queue.Connect(connCtx)
		cancel()
		if err != nil {
			return env, fmt.Errorf("telemetry MQTT connect: %w", err)
		}
		env.closers = append(env.closers, env.Queue)
		pub := telemetry.NewPublisher(env.Queue, c.ID)
		opts := c.Options()
		meta := telemetry.Meta{Role: c.Role, Local: opts.Local.String(), Peer: opts.Peer.String(), Receive: opts.Mode.String()}
		if err := pub.PublishMeta(meta); err != nil {
			glog.Warningf("publish meta: %v", err)
		}
		env.Reporters = append(env.Reporters, pub)
	}

	switch c.Role {
	case unit.RoleCommand:
		err = env.setupCommand()
	case unit.RoleActuator:
		err = env.setupActuator()
	}
	return
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv(ctx context.Context) *Env {
	env, err := c.NewEnv(ctx)
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// Options returns unit options wired with the env.
func (e *Env) Options() unit.Options {
	opts := e.Config.Options()
	if len(e.Reporters) > 0 {
		opts.Reporter = e.Reporters
	}
	opts.Runnables = e.Runnables
	return opts
}

// NewUnit creates the unit of the configured role.
func (e *Env) NewUnit() unit.Unit {
	if e.Config.Role == unit.RoleActuator {
		act := unit.NewActuator(e.Transport, e.Outputs, e.Sensors, e.Options())
		act.Codec = sensor.Codec{Precision: e.Config.Sensors.Precision}
		return act
	}
	return unit.NewCommand(e.Transport, e.Inputs, e.Options())
}

// Close releases everything opened by NewEnv.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs.Add(e.closers[i].Close())
	}
	e.closers = nil
	return errs.Aggregate()
}

func (e *Env) addCloser(v interface{}) {
	if closer, ok := v.(io.Closer); ok {
		e.closers = append(e.closers, closer)
	}
}

func (e *Env) setupCommand() error {
	c := e.Config
	switch c.Inputs.Source {
	case SourceSim:
		e.Inputs = pins.NewSim()
	case SourceRPIO:
		board, err := rpio.Open(&c.Inputs.Pins, nil)
		if err != nil {
			return fmt.Errorf("rpio: %w", err)
		}
		e.addCloser(board)
		e.Inputs = board
	case SourceJoystick:
		panel, err := joystick.Open(c.Inputs.Joystick, c.Inputs.Buttons)
		if err != nil {
			return fmt.Errorf("joystick: %w", err)
		}
		glog.Infof("joystick %q fill=%d dump=%d check=%d",
			panel.Name, c.Inputs.Buttons.Fill, c.Inputs.Buttons.Dump, c.Inputs.Buttons.Check)
		e.Runnables = append(e.Runnables, fx.NamedRun("joystick", panel))
		e.Inputs = panel
	case SourceRelay:
		if e.Queue == nil {
			return fmt.Errorf("inputs %s requires a telemetry MQTT URL", SourceRelay)
		}
		e.Relay = &pins.Relay{}
		e.Inputs = e.Relay
		telemetry.SubscribeRelay(e.Queue, c.ID, func(code valve.Code) {
			if err := e.Relay.Set(code); err != nil {
				glog.Warningf("relay opcode: %v", err)
				return
			}
			glog.Infof("relay opcode %s", code)
		})
	}
	return nil
}

func (e *Env) setupActuator() error {
	c := e.Config
	var tk *tank.Tank
	if c.Outputs.Sink == SourceTank || c.Sensors.Source == SourceTank {
		tk = tank.New(c.Sensors.Tank, fx.SystemClock)
	}
	var outputs pins.OutputsMux
	switch c.Outputs.Sink {
	case SourceSim:
		outputs = append(outputs, pins.NewSim())
	case SourceRPIO:
		board, err := rpio.Open(nil, &c.Outputs.Pins)
		if err != nil {
			return fmt.Errorf("rpio: %w", err)
		}
		e.addCloser(board)
		outputs = append(outputs, board)
	}
	if tk != nil {
		outputs = append(outputs, tk)
	}
	e.Outputs = outputs

	switch c.Sensors.Source {
	case SourceSim:
		sim := pins.NewSim()
		sim.SetReadings(c.Sensors.Values...)
		e.Sensors = sim
	case SourceTank:
		e.Sensors = tk
	}

	if m := c.Telemetry.Modbus; m.Endpoint != "" {
		mirror, err := modbus.NewMirror(modbus.Config{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			Base:     m.Base,
			Timeout:  c.Transport.Timeout,
		})
		if err != nil {
			return fmt.Errorf("modbus mirror: %w", err)
		}
		e.addCloser(mirror)
		e.Reporters = append(e.Reporters, mirror)
	}
	return nil
}

func (c *Config) newTransport() (radio.PacketReadWriter, error) {
	t := c.Transport
	switch t.Kind {
	case TransportStub:
		return stub.New(), nil
	case TransportTCP:
		return &dialer{dial: func() (radio.PacketReadWriter, error) {
			return stream.Dial(t.Address, t.Timeout)
		}}, nil
	case TransportTCPListen:
		return stream.Listen(t.Address), nil
	case TransportSerial:
		return &dialer{dial: func() (radio.PacketReadWriter, error) {
			return stream.OpenSerial(t.Address, t.BaudRate)
		}}, nil
	case TransportWebsocket:
		return &dialer{dial: func() (radio.PacketReadWriter, error) {
			return websocket.Dial(t.Address, "http://localhost/")
		}}, nil
	case TransportWSListen:
		return websocket.NewServer(t.Address, "/"), nil
	case TransportMQTT:
		q, err := mqtt.NewQueueFromURL(t.Address)
		if err != nil {
			return nil, err
		}
		local, err := link.ParseAddress(c.Local)
		if err != nil {
			return nil, err
		}
		return mqtt.NewAir(q, local), nil
	}
	return nil, fmt.Errorf("unknown transport %q", t.Kind)
}

// dialer opens its transport in the transceiver init, so a peer or
// device that is unavailable at startup fails the unit.
type dialer struct {
	dial func() (radio.PacketReadWriter, error)
	rw   radio.PacketReadWriter
}

func (d *dialer) Init(ctx context.Context) error {
	type result struct {
		rw  radio.PacketReadWriter
		err error
	}
	ch := make(chan result, 1)
	go func() {
		rw, err := d.dial()
		ch <- result{rw, err}
	}()
	select {
	case <-ctx.Done():
		// the dial may still succeed, nobody else will close it.
		go func() {
			if r := <-ch; r.err == nil {
				closeRW(r.rw)
			}
		}()
		return ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return r.err
		}
		d.rw = r.rw
		return nil
	}
}

func (d *dialer) ReadPacket() ([]byte, error) {
	return d.rw.ReadPacket()
}

func (d *dialer) WritePacket(pkt []byte) error {
	return d.rw.WritePacket(pkt)
}

func (d *dialer) Close() error {
	return closeRW(d.rw)
}

func closeRW(rw radio.PacketReadWriter) error {
	if closer, ok := rw.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// RunOrFail is intended to be used in main: it runs the unit until
// interrupted and exits non-zero when the unit fails, including a
// transceiver failing to initialize.
func (e *Env) RunOrFail() {
	u := e.NewUnit()
	err := fx.NewRunner().HandleSignals().Go(u).Wait()
	e.Close()
	if err != nil {
		glog.Errorf("%s unit stopped: %v", e.Config.Role, err)
		glog.Flush()
		log.Fatalln(err)
	}
}
