package env

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/radio/stream"
	"github.com/robotalks/valvelink/pkg/radio/stub"
	"github.com/robotalks/valvelink/pkg/sim/tank"
	"github.com/robotalks/valvelink/pkg/unit"
)

const actuatorYAML = `
role: Actuator
id: bench-1
receive: callback
interval: 20ms
transport:
  kind: tcp-listen
  address: ":7070"
outputs:
  sink: tank
sensors:
  source: tank
  precision: 2
telemetry:
  modbus:
    endpoint: "plc:502"
    unit_id: 3
    base: 100
`

func TestConfigParse(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Parse([]byte(actuatorYAML)))
	conf.Normalize()
	require.NoError(t, conf.Validate())

	require.Equal(t, unit.RoleActuator, conf.Role)
	require.Equal(t, "bench-1", conf.ID)
	require.Equal(t, "0xBB", conf.Local)
	require.Equal(t, "0xCC", conf.Peer)
	require.Equal(t, 20*time.Millisecond, conf.Interval)
	require.Equal(t, TransportTCPListen, conf.Transport.Kind)
	require.Equal(t, 2, conf.Sensors.Precision)
	require.Equal(t, tank.DefaultConfig, conf.Sensors.Tank)
	require.Equal(t, uint8(3), conf.Telemetry.Modbus.UnitID)
	require.Equal(t, uint16(100), conf.Telemetry.Modbus.Base)
	// untouched keys keep defaults.
	require.Equal(t, 5*time.Second, conf.Transport.Timeout)

	opts := conf.Options()
	require.Equal(t, unit.ActuatorAddress, opts.Local)
	require.Equal(t, unit.CommandAddress, opts.Peer)
	require.Equal(t, radio.ModeCallback, opts.Mode)

	tr, err := conf.newTransport()
	require.NoError(t, err)
	require.IsType(t, &stream.Listener{}, tr)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"command defaults", func(c *Config) {}, true},
		{"actuator defaults", func(c *Config) { c.Role = unit.RoleActuator }, true},
		{"no role", func(c *Config) { c.Role = "" }, false},
		{"bad local", func(c *Config) { c.Local = "zz" }, false},
		{"same addresses", func(c *Config) { c.Local, c.Peer = "0x10", "10" }, false},
		{"bad receive", func(c *Config) { c.Receive = "dma" }, false},
		{"unknown transport", func(c *Config) { c.Transport.Kind = "lora" }, false},
		{"tcp without address", func(c *Config) { c.Transport.Kind = TransportTCP }, false},
		{"mqtt", func(c *Config) {
			c.Transport.Kind, c.Transport.Address = TransportMQTT, "mqtt://localhost:1883/"
		}, true},
		{"unknown inputs", func(c *Config) { c.Inputs.Source = "tank" }, false},
		{"relay inputs", func(c *Config) {
			c.Inputs.Source, c.Telemetry.MQTTURL = SourceRelay, "mqtt://localhost:1883/"
		}, true},
		{"relay inputs without telemetry", func(c *Config) {
			c.Inputs.Source, c.Telemetry.MQTTURL = SourceRelay, ""
		}, false},
		{"unknown outputs", func(c *Config) {
			c.Role, c.Outputs.Sink = unit.RoleActuator, SourceJoystick
		}, false},
		{"unknown sensors", func(c *Config) {
			c.Role, c.Sensors.Source = unit.RoleActuator, SourceRPIO
		}, false},
		{"bad precision", func(c *Config) {
			c.Role, c.Sensors.Precision = unit.RoleActuator, -2
		}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			conf.Role, conf.ID = unit.RoleCommand, "test"
			tc.modify(conf)
			conf.Normalize()
			err := conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewEnv(t *testing.T) {
	conf := NewConfig()
	conf.Role, conf.ID = unit.RoleActuator, "test"
	conf.Outputs.Sink = SourceSim
	conf.Sensors.Source = SourceSim
	conf.Sensors.Values = []float64{1, 2}
	conf.Telemetry.MQTTURL = ""
	conf.Normalize()
	require.NoError(t, conf.Validate())

	env, err := conf.NewEnv(context.Background())
	require.NoError(t, err)
	defer env.Close()
	require.IsType(t, &stub.Endpoint{}, env.Transport)
	require.Len(t, env.Outputs, 1)
	values, err := env.Sensors.ReadSensors()
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, values)
	require.Empty(t, env.Reporters)

	act, ok := env.NewUnit().(*unit.Actuator)
	require.True(t, ok)
	require.Equal(t, -1, act.Codec.Precision)
}

func TestNewEnvRelayRequiresTelemetry(t *testing.T) {
	conf := NewConfig()
	conf.Role, conf.ID = unit.RoleCommand, "test"
	conf.Inputs.Source = SourceRelay
	conf.Telemetry.MQTTURL = ""
	conf.Normalize()
	require.Error(t, conf.Validate())
	env, err := conf.NewEnv(context.Background())
	require.Error(t, err)
	require.Nil(t, env)
}

type closeRecorder struct {
	radio.PacketReadWriter
	closed chan struct{}
}

func (c *closeRecorder) Close() error {
	close(c.closed)
	return nil
}

func TestDialerClosesLateConnection(t *testing.T) {
	release := make(chan struct{})
	conn := &closeRecorder{PacketReadWriter: stub.New(), closed: make(chan struct{})}
	d := &dialer{dial: func() (radio.PacketReadWriter, error) {
		<-release
		return conn, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Equal(t, context.Canceled, d.Init(ctx))
	close(release)
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "late connection not closed")
	}
	require.Nil(t, d.rw)
	require.NoError(t, d.Close())
}
