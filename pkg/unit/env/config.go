// Package env sets up a unit from configuration: YAML file, command
// line flags and environment variables.
package env

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/valvelink/pkg/framework"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/pins/joystick"
	"github.com/robotalks/valvelink/pkg/pins/rpio"
	"github.com/robotalks/valvelink/pkg/radio"
	"github.com/robotalks/valvelink/pkg/sim/tank"
	"github.com/robotalks/valvelink/pkg/unit"
)

// Transport kinds.
const (
	TransportStub      = "stub"
	TransportTCP       = "tcp"
	TransportTCPListen = "tcp-listen"
	TransportSerial    = "serial"
	TransportWebsocket = "websocket"
	TransportWSListen  = "websocket-listen"
	TransportMQTT      = "mqtt"
)

// Pin sources and sinks.
const (
	SourceNone     = "none"
	SourceSim      = "sim"
	SourceRPIO     = "rpio"
	SourceJoystick = "joystick"
	SourceRelay    = "relay"
	SourceTank     = "tank"
)

// Config is the full configuration of a unit.
type Config struct {
	// File is the YAML file loaded on top of the defaults.
	File string `yaml:"-"`

	Role string `yaml:"role"`
	// ID identifies the unit in telemetry topics, machine ID by default.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// Local and Peer are hex addresses, defaulting by role.
	Local    string        `yaml:"local"`
	Peer     string        `yaml:"peer"`
	Receive  string        `yaml:"receive"`
	Interval time.Duration `yaml:"interval"`

	Transport TransportConfig `yaml:"transport"`
	Inputs    InputsConfig    `yaml:"inputs"`
	Outputs   OutputsConfig   `yaml:"outputs"`
	Sensors   SensorsConfig   `yaml:"sensors"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TransportConfig selects the transceiver.
type TransportConfig struct {
	Kind string `yaml:"kind"`
	// Address is host:port, serial device, websocket URL or MQTT URL.
	Address  string        `yaml:"address"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
}

// InputsConfig selects the switches of a Command Unit.
type InputsConfig struct {
	Source   string           `yaml:"source"`
	Pins     rpio.PinMap      `yaml:"pins"`
	Joystick int              `yaml:"joystick"`
	Buttons  joystick.Buttons `yaml:"buttons"`
}

// OutputsConfig selects the valve outputs of an Actuator Unit.
type OutputsConfig struct {
	Sink string      `yaml:"sink"`
	Pins rpio.PinMap `yaml:"pins"`
}

// SensorsConfig selects the sensors of an Actuator Unit.
type SensorsConfig struct {
	Source string `yaml:"source"`
	// Precision is the number of decimals sent, -1 for shortest.
	Precision int `yaml:"precision"`
	// Values are the fixed readings of the sim source.
	Values []float64   `yaml:"values"`
	Tank   tank.Config `yaml:"tank"`
}

// TelemetryConfig enables status reporting.
type TelemetryConfig struct {
	// MQTTURL e.g. mqtt://host:port/topic-prefix/
	MQTTURL string       `yaml:"mqtt_url"`
	Modbus  ModbusConfig `yaml:"modbus"`
}

// ModbusConfig enables the Modbus register mirror.
type ModbusConfig struct {
	Endpoint string `yaml:"endpoint"`
	UnitID   uint8  `yaml:"unit_id"`
	Base     uint16 `yaml:"base"`
}

var defaultConfig = Config{
	Receive:  radio.ModePolling.String(),
	Interval: framework.DefaultInterval,
	Transport: TransportConfig{
		Kind:    TransportStub,
		Timeout: 5 * time.Second,
	},
	Inputs: InputsConfig{
		Source:  SourceSim,
		Pins:    rpio.PinMap{Fill: 17, Dump: 27, Check: 22},
		Buttons: joystick.DefaultButtons,
	},
	Outputs: OutputsConfig{
		Sink: SourceSim,
		Pins: rpio.PinMap{Fill: 5, Dump: 6, Check: 13},
	},
	Sensors: SensorsConfig{
		Source:    SourceTank,
		Precision: -1,
		Tank:      tank.DefaultConfig,
	},
}

func init() {
	if val := os.Getenv("VALVELINK_MQTT_URL"); val != "" {
		defaultConfig.Telemetry.MQTTURL = val
	}
	if val := os.Getenv("VALVELINK_CONFIG"); val != "" {
		defaultConfig.File = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.File, "config", defaultConfig.File, "YAML config file")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Unit ID")
	flag.StringVar(&defaultConfig.Local, "local", defaultConfig.Local, "Local address (hex)")
	flag.StringVar(&defaultConfig.Peer, "peer", defaultConfig.Peer, "Peer address (hex)")
	flag.StringVar(&defaultConfig.Receive, "receive", defaultConfig.Receive, "Receive mode: polling, callback")
	flag.DurationVar(&defaultConfig.Interval, "interval", defaultConfig.Interval, "Cycle interval")
	flag.StringVar(&defaultConfig.Transport.Kind, "transport", defaultConfig.Transport.Kind, "Transport: stub, tcp, tcp-listen, serial, websocket, websocket-listen, mqtt")
	flag.StringVar(&defaultConfig.Transport.Address, "addr", defaultConfig.Transport.Address, "Transport address")
	flag.IntVar(&defaultConfig.Transport.BaudRate, "baud", defaultConfig.Transport.BaudRate, "Serial baud rate")
	flag.StringVar(&defaultConfig.Inputs.Source, "inputs", defaultConfig.Inputs.Source, "Command inputs: sim, rpio, joystick, relay")
	flag.StringVar(&defaultConfig.Outputs.Sink, "outputs", defaultConfig.Outputs.Sink, "Actuator outputs: sim, rpio, tank")
	flag.StringVar(&defaultConfig.Sensors.Source, "sensors", defaultConfig.Sensors.Source, "Actuator sensors: none, sim, tank")
	flag.IntVar(&defaultConfig.Sensors.Precision, "precision", defaultConfig.Sensors.Precision, "Sensor decimals, -1 for shortest")
	flag.StringVar(&defaultConfig.Telemetry.MQTTURL, "mqtt", defaultConfig.Telemetry.MQTTURL, "MQTT broker URL for telemetry")
	flag.StringVar(&defaultConfig.Telemetry.Modbus.Endpoint, "modbus", defaultConfig.Telemetry.Modbus.Endpoint, "Modbus TCP endpoint to mirror status")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// SetRole should be called in init of a unit binary.
func SetRole(role string) {
	defaultConfig.Role = role
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Sensors.Values = append([]float64(nil), defaultConfig.Sensors.Values...)
	return &conf
}

// Parse parses command line flags and loads the config file. Flags
// explicitly set on the command line take precedence over the file.
func Parse() (*Config, error) {
	flag.Parse()
	if defaultConfig.File != "" {
		set := make(map[string]string)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })
		if err := defaultConfig.Load(defaultConfig.File); err != nil {
			return nil, err
		}
		for name, val := range set {
			flag.Set(name, val)
		}
	}
	conf := NewConfig()
	conf.Normalize()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Load reads the YAML file into c. Keys absent from the file keep
// their current values.
func (c *Config) Load(fn string) error {
	data, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	return c.Parse(data)
}

// Parse decodes YAML into c.
func (c *Config) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Normalize fills role dependent defaults.
func (c *Config) Normalize() {
	c.Role = strings.ToLower(strings.TrimSpace(c.Role))
	c.Transport.Kind = strings.ToLower(c.Transport.Kind)
	local, peer := unit.CommandAddress, unit.ActuatorAddress
	if c.Role == unit.RoleActuator {
		local, peer = peer, local
	}
	if c.Local == "" {
		c.Local = local.String()
	}
	if c.Peer == "" {
		c.Peer = peer.String()
	}
	if c.Name == "" {
		c.Name = c.Role
	}
	if c.ID == "" {
		c.ID = MachineID()
	}
	if c.Interval <= 0 {
		c.Interval = framework.DefaultInterval
	}
	if c.Sensors.Tank == (tank.Config{}) {
		c.Sensors.Tank = tank.DefaultConfig
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	local, err := link.ParseAddress(c.Local)
	if err != nil {
		return fmt.Errorf("local address %q: %w", c.Local, err)
	}
	peer, err := link.ParseAddress(c.Peer)
	if err != nil {
		return fmt.Errorf("peer address %q: %w", c.Peer, err)
	}
	if local == peer {
		return fmt.Errorf("local and peer address are both %s", local)
	}
	if _, err := radio.ParseMode(c.Receive); err != nil {
		return err
	}
	switch c.Transport.Kind {
	case TransportStub:
	case TransportTCP, TransportTCPListen, TransportSerial, TransportWebsocket, TransportWSListen, TransportMQTT:
		if c.Transport.Address == "" {
			return fmt.Errorf("transport %s requires an address", c.Transport.Kind)
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport.Kind)
	}
	switch c.Role {
	case unit.RoleCommand:
		if !oneOf(c.Inputs.Source, SourceSim, SourceRPIO, SourceJoystick, SourceRelay) {
			return fmt.Errorf("unknown inputs %q", c.Inputs.Source)
		}
		if c.Inputs.Source == SourceRelay && c.Telemetry.MQTTURL == "" {
			return fmt.Errorf("inputs %s requires a telemetry MQTT URL", SourceRelay)
		}
	case unit.RoleActuator:
		if !oneOf(c.Outputs.Sink, SourceSim, SourceRPIO, SourceTank) {
			return fmt.Errorf("unknown outputs %q", c.Outputs.Sink)
		}
		if !oneOf(c.Sensors.Source, SourceNone, SourceSim, SourceTank) {
			return fmt.Errorf("unknown sensors %q", c.Sensors.Source)
		}
		if c.Sensors.Precision < -1 {
			return fmt.Errorf("invalid sensor precision %d", c.Sensors.Precision)
		}
	default:
		return fmt.Errorf("role must be %s or %s, not %q", unit.RoleCommand, unit.RoleActuator, c.Role)
	}
	return nil
}

// Options converts to unit options, the config must be valid.
func (c *Config) Options() unit.Options {
	local, _ := link.ParseAddress(c.Local)
	peer, _ := link.ParseAddress(c.Peer)
	mode, _ := radio.ParseMode(c.Receive)
	return unit.Options{
		Name:     c.Name,
		Local:    local,
		Peer:     peer,
		Mode:     mode,
		Interval: c.Interval,
	}
}

func oneOf(s string, values ...string) bool {
	for _, v := range values {
		if s == v {
			return true
		}
	}
	return false
}
