// Package valve provides shell commands to inspect the link protocol
// and to set the opcode relayed by a running Command Unit.
package valve

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/valvelink/pkg/cli/sh"
	"github.com/robotalks/valvelink/pkg/link"
	"github.com/robotalks/valvelink/pkg/sensor"
	"github.com/robotalks/valvelink/pkg/telemetry"
	"github.com/robotalks/valvelink/pkg/unit"
	"github.com/robotalks/valvelink/pkg/valve"
)

// CodeInfo describes a code for output.
type CodeInfo struct {
	Code  byte   `json:"code"`
	Bits  string `json:"bits"`
	Label string `json:"label"`
	Fill  bool   `json:"fill"`
	Dump  bool   `json:"dump"`
	Check bool   `json:"check"`
	Safe  bool   `json:"safe"`
}

// InfoOf builds CodeInfo of any byte.
func InfoOf(b byte) CodeInfo {
	st := valve.Code(b).Decode()
	return CodeInfo{
		Code:  b,
		Bits:  valve.BitString(b),
		Label: valve.Classify(b).String(),
		Fill:  st.Fill,
		Dump:  st.Dump,
		Check: st.Check,
		Safe:  valve.Code(b).Valid() && !valve.IsUnsafe(b),
	}
}

func (i CodeInfo) String() string {
	return fmt.Sprintf("%d %s (%s)", i.Code, i.Bits, i.Label)
}

// ParseByte parses decimal, 0x hex or 0b binary.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

// ParseBit parses 0 or 1.
func ParseBit(s string) (bool, error) {
	switch s {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("bit must be 0 or 1: %q", s)
}

// ParseState parses three bits: fill dump check.
func ParseState(args []string) (valve.State, error) {
	var st valve.State
	if len(args) != 3 {
		return st, fmt.Errorf("expect FILL DUMP CHECK")
	}
	var err error
	for n, p := range []*bool{&st.Fill, &st.Dump, &st.Check} {
		if *p, err = ParseBit(args[n]); err != nil {
			return st, err
		}
	}
	return st, nil
}

// ParseHex parses packet bytes like "bbcc05", "bb:cc:05" or "0xbbcc05".
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(strings.Replace(s, ":", "", -1))
}

// ParseResult describes a parsed packet.
type ParseResult struct {
	Accepted bool      `json:"accepted"`
	Error    string    `json:"error,omitempty"`
	Payload  string    `json:"payload,omitempty"`
	Opcode   *CodeInfo `json:"opcode,omitempty"`
	Sensors  []string  `json:"sensors,omitempty"`
	Values   []float64 `json:"values,omitempty"`
}

// ParsePacket runs a packet through the address filter of local and
// interprets the payload.
func ParsePacket(raw []byte, local, peer link.Address) ParseResult {
	payload, err := link.Parse(raw, local, peer)
	if err != nil {
		return ParseResult{Error: err.Error()}
	}
	res := ParseResult{Accepted: true, Payload: hex.EncodeToString(payload)}
	if code, err := link.DecodeOpcode(payload); err == nil {
		info := InfoOf(byte(code))
		res.Opcode = &info
		return res
	}
	fields := sensor.Decode(payload)
	res.Sensors = fields[:]
	res.Values, _ = fields.Values()
	return res
}

func (r ParseResult) String() string {
	switch {
	case !r.Accepted:
		return "rejected: " + r.Error
	case r.Opcode != nil:
		return "opcode " + r.Opcode.String()
	default:
		return "sensors " + strings.Join(r.Sensors, " | ")
	}
}

func errorf(c *ishell.Context, format string, args ...interface{}) {
	c.Err(fmt.Errorf(format, args...))
}

var (
	// EncodeCmd encodes three bits into a code.
	EncodeCmd = ishell.Cmd{
		Name:    "encode",
		Aliases: []string{"enc"},
		Help:    "FILL DUMP CHECK",
		Func: func(c *ishell.Context) {
			st, err := ParseState(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			info := InfoOf(byte(st.Code()))
			sh.Output(c, info, info.String())
		},
	}

	// DecodeCmd decodes a code into bits.
	DecodeCmd = ishell.Cmd{
		Name:    "decode",
		Aliases: []string{"dec"},
		Help:    "CODE",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				errorf(c, "expect CODE")
				return
			}
			b, err := ParseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			info := InfoOf(b)
			sh.Output(c, info, valve.Code(b).Decode().String())
		},
	}

	// ClassifyCmd prints the state label of a byte.
	ClassifyCmd = ishell.Cmd{
		Name:    "classify",
		Aliases: []string{"cls"},
		Help:    "CODE...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				for b := 0; b <= int(valve.MaxCode); b++ {
					info := InfoOf(byte(b))
					sh.Output(c, info, info.String())
				}
				return
			}
			for _, arg := range c.Args {
				b, err := ParseByte(arg)
				if err != nil {
					c.Err(err)
					return
				}
				info := InfoOf(b)
				sh.Output(c, info, info.String())
			}
		},
	}

	// BitsCmd prints the 8 bit rendering of a byte.
	BitsCmd = ishell.Cmd{
		Name: "bits",
		Help: "CODE",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				errorf(c, "expect CODE")
				return
			}
			b, err := ParseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, valve.BitString(b), valve.BitString(b))
		},
	}

	// FrameCmd frames an opcode packet.
	FrameCmd = ishell.Cmd{
		Name: "frame",
		Help: "DEST SRC CODE",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 3 {
				errorf(c, "expect DEST SRC CODE")
				return
			}
			dest, err := link.ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			src, err := link.ParseAddress(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			b, err := ParseByte(c.Args[2])
			if err != nil {
				c.Err(err)
				return
			}
			out := hex.EncodeToString(link.Frame(dest, src, []byte{b}))
			sh.Output(c, out, out)
		},
	}

	// ParseCmd parses a packet as received by an Actuator Unit.
	ParseCmd = ishell.Cmd{
		Name: "parse",
		Help: "HEX [LOCAL PEER]",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				errorf(c, "expect HEX")
				return
			}
			local, peer := unit.ActuatorAddress, unit.CommandAddress
			if len(c.Args) == 3 {
				var err error
				if local, err = link.ParseAddress(c.Args[1]); err != nil {
					c.Err(err)
					return
				}
				if peer, err = link.ParseAddress(c.Args[2]); err != nil {
					c.Err(err)
					return
				}
			}
			raw, err := ParseHex(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			res := ParsePacket(raw, local, peer)
			sh.Output(c, res, res.String())
		},
	}

	// SensorsCmd decodes a sensor payload.
	SensorsCmd = ishell.Cmd{
		Name: "sensors",
		Help: "PAYLOAD",
		Func: func(c *ishell.Context) {
			fields := sensor.Decode([]byte(strings.Join(c.Args, " ")))
			values, err := fields.Values()
			res := ParseResult{Accepted: true, Sensors: fields[:], Values: values}
			if err != nil {
				res.Error = err.Error()
			}
			sh.Output(c, res, fmt.Sprintf("%q %q %q", fields[0], fields[1], fields[2]))
		},
	}

	// SetCmd sets the opcode relayed by a Command Unit.
	SetCmd = ishell.Cmd{
		Name: "set",
		Help: "FILL DUMP CHECK [UNIT]",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			args, unitID := c.Args, s.UnitID
			if len(args) == 4 {
				args, unitID = args[:3], args[3]
			}
			st, err := ParseState(args)
			if err != nil {
				c.Err(err)
				return
			}
			if unitID == "" {
				errorf(c, "unit required, use -unit or pass UNIT")
				return
			}
			q, err := s.Queue()
			if err != nil {
				c.Err(err)
				return
			}
			code := st.Code()
			encoded, err := telemetry.Encode(&telemetry.RelayCommand{Code: uint32(code)})
			if err != nil {
				c.Err(err)
				return
			}
			token := q.PubWith(telemetry.RelayTopic(unitID), encoded, 1, false)
			token.Wait()
			if err := token.Error(); err != nil {
				c.Err(err)
				return
			}
			info := InfoOf(byte(code))
			sh.Output(c, info, "sent "+info.String())
		},
	}
)

func init() {
	sh.AddCmds(
		&EncodeCmd,
		&DecodeCmd,
		&ClassifyCmd,
		&BitsCmd,
		&FrameCmd,
		&ParseCmd,
		&SensorsCmd,
		&SetCmd,
	)
}
