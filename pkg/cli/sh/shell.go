package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/valvelink/pkg/radio/mqtt"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	// MQTTURL is the broker for commands reaching running units.
	MQTTURL string
	// UnitID is the default target unit.
	UnitID string

	Shell *ishell.Shell

	queueLock sync.Mutex
	queue     *mqtt.Queue
}

const (
	shellKey      = "$shell"
	defaultPrompt = "valve > "
	// ConnectTimeout bounds connecting to the broker.
	ConnectTimeout = 5 * time.Second
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	mqttURL    string
	unitID     string

	// commands
	commands []*ishell.Cmd
)

func init() {
	if val := os.Getenv("VALVELINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&unitID, "unit", unitID, "Target unit ID.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		MQTTURL:     mqttURL,
		UnitID:      unitID,

		Shell: ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(defaultPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Output prints v as JSON or text depending on the shell settings.
func Output(c *ishell.Context, v interface{}, text string) {
	if !ShellFrom(c).OutputJSON {
		c.Println(text)
		return
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return
	}
	c.Println(string(out))
}

// Queue connects the broker on first use.
func (s *Shell) Queue() (*mqtt.Queue, error) {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	if s.queue != nil {
		return s.queue, nil
	}
	if s.MQTTURL == "" {
		return nil, fmt.Errorf("MQTT broker URL required, use -mqtt")
	}
	q, err := mqtt.NewQueueFromURL(s.MQTTURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	if err := q.Connect(ctx); err != nil {
		return nil, err
	}
	s.queue = q
	return q, nil
}

// Close disconnects the broker if connected.
func (s *Shell) Close() error {
	s.queueLock.Lock()
	defer s.queueLock.Unlock()
	if s.queue != nil {
		s.queue.Close()
		s.queue = nil
	}
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Close()
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
