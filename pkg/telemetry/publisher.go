package telemetry

import (
	"encoding/json"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/valvelink/pkg/radio/mqtt"
	"github.com/robotalks/valvelink/pkg/valve"
)

// Reporter receives status messages from a unit.
type Reporter interface {
	Report(Message) error
}

// ReporterFunc is the func form of Reporter.
type ReporterFunc func(Message) error

// Report implements Reporter.
func (f ReporterFunc) Report(msg Message) error {
	return f(msg)
}

// Reporters fans out to multiple reporters.
type Reporters []Reporter

// Report implements Reporter. All reporters are called, the first
// error is returned.
func (r Reporters) Report(msg Message) (err error) {
	for _, reporter := range r {
		if e := reporter.Report(msg); e != nil && err == nil {
			err = e
		}
	}
	return
}

// StatusTopic is where a unit publishes Typed status messages.
func StatusTopic(unitID string) string {
	return unitID + "/status"
}

// MetaTopic is where a unit publishes its retained Meta.
func MetaTopic(unitID string) string {
	return unitID + "/meta"
}

// RelayTopic is where a relay Command Unit takes its opcode from.
func RelayTopic(unitID string) string {
	return unitID + "/relay"
}

// Meta describes a unit.
type Meta struct {
	Role    string `json:"role"`
	Local   string `json:"local"`
	Peer    string `json:"peer"`
	Receive string `json:"receive"`
}

// Publisher publishes status messages to MQTT.
type Publisher struct {
	Queue  *mqtt.Queue
	UnitID string
}

// NewPublisher creates a Publisher.
func NewPublisher(q *mqtt.Queue, unitID string) *Publisher {
	return &Publisher{Queue: q, UnitID: unitID}
}

// Report implements Reporter.
func (p *Publisher) Report(msg Message) error {
	encoded, err := Encode(msg)
	if err != nil {
		return err
	}
	p.Queue.Pub(StatusTopic(p.UnitID), encoded)
	return nil
}

// PublishMeta publishes meta as a retained message.
func (p *Publisher) PublishMeta(meta Meta) error {
	encoded, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	token := p.Queue.PubWith(MetaTopic(p.UnitID), encoded, 1, true)
	token.Wait()
	return token.Error()
}

// SubscribeRelay forwards RelayCommand messages for the unit to set.
func SubscribeRelay(q *mqtt.Queue, unitID string, set func(valve.Code)) *mqtt.Subscription {
	return q.Sub(RelayTopic(unitID), RelayHandler(set))
}

// RelayHandler decodes RelayCommand messages and calls set with valid
// codes. Commands not fitting in 3 bits are dropped.
func RelayHandler(set func(valve.Code)) mqtt.Handler {
	return func(topic string, payload []byte) {
		msg, err := Decode(payload)
		if err != nil {
			glog.Warningf("relay %s: %v", topic, err)
			return
		}
		cmd, ok := msg.(*RelayCommand)
		if !ok {
			glog.Warningf("relay %s: unexpected %T", topic, msg)
			return
		}
		if cmd.Code > uint32(valve.MaxCode) {
			glog.Warningf("relay %s: %v: %d", topic, valve.ErrCodeOutOfRange, cmd.Code)
			return
		}
		set(valve.Code(cmd.Code))
	}
}

// Recorder keeps the last message of each type, for tests and shells.
type Recorder struct {
	lock sync.Mutex
	last map[uint32]Message
	n    int
}

// Report implements Reporter.
func (r *Recorder) Report(msg Message) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.last == nil {
		r.last = make(map[uint32]Message)
	}
	r.last[msg.TypeID()] = msg
	r.n++
	return nil
}

// Last returns the last reported message of the type.
func (r *Recorder) Last(typeID uint32) Message {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.last[typeID]
}

// Count returns the number of reported messages.
func (r *Recorder) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.n
}
