package telemetry

import (
	"github.com/golang/protobuf/proto"
)

// ValveStatus reports the outputs of an Actuator Unit, or the opcode
// last sent by a Command Unit.
type ValveStatus struct {
	Code     uint32 `protobuf:"varint,1,opt,name=code,proto3" json:"code"`
	Label    string `protobuf:"bytes,2,opt,name=label,proto3" json:"label,omitempty"`
	Fill     bool   `protobuf:"varint,3,opt,name=fill,proto3" json:"fill"`
	Dump     bool   `protobuf:"varint,4,opt,name=dump,proto3" json:"dump"`
	Check    bool   `protobuf:"varint,5,opt,name=check,proto3" json:"check"`
	Received uint32 `protobuf:"varint,6,opt,name=received,proto3" json:"received"`
	Rejected bool   `protobuf:"varint,7,opt,name=rejected,proto3" json:"rejected"`
	UnixNano int64  `protobuf:"varint,8,opt,name=unix_nano,proto3" json:"unix_nano,omitempty"`
}

// TypeID implements Message.
func (m *ValveStatus) TypeID() uint32 { return ValveStatusTypeID }

// ProtoMessage implements proto.Message.
func (m *ValveStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ValveStatus) Reset() { *m = ValveStatus{} }

// String implements proto.Message.
func (m *ValveStatus) String() string { return proto.CompactTextString(m) }

// SensorReport carries the sensor fields sent or received.
type SensorReport struct {
	Fields   []string  `protobuf:"bytes,1,rep,name=fields,proto3" json:"fields"`
	Values   []float64 `protobuf:"fixed64,2,rep,packed,name=values,proto3" json:"values,omitempty"`
	UnixNano int64     `protobuf:"varint,3,opt,name=unix_nano,proto3" json:"unix_nano,omitempty"`
}

// TypeID implements Message.
func (m *SensorReport) TypeID() uint32 { return SensorReportTypeID }

// ProtoMessage implements proto.Message.
func (m *SensorReport) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SensorReport) Reset() { *m = SensorReport{} }

// String implements proto.Message.
func (m *SensorReport) String() string { return proto.CompactTextString(m) }

// LinkStats counts link events of a unit.
type LinkStats struct {
	Sent       uint64 `protobuf:"varint,1,opt,name=sent,proto3" json:"sent"`
	Received   uint64 `protobuf:"varint,2,opt,name=received,proto3" json:"received"`
	Accepted   uint64 `protobuf:"varint,3,opt,name=accepted,proto3" json:"accepted"`
	Mismatched uint64 `protobuf:"varint,4,opt,name=mismatched,proto3" json:"mismatched"`
	Malformed  uint64 `protobuf:"varint,5,opt,name=malformed,proto3" json:"malformed"`
	Unsafe     uint64 `protobuf:"varint,6,opt,name=unsafe,proto3" json:"unsafe"`
	Dropped    uint64 `protobuf:"varint,7,opt,name=dropped,proto3" json:"dropped"`
}

// TypeID implements Message.
func (m *LinkStats) TypeID() uint32 { return LinkStatsTypeID }

// ProtoMessage implements proto.Message.
func (m *LinkStats) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStats) Reset() { *m = LinkStats{} }

// String implements proto.Message.
func (m *LinkStats) String() string { return proto.CompactTextString(m) }

// RelayCommand sets the opcode relayed by a Command Unit without
// switches.
type RelayCommand struct {
	Code uint32 `protobuf:"varint,1,opt,name=code,proto3" json:"code"`
}

// TypeID implements Message.
func (m *RelayCommand) TypeID() uint32 { return RelayCommandTypeID }

// ProtoMessage implements proto.Message.
func (m *RelayCommand) ProtoMessage() {}

// Reset implements proto.Message.
func (m *RelayCommand) Reset() { *m = RelayCommand{} }

// String implements proto.Message.
func (m *RelayCommand) String() string { return proto.CompactTextString(m) }

// TypeIDs
const (
	ValveStatusTypeID  uint32 = 0x0001
	SensorReportTypeID uint32 = 0x0002
	LinkStatsTypeID    uint32 = 0x0003
	RelayCommandTypeID uint32 = 0x0100
)

// MessageTypes maps type IDs to message constructors.
var MessageTypes = map[uint32]func() Message{
	ValveStatusTypeID:  func() Message { return &ValveStatus{} },
	SensorReportTypeID: func() Message { return &SensorReport{} },
	LinkStatsTypeID:    func() Message { return &LinkStats{} },
	RelayCommandTypeID: func() Message { return &RelayCommand{} },
}
