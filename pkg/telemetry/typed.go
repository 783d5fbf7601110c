// Package telemetry publishes unit status off the radio link, for
// operators and supervisory systems.
package telemetry

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Message is a telemetry message serializable over the wire.
type Message interface {
	proto.Message
	TypeID() uint32
}

// ErrUnknownType indicates unknown type id.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

// Typed wraps an encoded message with its type ID.
type Typed struct {
	TypeId uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Msg    []byte `protobuf:"bytes,2,opt,name=msg,proto3" json:"msg,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Typed) Reset() { *m = Typed{} }

// String implements proto.Message.
func (m *Typed) String() string { return proto.CompactTextString(m) }

// TypedFrom encodes msg into a Typed.
func TypedFrom(msg Message) (*Typed, error) {
	encoded, err := proto.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: msg.TypeID(), Msg: encoded}, nil
}

// Encode encodes msg wrapped in a Typed.
func Encode(msg Message) ([]byte, error) {
	typed, err := TypedFrom(msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(typed)
}

// DecodeTyped decodes Typed from bytes.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Decode decodes the wrapped message.
func (m *Typed) Decode() (Message, error) {
	create, ok := MessageTypes[m.TypeId]
	if !ok {
		return nil, &ErrUnknownType{TypeID: m.TypeId}
	}
	msg := create()
	if err := proto.Unmarshal(m.Msg, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Decode decodes a Typed-wrapped message from bytes.
func Decode(data []byte) (Message, error) {
	typed, err := DecodeTyped(data)
	if err != nil {
		return nil, err
	}
	return typed.Decode()
}
