package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxMessageSize bounds a single frame.
const MaxMessageSize = 1 << 20

var (
	// ErrMessageTooLarge is returned for frames above MaxMessageSize.
	ErrMessageTooLarge = errors.New("ipc message too large")
	// ErrMissingField is returned when a message lacks a required field.
	ErrMissingField = errors.New("missing field")
)

// Message ops that are not requests
const (
	OpEvent   = "event"
	OpOK      = "ok"
	OpError   = "error"
	OpStatus  = "status"
	OpSurface = "surface"
)

// Message field names shared by requests, replies and events
const (
	FieldOp    = "op"
	FieldSeq   = "seq"
	FieldError = "error"
	FieldName  = "name"
)

// ReadMessage reads one length-prefixed message.
func ReadMessage(r io.Reader) (*structpb.Struct, error) {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// WriteMessage writes one length-prefixed message.
func WriteMessage(w io.Writer, msg *structpb.Struct) error {
	frame, err := encodeFrame(msg)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func encodeFrame(msg *structpb.Struct) ([]byte, error) {
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	return frame, nil
}

// NewMessage builds a message with the given op and fields. Field values
// must be acceptable to structpb.NewValue.
func NewMessage(op string, fields map[string]interface{}) (*structpb.Struct, error) {
	m := map[string]interface{}{FieldOp: op}
	for k, v := range fields {
		m[k] = v
	}
	msg, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s message: %w", op, err)
	}
	return msg, nil
}

// NewErrorMessage builds an error reply.
func NewErrorMessage(seq int64, err error) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldOp:    structpb.NewStringValue(OpError),
		FieldSeq:   structpb.NewNumberValue(float64(seq)),
		FieldError: structpb.NewStringValue(err.Error()),
	}}
}

// Op returns the op of a message, or "".
func Op(msg *structpb.Struct) string {
	s, _ := String(msg, FieldOp)
	return s
}

// String returns a string field.
func String(msg *structpb.Struct, key string) (string, bool) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

// Int returns an integral number field.
func Int(msg *structpb.Struct, key string) (int64, bool) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return 0, false
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, false
	}
	return int64(n.NumberValue), true
}

// Bool returns a boolean field.
func Bool(msg *structpb.Struct, key string) (bool, bool) {
	v, ok := msg.GetFields()[key]
	if !ok {
		return false, false
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, false
	}
	return b.BoolValue, true
}

// RequireInt is Int that reports a missing field as an error.
func RequireInt(msg *structpb.Struct, key string) (int64, error) {
	n, ok := Int(msg, key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return n, nil
}

// RequireString is String that reports a missing field as an error.
func RequireString(msg *structpb.Struct, key string) (string, error) {
	s, ok := String(msg, key)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return s, nil
}

// ErrorOf returns the error carried by an error reply, or nil.
func ErrorOf(msg *structpb.Struct) error {
	if Op(msg) != OpError {
		return nil
	}
	text, _ := String(msg, FieldError)
	return errors.New(text)
}
