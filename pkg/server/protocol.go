package server

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// Client operation names.
const (
	OpSet       = "set"
	OpSetField  = "setField"
	OpSetMeta   = "setMeta"
	OpSetErrors = "setErrors"
	OpValidate  = "validate"
	OpSubscribe = "subscribe"
	OpSchema    = "schema"
)

// Frame types pushed to the client.
const (
	FrameEmit  = "emit"
	FrameError = "error"
)

// Error codes carried on error frames.
const (
	CodeBadOp         = "bad_op"
	CodeUnknownTopic  = "unknown_topic"
	CodeUnknownSchema = "unknown_schema"
)

// ErrMissingOp reports a message without an op discriminator.
var ErrMissingOp = errors.New("server: missing op")

// ClientOp is a single operation sent by the client. Which fields are
// meaningful depends on Op.
type ClientOp struct {
	Op       string `json:"op"`
	Field    string `json:"field,omitempty"`
	Property string `json:"property,omitempty"`
	Value    any    `json:"value,omitempty"`

	// Values is the merge delta for "set".
	Values map[string]any `json:"values,omitempty"`

	// Errors is the replacement error map for "setErrors".
	Errors map[string]string `json:"errors,omitempty"`

	// Topics selects bus topics for "subscribe".
	Topics []string `json:"topics,omitempty"`

	// Schema names a registered validator for "schema".
	Schema string `json:"schema,omitempty"`

	// NoValidate skips the validation pass on "setField".
	NoValidate bool `json:"noValidate,omitempty"`
}

// ServerFrame is a single message pushed to the client.
type ServerFrame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Op      string `json:"op,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeOp parses a client message.
func DecodeOp(data []byte) (*ClientOp, error) {
	var op ClientOp
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("server: decode op: %w", err)
	}
	if op.Op == "" {
		return nil, ErrMissingOp
	}
	return &op, nil
}

// EncodeFrame serializes a frame for the wire.
func EncodeFrame(f *ServerFrame) ([]byte, error) {
	return json.Marshal(f)
}
