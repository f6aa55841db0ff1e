package server

import (
	"errors"
	"testing"

	json "github.com/goccy/go-json"
)

func TestDecodeOpSetField(t *testing.T) {
	op, err := DecodeOp([]byte(`{"op":"setField","field":"email","value":"ada@example.com","noValidate":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if op.Op != OpSetField || op.Field != "email" {
		t.Errorf("unexpected op: %+v", op)
	}
	if op.Value != "ada@example.com" {
		t.Errorf("value = %v", op.Value)
	}
	if !op.NoValidate {
		t.Error("noValidate not decoded")
	}
}

func TestDecodeOpSet(t *testing.T) {
	op, err := DecodeOp([]byte(`{"op":"set","values":{"name":"ada","age":36}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if op.Values["name"] != "ada" {
		t.Errorf("values = %v", op.Values)
	}
}

func TestDecodeOpMissingOp(t *testing.T) {
	if _, err := DecodeOp([]byte(`{"field":"email"}`)); !errors.Is(err, ErrMissingOp) {
		t.Errorf("expected ErrMissingOp, got %v", err)
	}
}

func TestDecodeOpMalformed(t *testing.T) {
	if _, err := DecodeOp([]byte(`{not json`)); err == nil {
		t.Error("expected a decode error")
	}
}

func TestEncodeFrameRoundTrip(t *testing.T) {
	data, err := EncodeFrame(&ServerFrame{
		Type:    FrameEmit,
		Topic:   "values",
		Payload: map[string]any{"name": "ada"},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var f ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Type != FrameEmit || f.Topic != "values" {
		t.Errorf("unexpected frame: %+v", f)
	}
	payload, ok := f.Payload.(map[string]any)
	if !ok || payload["name"] != "ada" {
		t.Errorf("payload = %v", f.Payload)
	}
}

func TestEncodeFrameOmitsEmptyFields(t *testing.T) {
	data, err := EncodeFrame(&ServerFrame{Type: FrameError, Code: CodeBadOp, Message: "nope"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, present := raw["topic"]; present {
		t.Errorf("empty topic should be omitted: %s", data)
	}
	if _, present := raw["payload"]; present {
		t.Errorf("nil payload should be omitted: %s", data)
	}
}
