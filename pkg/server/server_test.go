package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/formstore-dev/formstore/pkg/form"
)

func testServer(t *testing.T, schemas map[string]form.Validator) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: prometheus.NewRegistry(),
	}, schemas)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendOp(t *testing.T, conn *websocket.Conn, op any) {
	t.Helper()
	data, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("marshal op: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write op: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) *ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return &f
}

func TestHealthz(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "formstore_sessions_total") {
		t.Error("metrics output missing formstore_sessions_total")
	}
}

func TestSubscribeAndSet(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"values"}})
	sendOp(t, conn, ClientOp{Op: OpSet, Values: map[string]any{"name": "ada"}})

	f := readFrame(t, conn)
	if f.Type != FrameEmit || f.Topic != "values" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	delta, ok := f.Payload.(map[string]any)
	if !ok || delta["name"] != "ada" {
		t.Errorf("payload = %v", f.Payload)
	}
}

func TestSetFieldEqualValueEmitsNothing(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"values"}})
	sendOp(t, conn, ClientOp{Op: OpSetField, Field: "name", Value: "ada"})
	readFrame(t, conn)

	// The repeated write must not emit; the probe write after it must.
	sendOp(t, conn, ClientOp{Op: OpSetField, Field: "name", Value: "ada"})
	sendOp(t, conn, ClientOp{Op: OpSetField, Field: "probe", Value: "x"})

	f := readFrame(t, conn)
	delta, ok := f.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", f.Payload)
	}
	if _, present := delta["name"]; present {
		t.Errorf("no-op write leaked an emission: %v", delta)
	}
	if delta["probe"] != "x" {
		t.Errorf("probe delta = %v", delta)
	}
}

func TestSubscribeUnknownTopic(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"bogus"}})

	f := readFrame(t, conn)
	if f.Type != FrameError || f.Code != CodeUnknownTopic {
		t.Errorf("unexpected frame: %+v", f)
	}
}

func TestUnknownOp(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: "frobnicate"})

	f := readFrame(t, conn)
	if f.Type != FrameError || f.Code != CodeBadOp {
		t.Errorf("unexpected frame: %+v", f)
	}
}

func TestMalformedMessage(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := readFrame(t, conn)
	if f.Type != FrameError || f.Code != CodeBadOp {
		t.Errorf("unexpected frame: %+v", f)
	}
}

func TestSchemaOpAndValidate(t *testing.T) {
	rules := form.RuleSet{
		"name": {form.Required("name is required")},
	}
	_, ts := testServer(t, map[string]form.Validator{"user": rules})
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"errors"}})
	sendOp(t, conn, ClientOp{Op: OpSchema, Schema: "user"})

	f := readFrame(t, conn)
	if f.Type != FrameEmit || f.Topic != "errors" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	errs, ok := f.Payload.(map[string]any)
	if !ok || errs["name"] != "name is required" {
		t.Errorf("errors payload = %v", f.Payload)
	}

	// Filling the field clears the error map on the next emission.
	sendOp(t, conn, ClientOp{Op: OpSetField, Field: "name", Value: "ada"})
	f = readFrame(t, conn)
	if f.Topic != "errors" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	errs, _ = f.Payload.(map[string]any)
	if len(errs) != 0 {
		t.Errorf("errors not cleared: %v", errs)
	}
}

func TestSchemaOpUnknownName(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSchema, Schema: "missing"})

	f := readFrame(t, conn)
	if f.Type != FrameError || f.Code != CodeUnknownSchema {
		t.Errorf("unexpected frame: %+v", f)
	}
}

func TestSetErrorsOp(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"errors"}})
	sendOp(t, conn, ClientOp{Op: OpSetErrors, Errors: map[string]string{"email": "taken"}})

	f := readFrame(t, conn)
	errs, ok := f.Payload.(map[string]any)
	if !ok || errs["email"] != "taken" {
		t.Errorf("errors payload = %v", f.Payload)
	}
}

func TestSetMetaOp(t *testing.T) {
	_, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	sendOp(t, conn, ClientOp{Op: OpSubscribe, Topics: []string{"properties"}})
	sendOp(t, conn, ClientOp{Op: OpSetMeta, Field: "email", Property: "touched", Value: true})

	f := readFrame(t, conn)
	if f.Topic != "properties" {
		t.Fatalf("unexpected frame: %+v", f)
	}
	props, ok := f.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", f.Payload)
	}
	meta, _ := props["email"].(map[string]any)
	if meta["touched"] != true {
		t.Errorf("meta = %v", meta)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	_, ts := testServer(t, nil)
	connA := dialWS(t, ts)
	connB := dialWS(t, ts)

	sendOp(t, connA, ClientOp{Op: OpSubscribe, Topics: []string{"values"}})
	sendOp(t, connB, ClientOp{Op: OpSubscribe, Topics: []string{"values"}})

	// A write on one session must never reach the other session's store.
	sendOp(t, connA, ClientOp{Op: OpSetField, Field: "name", Value: "ada"})
	sendOp(t, connB, ClientOp{Op: OpSetField, Field: "name", Value: "grace"})

	fa := readFrame(t, connA)
	da, _ := fa.Payload.(map[string]any)
	if da["name"] != "ada" {
		t.Errorf("session A delta = %v", da)
	}

	fb := readFrame(t, connB)
	db, _ := fb.Payload.(map[string]any)
	if db["name"] != "grace" {
		t.Errorf("session B delta = %v", db)
	}
}

func TestSessionTrackedAndRemoved(t *testing.T) {
	srv, ts := testServer(t, nil)
	conn := dialWS(t, ts)

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.sessions) == 1
	})

	conn.Close()

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.sessions) == 0
	})
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := New(Config{
		Addr:     "127.0.0.1:0",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registry: prometheus.NewRegistry(),
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
