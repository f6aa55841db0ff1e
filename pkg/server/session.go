package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/formstore-dev/formstore/pkg/form"
)

// Session is one WebSocket connection and the form store it owns. The
// store's lifetime is the session's: created on upgrade, discarded on
// close, never shared between connections.
type Session struct {
	ID        string
	CreatedAt time.Time

	server *Server
	store  *form.Store
	conn   *websocket.Conn

	writeMu sync.Mutex // serializes conn writes
	subMu   sync.Mutex // protects subs
	subs    map[form.Topic]func()

	closed atomic.Bool
	logger *slog.Logger
	tracer trace.Tracer
}

func newSession(srv *Server, conn *websocket.Conn) *Session {
	id := newSessionID()
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		server:    srv,
		store:     form.New(),
		conn:      conn,
		subs:      make(map[form.Topic]func()),
		logger:    srv.logger.With("session", id),
		tracer:    srv.tracer,
	}
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Store exposes the session's form store.
func (s *Session) Store() *form.Store {
	return s.store
}

// ReadLoop reads and applies client operations until the connection
// closes. It blocks; run it on its own goroutine.
func (s *Session) ReadLoop() {
	defer s.Close()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.server.cfg.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		op, err := DecodeOp(msg)
		if err != nil {
			s.logger.Error("op decode error", "error", err)
			s.sendError("", CodeBadOp, "malformed operation")
			continue
		}

		s.handleOp(op)
	}
}

// handleOp traces and applies one client operation, recording the outcome
// in the server metrics.
func (s *Session) handleOp(op *ClientOp) {
	ctx, span := s.tracer.Start(context.Background(), "formstore."+op.Op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("formstore.op", op.Op),
			attribute.String("formstore.session_id", s.ID),
			attribute.String("formstore.field", op.Field),
		))
	defer span.End()

	err := s.applyOp(ctx, op)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.sendError(op.Op, errCode(err), err.Error())
		s.logger.Warn("op rejected", "op", op.Op, "error", err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	s.server.metrics.OpsTotal.WithLabelValues(op.Op, status).Inc()
}

func (s *Session) applyOp(ctx context.Context, op *ClientOp) error {
	switch op.Op {
	case OpSet:
		s.store.Set(op.Values)

	case OpSetField:
		if op.Field == "" {
			return fmt.Errorf("setField: missing field")
		}
		var opts []form.SetFieldOption
		if op.NoValidate {
			opts = append(opts, form.SkipValidation())
		}
		s.store.SetField(ctx, op.Field, op.Value, opts...)

	case OpSetMeta:
		if op.Field == "" || op.Property == "" {
			return fmt.Errorf("setMeta: missing field or property")
		}
		s.store.SetFieldMeta(op.Field, op.Property, op.Value)

	case OpSetErrors:
		s.store.SetErrors(op.Errors)

	case OpValidate:
		start := time.Now()
		s.store.Validate(ctx)
		s.server.metrics.ValidateSeconds.Observe(time.Since(start).Seconds())

	case OpSubscribe:
		return s.subscribe(op.Topics)

	case OpSchema:
		v, ok := s.server.schemas[op.Schema]
		if !ok {
			return &unknownSchemaError{name: op.Schema}
		}
		s.store.SetValidator(v)

	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
	return nil
}

// subscribe wires the requested topics to outbound emit frames. Topics
// already subscribed stay subscribed; unknown topic names reject the whole
// operation.
func (s *Session) subscribe(topics []string) error {
	for _, name := range topics {
		topic := form.Topic(name)
		switch topic {
		case form.TopicValues, form.TopicProperties, form.TopicErrors:
		default:
			return &unknownTopicError{name: name}
		}

		s.subMu.Lock()
		if _, exists := s.subs[topic]; !exists {
			t := topic
			s.subs[topic] = s.store.On(t, func(payload any) {
				s.pushEmit(t, payload)
			})
		}
		s.subMu.Unlock()
	}
	return nil
}

func (s *Session) pushEmit(topic form.Topic, payload any) {
	s.server.metrics.EmitsTotal.WithLabelValues(string(topic)).Inc()
	s.writeFrame(&ServerFrame{Type: FrameEmit, Topic: string(topic), Payload: payload})
}

func (s *Session) sendError(op, code, message string) {
	s.writeFrame(&ServerFrame{Type: FrameError, Op: op, Code: code, Message: message})
}

func (s *Session) writeFrame(f *ServerFrame) {
	data, err := EncodeFrame(f)
	if err != nil {
		s.logger.Error("frame encode error", "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.server.cfg.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("write error", "error", err)
	}
}

// Close releases the session's subscriptions and the connection.
// Idempotent.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}

	s.subMu.Lock()
	for _, cancel := range s.subs {
		cancel()
	}
	s.subs = make(map[form.Topic]func())
	s.subMu.Unlock()

	s.conn.Close()
	s.server.metrics.ActiveSessions.Dec()
	s.server.removeSession(s.ID)
	s.logger.Info("session closed")
}

type unknownTopicError struct{ name string }

func (e *unknownTopicError) Error() string { return fmt.Sprintf("unknown topic %q", e.name) }

type unknownSchemaError struct{ name string }

func (e *unknownSchemaError) Error() string { return fmt.Sprintf("unknown schema %q", e.name) }

// errCode maps an op failure to a wire error code.
func errCode(err error) string {
	switch err.(type) {
	case *unknownTopicError:
		return CodeUnknownTopic
	case *unknownSchemaError:
		return CodeUnknownSchema
	default:
		return CodeBadOp
	}
}
