// Package server hosts form stores over WebSocket sessions.
//
// Each connection gets its own form.Store for the lifetime of the session.
// Clients send JSON operations (set, setField, setMeta, setErrors,
// validate, subscribe, schema) and receive topic emissions back as frames,
// so the state and the validation pipeline stay server-side while the
// client renders deltas.
//
// The HTTP surface is a chi router with /ws for sessions, /healthz, and
// /metrics exposing Prometheus instruments. Every client operation runs
// under an OpenTelemetry span.
package server
