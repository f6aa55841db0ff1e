package form

import (
	"context"
	"sync"
)

// Store is a form-state container. It holds field values, per-field
// metadata and validation errors for one form scope, and emits minimal
// deltas on a topic bus when any of them change.
//
// One Store serves one form scope for its lifetime; independent or nested
// forms get independent stores that never share state or emissions.
//
// All methods are safe for concurrent use. Emissions happen after the
// internal lock is released, so subscriber callbacks may call back into the
// store.
type Store struct {
	mu         sync.RWMutex
	values     map[string]any
	properties map[string]map[string]any
	errors     map[string]string
	validator  Validator

	bus *Bus
}

// Option configures a Store at construction.
type Option func(*Store)

// WithValues seeds the store with initial field values.
func WithValues(values map[string]any) Option {
	return func(s *Store) {
		for k, v := range values {
			s.values[k] = v
		}
	}
}

// WithValidator sets the initial validator. No validation pass runs at
// construction; call Validate, or swap the validator later with
// SetValidator to trigger one.
func WithValidator(v Validator) Option {
	return func(s *Store) {
		s.validator = v
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		values:     make(map[string]any),
		properties: make(map[string]map[string]any),
		errors:     make(map[string]string),
		bus:        NewBus(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Values returns a shallow copy of the current field values. Mutating the
// returned map never affects the store.
func (s *Store) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Field returns the current value of a single field. The second result is
// false when no value has been set for the field.
func (s *Store) Field(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Errors returns a shallow copy of the current error map. Fields without an
// error are absent from the map.
func (s *Store) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.errors))
	for k, v := range s.errors {
		out[k] = v
	}
	return out
}

// Properties returns a shallow copy of the per-field metadata. The inner
// maps are the store's own: they are replaced wholesale on every update and
// never mutated in place, so holding one is safe.
func (s *Store) Properties() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string]any, len(s.properties))
	for k, v := range s.properties {
		out[k] = v
	}
	return out
}

// Set shallow-merges partial into the current values and emits exactly
// partial as the delta on TopicValues. The merge and the emission are
// unconditional; callers that want per-field change suppression use
// SetField. Set never triggers validation.
func (s *Store) Set(partial map[string]any) {
	delta := make(map[string]any, len(partial))
	for k, v := range partial {
		delta[k] = v
	}

	s.mu.Lock()
	for k, v := range delta {
		s.values[k] = v
	}
	s.mu.Unlock()

	s.bus.Emit(TopicValues, delta)
}

// SetField writes a single field value. Writing a value equal to the
// current one is a complete no-op: nothing is emitted, no validation runs
// and no OnSettled hook fires.
//
// Otherwise the delta {field: value} is emitted on TopicValues and, unless
// SkipValidation is given, a full validation pass runs before any OnSettled
// hook is invoked.
func (s *Store) SetField(ctx context.Context, field string, value any, opts ...SetFieldOption) {
	var cfg setFieldConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	s.mu.Lock()
	current, ok := s.values[field]
	if ok && valueEqual(current, value) {
		s.mu.Unlock()
		return
	}
	s.values[field] = value
	s.mu.Unlock()

	s.bus.Emit(TopicValues, map[string]any{field: value})

	if !cfg.skipValidation {
		s.Validate(ctx)
	}
	if cfg.onSettled != nil {
		cfg.onSettled(s.fieldState(field))
	}
}

// SetFieldMeta sets one metadata property on a field. The field's metadata
// map is replaced wholesale with a shallow-merged copy, never mutated in
// place, so consumers can detect change by identity. Setting a property to
// its current value is a no-op and emits nothing.
func (s *Store) SetFieldMeta(field, property string, value any) {
	s.mu.Lock()
	current := s.properties[field]
	if prev, ok := current[property]; ok && valueEqual(prev, value) {
		s.mu.Unlock()
		return
	}
	next := make(map[string]any, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[property] = value
	s.properties[field] = next
	s.mu.Unlock()

	s.bus.Emit(TopicProperties, map[string]map[string]any{field: next})
}

// SetErrors replaces the error map wholesale. The new map is emitted on
// TopicErrors only when it differs from the current one under shallow
// equality; re-setting an equal map emits nothing.
func (s *Store) SetErrors(next map[string]string) {
	s.mu.Lock()
	if shallowEqual(s.errors, next, func(a, b string) bool { return a == b }) {
		s.mu.Unlock()
		return
	}
	stored := make(map[string]string, len(next))
	for k, v := range next {
		stored[k] = v
	}
	s.errors = stored
	s.mu.Unlock()

	emitted := make(map[string]string, len(stored))
	for k, v := range stored {
		emitted[k] = v
	}
	s.bus.Emit(TopicErrors, emitted)
}

// SetValidator swaps the active validator and triggers a validation pass
// against the current values in the background. The pass is
// fire-and-forget; callers that need to observe settlement call Validate
// themselves.
func (s *Store) SetValidator(v Validator) {
	s.mu.Lock()
	s.validator = v
	s.mu.Unlock()

	go s.Validate(context.Background())
}

// On registers fn for a topic and returns a cancel function. Cancelling is
// idempotent and never affects other topics or registrations.
func (s *Store) On(topic Topic, fn func(payload any)) func() {
	return s.bus.On(topic, fn)
}

// OnValues registers a typed callback for TopicValues deltas.
func (s *Store) OnValues(fn func(delta map[string]any)) func() {
	return s.bus.On(TopicValues, func(p any) {
		if delta, ok := p.(map[string]any); ok {
			fn(delta)
		}
	})
}

// OnProperties registers a typed callback for TopicProperties deltas.
func (s *Store) OnProperties(fn func(delta map[string]map[string]any)) func() {
	return s.bus.On(TopicProperties, func(p any) {
		if delta, ok := p.(map[string]map[string]any); ok {
			fn(delta)
		}
	})
}

// OnErrors registers a typed callback for TopicErrors emissions. The
// payload is the full replacement error map, not a delta.
func (s *Store) OnErrors(fn func(errs map[string]string)) func() {
	return s.bus.On(TopicErrors, func(p any) {
		if errs, ok := p.(map[string]string); ok {
			fn(errs)
		}
	})
}

// fieldState assembles the settled view of one field for OnSettled hooks.
func (s *Store) fieldState(field string) FieldState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return FieldState{
		Value: s.values[field],
		Error: s.errors[field],
		Meta:  s.properties[field],
	}
}
