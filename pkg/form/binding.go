package form

import (
	"context"
	"sync"
)

// Binding is a form-level projection over a Store. It derives a single
// boolean — is the form currently valid — from the error map, and can
// optionally track a merged snapshot of emitted value deltas for consumers
// that want live values without re-reading the store.
//
// The binding holds no form state of its own beyond those caches; the
// store stays the single source of truth.
type Binding struct {
	store *Store

	invalidate func()
	onChange   func(delta map[string]any)
	track      bool

	mu       sync.Mutex
	valid    bool
	snapshot map[string]any

	cancels []func()
}

// BindOption configures a Binding.
type BindOption func(*Binding)

// WithInvalidate sets the callback signalled when the binding's derived
// validity may have changed: once at bind time and once per error-map
// emission. Value and metadata emissions never signal it.
func WithInvalidate(fn func()) BindOption {
	return func(b *Binding) {
		b.invalidate = fn
	}
}

// WithTrackedValues keeps a running snapshot of the form's values, updated
// by shallow-merging every emitted delta. Read it with Snapshot.
func WithTrackedValues() BindOption {
	return func(b *Binding) {
		b.track = true
	}
}

// WithChangeHook registers fn to receive the raw delta of every value
// emission. The hook does not influence invalidation.
func WithChangeHook(fn func(delta map[string]any)) BindOption {
	return func(b *Binding) {
		b.onChange = fn
	}
}

// Bind projects store into a Binding and runs an immediate validation pass
// to establish initial validity. The invalidate callback, when set, is
// signalled once before Bind returns.
func Bind(store *Store, opts ...BindOption) *Binding {
	b := &Binding{store: store, valid: true}
	for _, opt := range opts {
		opt(b)
	}

	b.cancels = append(b.cancels, store.OnErrors(b.applyErrors))
	if b.track || b.onChange != nil {
		if b.track {
			b.snapshot = store.Values()
		}
		b.cancels = append(b.cancels, store.OnValues(b.applyValues))
	}

	store.Validate(context.Background())

	b.mu.Lock()
	b.valid = len(store.Errors()) == 0
	b.mu.Unlock()
	b.signal()

	return b
}

// IsValid reports whether the error map was empty as of the last errors
// emission (or the initial validation pass).
func (b *Binding) IsValid() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.valid
}

// Snapshot returns a copy of the tracked values. It returns nil unless the
// binding was created with WithTrackedValues.
func (b *Binding) Snapshot() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snapshot == nil {
		return nil
	}
	out := make(map[string]any, len(b.snapshot))
	for k, v := range b.snapshot {
		out[k] = v
	}
	return out
}

// Store returns the underlying store for direct mutation.
func (b *Binding) Store() *Store {
	return b.store
}

// Close releases the binding's subscriptions. Idempotent.
func (b *Binding) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.cancels = nil
}

func (b *Binding) applyErrors(errs map[string]string) {
	b.mu.Lock()
	b.valid = len(errs) == 0
	b.mu.Unlock()
	b.signal()
}

func (b *Binding) applyValues(delta map[string]any) {
	if b.track {
		b.mu.Lock()
		for k, v := range delta {
			b.snapshot[k] = v
		}
		b.mu.Unlock()
	}
	if b.onChange != nil {
		b.onChange(delta)
	}
}

func (b *Binding) signal() {
	if b.invalidate != nil {
		b.invalidate()
	}
}
