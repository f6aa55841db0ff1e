package form

import "sync"

// FieldBinding projects a single field of a Store. It caches the field's
// value, metadata and error — seeded from the store at bind time — and
// keeps them fresh from bus emissions.
//
// A controlled binding signals invalidation on every relevant value change.
// An uncontrolled binding only refreshes its cache on value changes; its
// consumer reads the latest value on demand, trading re-render cost for
// immediacy. Metadata and error changes are assumed rare and always signal
// in either mode.
type FieldBinding struct {
	store      *Store
	invalidate func()

	mu         sync.Mutex
	name       string
	controlled bool
	value      any
	meta       map[string]any
	err        string

	cancels []func()
}

// FieldOption configures a FieldBinding.
type FieldOption func(*FieldBinding)

// Controlled marks the binding as controlled: value changes signal
// invalidation in addition to updating the cache.
func Controlled() FieldOption {
	return func(f *FieldBinding) {
		f.controlled = true
	}
}

// WithFieldInvalidate sets the invalidation callback.
func WithFieldInvalidate(fn func()) FieldOption {
	return func(f *FieldBinding) {
		f.invalidate = fn
	}
}

// BindField projects one field of store, seeding the cached value,
// metadata and error from the store's current state and subscribing to all
// three topics.
func BindField(store *Store, name string, opts ...FieldOption) *FieldBinding {
	f := &FieldBinding{store: store, name: name}
	for _, opt := range opts {
		opt(f)
	}
	f.seed()
	f.subscribe()
	return f
}

// Value returns the cached field value.
func (f *FieldBinding) Value() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Meta returns the cached metadata map. The map is replaced wholesale by
// the store on every metadata update, never mutated in place.
func (f *FieldBinding) Meta() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}

// Error returns the cached error message; empty when the field has none.
func (f *FieldBinding) Error() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Rebind switches the binding to a different field name or mode. The
// current subscriptions are released, the cache is re-seeded from the
// store, and all three topics are subscribed again.
func (f *FieldBinding) Rebind(name string, controlled bool) {
	f.Close()

	f.mu.Lock()
	f.name = name
	f.controlled = controlled
	f.mu.Unlock()

	f.seed()
	f.subscribe()
}

// Close releases all three subscriptions. Idempotent.
func (f *FieldBinding) Close() {
	for _, cancel := range f.cancels {
		cancel()
	}
	f.cancels = nil
}

func (f *FieldBinding) seed() {
	value, _ := f.store.Field(f.name)
	meta := f.store.Properties()[f.name]
	errMsg := f.store.Errors()[f.name]

	f.mu.Lock()
	f.value = value
	f.meta = meta
	f.err = errMsg
	f.mu.Unlock()
}

func (f *FieldBinding) subscribe() {
	f.cancels = []func(){
		f.store.OnValues(f.applyValues),
		f.store.OnProperties(f.applyProperties),
		f.store.OnErrors(f.applyErrors),
	}
}

func (f *FieldBinding) applyValues(delta map[string]any) {
	f.mu.Lock()
	value, ok := delta[f.name]
	if !ok || valueEqual(f.value, value) {
		f.mu.Unlock()
		return
	}
	f.value = value
	controlled := f.controlled
	f.mu.Unlock()

	if controlled {
		f.signal()
	}
}

func (f *FieldBinding) applyProperties(delta map[string]map[string]any) {
	f.mu.Lock()
	meta, ok := delta[f.name]
	if !ok || shallowEqual(f.meta, meta, valueEqual) {
		f.mu.Unlock()
		return
	}
	f.meta = meta
	f.mu.Unlock()

	f.signal()
}

func (f *FieldBinding) applyErrors(errs map[string]string) {
	f.mu.Lock()
	msg := errs[f.name]
	if msg == f.err {
		f.mu.Unlock()
		return
	}
	f.err = msg
	f.mu.Unlock()

	f.signal()
}

func (f *FieldBinding) signal() {
	if f.invalidate != nil {
		f.invalidate()
	}
}
