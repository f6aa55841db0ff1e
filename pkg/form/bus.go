package form

import "sync"

// Topic names a notification channel on the store's bus. Subscribers choose
// which topics to observe; each topic carries its own payload shape.
type Topic string

const (
	// TopicValues carries the delta of changed field values as map[string]any.
	TopicValues Topic = "values"

	// TopicProperties carries the replaced metadata map for a single field as
	// map[string]map[string]any.
	TopicProperties Topic = "properties"

	// TopicErrors carries the full replacement error map as map[string]string.
	TopicErrors Topic = "errors"
)

// subscriber wraps one registered callback. Every On call allocates its own
// subscriber, so registering the same function twice yields two independent
// registrations with independent cancel handles.
type subscriber struct {
	fn func(payload any)
}

// Bus is a topic-keyed notification bus. Callbacks are invoked in
// registration order; topics are fully independent of each other.
type Bus struct {
	mu   sync.RWMutex
	subs map[Topic][]*subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]*subscriber)}
}

// On registers fn under topic and returns a cancel function that removes
// exactly this registration. Calling cancel more than once is a no-op.
func (b *Bus) On(topic Topic, fn func(payload any)) func() {
	s := &subscriber{fn: fn}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], s)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, existing := range list {
			if existing == s {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes every callback currently registered under topic, in
// registration order, with payload. The list is snapshotted before
// iterating, so a callback may cancel itself or any other registration
// during the emission; the snapshot still runs to completion.
func (b *Bus) Emit(topic Topic, payload any) {
	b.mu.RLock()
	list := b.subs[topic]
	snapshot := make([]*subscriber, len(list))
	copy(snapshot, list)
	b.mu.RUnlock()

	for _, s := range snapshot {
		s.fn(payload)
	}
}
