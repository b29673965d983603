// Package event provides a typed, single-threaded event bus.
//
// Handlers subscribe per payload type and receive a pointer to the payload, so
// they can set result fields (Handled and similar) that the publisher reads
// back. Publish dispatches immediately; Post queues the event for the next
// Flush, which the tick loop calls once before systems run.
package event

import "reflect"

// Bus dispatches events to handlers registered by payload type.
type Bus struct {
	handlers map[reflect.Type][]any
	queue    []func()
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[reflect.Type][]any)}
}

// Subscribe registers fn for events of type T. Handlers run in registration order.
func Subscribe[T any](b *Bus, fn func(*T)) {
	key := reflect.TypeFor[T]()
	b.handlers[key] = append(b.handlers[key], fn)
}

// Publish dispatches ev to every handler for T before returning.
func Publish[T any](b *Bus, ev *T) {
	for _, h := range b.handlers[reflect.TypeFor[T]()] {
		h.(func(*T))(ev)
	}
}

// Post queues ev for the next Flush.
func Post[T any](b *Bus, ev T) {
	b.queue = append(b.queue, func() { Publish(b, &ev) })
}

// Flush dispatches queued events in FIFO order and returns how many ran.
// Events posted by handlers during the flush run in the same flush.
func (b *Bus) Flush() int {
	n := 0
	for len(b.queue) > 0 {
		pending := b.queue
		b.queue = nil
		for _, fn := range pending {
			fn()
			n++
		}
	}
	return n
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int {
	return len(b.queue)
}

// HandlerCount returns the number of handlers registered for T.
func HandlerCount[T any](b *Bus) int {
	return len(b.handlers[reflect.TypeFor[T]()])
}
