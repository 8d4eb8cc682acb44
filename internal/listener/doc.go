// Package listener delivers normalized events to registered handlers.
//
// The router hands every event to Registry.Dispatch, which only enqueues.
// A single consumer goroutine drains the queue and calls the handlers
// registered for the event's name, followed by the catch-all handlers, in
// registration order. A handler error or panic is logged and counted and
// never stops delivery to the remaining handlers.
package listener
