package tempo

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Signal is a payload-free notification with any number of handlers.
// Handlers run synchronously on the emitting goroutine, in the order they were connected,
// and must not edit the map that emitted them.
type Signal struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]func()
}

// Connection identifies one handler registered on a Signal.
type Connection struct {
	signal *Signal
	id     uint64
}

// Connect registers fn and returns a handle that removes it again.
func (s *Signal) Connect(fn func()) Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = make(map[uint64]func())
	}
	s.nextID++
	s.handlers[s.nextID] = fn
	return Connection{signal: s, id: s.nextID}
}

// Disconnect removes the handler. It is safe to call more than once.
func (c Connection) Disconnect() {
	if c.signal == nil {
		return
	}
	c.signal.mu.Lock()
	defer c.signal.mu.Unlock()
	delete(c.signal.handlers, c.id)
}

// Emit calls every connected handler.
func (s *Signal) Emit() {
	s.mu.Lock()
	ids := maps.Keys(s.handlers)
	slices.Sort(ids)
	handlers := make([]func(), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, s.handlers[id])
	}
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}
