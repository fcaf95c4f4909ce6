package channel

import "sync"

// Latest holds at most one pending value. Send never blocks: a value that
// has not been received yet is replaced by the newer one.
type Latest[T any] struct {
	mu       sync.Mutex
	ch       chan T
	replaced int
}

// NewLatest creates an empty mailbox.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ch: make(chan T, 1)}
}

// Send stores v, dropping any value still waiting.
func (l *Latest[T]) Send(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
		l.replaced++
	default:
	}
	l.ch <- v
}

// Receive returns the receive-only channel
func (l *Latest[T]) Receive() <-chan T {
	return l.ch
}

// Len returns 1 while a value is waiting, 0 otherwise.
func (l *Latest[T]) Len() int {
	return len(l.ch)
}

// Replaced returns how many values were dropped unread.
func (l *Latest[T]) Replaced() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}
