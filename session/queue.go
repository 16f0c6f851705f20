package session

import (
	"context"
	"sync"
)

var released = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Queue runs work one piece at a time in the order slots were reserved.
// The zero value is ready to use.
type Queue struct {
	mu   sync.Mutex
	tail chan struct{}
}

// Reserve claims the next position in the queue. The caller must Wait on
// the slot and, once Wait succeeds, Release it.
func (q *Queue) Reserve() *Slot {
	q.mu.Lock()
	defer q.mu.Unlock()
	prev := q.tail
	if prev == nil {
		prev = released
	}
	next := make(chan struct{})
	q.tail = next
	return &Slot{prev: prev, next: next}
}

// Slot is one reserved position in a Queue.
type Slot struct {
	prev      <-chan struct{}
	next      chan struct{}
	once      sync.Once
	abandoned bool
}

// Wait blocks until every earlier slot has been released. If ctx ends
// first the slot is given up: it releases itself as soon as its turn comes,
// and the caller must not run its work.
func (t *Slot) Wait(ctx context.Context) error {
	select {
	case <-t.prev:
		return nil
	default:
	}
	select {
	case <-t.prev:
		return nil
	case <-ctx.Done():
		t.abandoned = true
		go func() {
			<-t.prev
			t.close()
		}()
		return ctx.Err()
	}
}

// Release lets the next slot run. It is a no-op for an abandoned slot.
func (t *Slot) Release() {
	if !t.abandoned {
		t.close()
	}
}

func (t *Slot) close() {
	t.once.Do(func() { close(t.next) })
}
