package watcher

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of events with a single consumer. Push never
// blocks.
type Queue struct {
	mutex sync.Mutex
	items []Event
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends ev.
func (q *Queue) Push(ev Event) {
	q.mutex.Lock()
	q.items = append(q.items, ev)
	q.mutex.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Dequeue removes and returns the oldest event, blocking until one is
// available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (Event, error) {
	for {
		q.mutex.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items[0] = Event{}
			q.items = q.items[1:]
			q.mutex.Unlock()
			return ev, nil
		}
		q.mutex.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}
