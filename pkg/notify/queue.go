package notify

import (
	"errors"
	"sync"
)

// ErrStopped is returned when publishing to a queue whose loop has
// exited.
var ErrStopped = errors.New("notification queue is stopped")

// Queue is an unbounded queue of events. Enqueue never waits on a
// consumer; events are held until received from Ready.
type Queue struct {
	ready       chan Event
	incoming    chan Event
	waiting     []Event
	waitingLock sync.Mutex
	sync        chan struct{}
	done        chan struct{}
}

func NewQueue(stop <-chan struct{}, wg *sync.WaitGroup) *Queue {
	q := &Queue{
		ready:    make(chan Event),
		incoming: make(chan Event),
		waiting:  make([]Event, 0),
		sync:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	wg.Add(1)
	go q.loop(stop, wg)
	return q
}

// This is not guaranteed to be up-to-date; i.e., it is possible to
// receive from `q.Ready()` or enqueue an item, then see the same
// length as before, temporarily.
func (q *Queue) Len() int {
	q.waitingLock.Lock()
	defer q.waitingLock.Unlock()
	return len(q.waiting)
}

// Enqueue hands an event to the queue's loop, which always accepts
// promptly, or returns ErrStopped once the loop has exited.
func (q *Queue) Enqueue(e Event) error {
	select {
	case q.incoming <- e:
		return nil
	case <-q.done:
		return ErrStopped
	}
}

// Ready returns a channel that can be used to dequeue events.
func (q *Queue) Ready() <-chan Event {
	return q.ready
}

// Done is closed when the loop has exited.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// Block until any previous operations have completed. Only meaningful
// when the queue is used from a single other goroutine, so really
// only useful for testing.
func (q *Queue) Sync() {
	select {
	case q.sync <- struct{}{}:
	case <-q.done:
	}
}

func (q *Queue) loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(q.done)
	for {
		var out chan Event = nil
		var next Event
		if head, ok := q.head(); ok {
			out = q.ready
			next = head
		}

		select {
		case <-stop:
			return
		case <-q.sync:
			continue
		case in := <-q.incoming:
			q.waitingLock.Lock()
			q.waiting = append(q.waiting, in)
			q.waitingLock.Unlock()
		case out <- next: // cannot proceed if out is nil
			q.waitingLock.Lock()
			q.waiting = q.waiting[1:]
			q.waitingLock.Unlock()
		}
	}
}

func (q *Queue) head() (Event, bool) {
	q.waitingLock.Lock()
	defer q.waitingLock.Unlock()
	if len(q.waiting) > 0 {
		return q.waiting[0], true
	}
	return Event{}, false
}
