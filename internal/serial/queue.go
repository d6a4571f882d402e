// Package serial runs callbacks one at a time, in submission order.
package serial

import "sync"

// Queue is an unbounded single-consumer FIFO. A queued function may push more work.
type Queue struct {
	mu     sync.Mutex
	items  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func New() *Queue {
	q := &Queue{wake: make(chan struct{}, 1), done: make(chan struct{})}
	go q.run()
	return q
}

// Push enqueues fn. It returns false once the queue is closed.
func (q *Queue) Push(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()
	q.signal()
	return true
}

// PushDone enqueues fn and returns a channel closed after fn has run.
// On a closed queue fn is dropped and the channel is already closed.
func (q *Queue) PushDone(fn func()) <-chan struct{} {
	ran := make(chan struct{})
	if !q.Push(func() {
		defer close(ran)
		fn()
	}) {
		close(ran)
	}
	return ran
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()
		fn()
	}
}

// Close stops accepting work. Already queued items still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Done is closed when the consumer has drained the queue after Close.
func (q *Queue) Done() <-chan struct{} { return q.done }
