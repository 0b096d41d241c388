package sched

import "fmt"

// ReadyQueue is a bounded ring of jobs waiting for a slot. New jobs join at
// the tail; preempted jobs go back in at the front.
type ReadyQueue struct {
	buf  []*Job
	head int
	n    int
}

func NewReadyQueue(capacity int) *ReadyQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &ReadyQueue{buf: make([]*Job, capacity)}
}

func (q *ReadyQueue) Len() int   { return q.n }
func (q *ReadyQueue) Cap() int   { return len(q.buf) }
func (q *ReadyQueue) Full() bool { return q.n == len(q.buf) }

// EnqueueTail appends j and marks it Ready.
func (q *ReadyQueue) EnqueueTail(j *Job) error {
	if err := q.admit(j); err != nil {
		return err
	}
	q.buf[(q.head+q.n)%len(q.buf)] = j
	q.n++
	j.queued = true
	j.Status = StatusReady
	return nil
}

// EnqueueFront puts j at the head of the queue and marks it Ready.
func (q *ReadyQueue) EnqueueFront(j *Job) error {
	if err := q.admit(j); err != nil {
		return err
	}
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = j
	q.n++
	j.queued = true
	j.Status = StatusReady
	return nil
}

func (q *ReadyQueue) admit(j *Job) error {
	if j.queued {
		return fmt.Errorf("job %d already queued", j.Ref)
	}
	if q.Full() {
		return fmt.Errorf("%w: %d waiting", ErrQueueFull, q.n)
	}
	return nil
}

// Dequeue removes and returns the head, or nil when empty.
func (q *ReadyQueue) Dequeue() *Job {
	if q.n == 0 {
		return nil
	}
	j := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	j.queued = false
	return j
}

// Remove takes j out of the queue wherever it sits, keeping the order of
// the others.
func (q *ReadyQueue) Remove(j *Job) bool {
	idx := -1
	for i := 0; i < q.n; i++ {
		if q.buf[(q.head+i)%len(q.buf)] == j {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	for i := idx; i < q.n-1; i++ {
		q.buf[(q.head+i)%len(q.buf)] = q.buf[(q.head+i+1)%len(q.buf)]
	}
	q.buf[(q.head+q.n-1)%len(q.buf)] = nil
	q.n--
	j.queued = false
	return true
}

// Jobs returns the queued jobs from head to tail.
func (q *ReadyQueue) Jobs() []*Job {
	out := make([]*Job, 0, q.n)
	for i := 0; i < q.n; i++ {
		out = append(out, q.buf[(q.head+i)%len(q.buf)])
	}
	return out
}

func (q *ReadyQueue) reset() {
	for i := range q.buf {
		if q.buf[i] != nil {
			q.buf[i].queued = false
		}
		q.buf[i] = nil
	}
	q.head, q.n = 0, 0
}
