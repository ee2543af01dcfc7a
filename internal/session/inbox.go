package session

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Frame is the bytes captured by one read, tagged with a per-session sequence
// number. A Frame never changes after it is produced.
type Frame struct {
	seq      uint64
	data     []byte
	received time.Time
}

// NewFrame builds a frame from a copy of data. The reader uses it; so do
// tests and importers that replay captures.
func NewFrame(seq uint64, data []byte, received time.Time) Frame {
	return Frame{seq: seq, data: append([]byte(nil), data...), received: received}
}

// Seq returns the frame's sequence number. The first frame of a session is 1.
func (f Frame) Seq() uint64 { return f.seq }

// Bytes returns a copy of the captured bytes.
func (f Frame) Bytes() []byte { return append([]byte(nil), f.data...) }

// Len returns the number of captured bytes.
func (f Frame) Len() int { return len(f.data) }

// Received returns the capture time.
func (f Frame) Received() time.Time { return f.received }

// inbox is a bounded FIFO of frames. When full, the oldest frame is dropped
// and counted.
type inbox struct {
	mu      sync.Mutex
	buf     []Frame
	head    int
	size    int
	dropped atomic.Uint64
	ready   chan struct{}
}

func newInbox(capacity int) *inbox {
	return &inbox{
		buf:   make([]Frame, capacity),
		ready: make(chan struct{}, 1),
	}
}

func (q *inbox) push(f Frame) {
	q.mu.Lock()
	if q.size == len(q.buf) {
		q.buf[q.head] = Frame{}
		q.head = (q.head + 1) % len(q.buf)
		q.size--
		q.dropped.Inc()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = f
	q.size++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *inbox) pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return Frame{}, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = Frame{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return f, true
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
