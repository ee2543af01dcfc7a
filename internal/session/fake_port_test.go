package session

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

var errFakeClosed = errors.New("fake port closed")

// fakePort stands in for a serial device. Bytes sent on incoming are returned
// by Read, one chunk per call; an error sent on readErr is returned by Read.
type fakePort struct {
	mu          sync.Mutex
	readTimeout time.Duration
	written     bytes.Buffer
	closeCalls  int

	incoming chan []byte
	readErr  chan error
	closed   chan struct{}
	once     sync.Once

	// writeGate blocks Write until it is closed or the port is closed.
	writeGate chan struct{}
	// writeErr is returned by every Write when set.
	writeErr error
	// maxChunk limits how many bytes a single Write accepts.
	maxChunk int
	// hang makes Read ignore Close and block until hang is closed.
	hang chan struct{}
	// entered is closed by the first Read that blocks on hang.
	entered     chan struct{}
	enteredOnce sync.Once
	// timeoutErr is returned by SetReadTimeout when set.
	timeoutErr error
}

func newFakePort() *fakePort {
	return &fakePort{
		incoming: make(chan []byte),
		readErr:  make(chan error, 1),
		closed:   make(chan struct{}),
	}
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.readTimeout = t
	p.mu.Unlock()
	return p.timeoutErr
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.hang != nil {
		if p.entered != nil {
			p.enteredOnce.Do(func() { close(p.entered) })
		}
		<-p.hang
		return 0, errFakeClosed
	}

	p.mu.Lock()
	timeout := p.readTimeout
	p.mu.Unlock()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.closed:
		return 0, errFakeClosed
	case err := <-p.readErr:
		return 0, err
	case chunk := <-p.incoming:
		return copy(b, chunk), nil
	case <-timer.C:
		return 0, nil
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeGate != nil {
		select {
		case <-p.writeGate:
		case <-p.closed:
			return 0, errFakeClosed
		}
	}
	select {
	case <-p.closed:
		return 0, errFakeClosed
	default:
	}

	if p.writeErr != nil {
		return 0, p.writeErr
	}
	if p.maxChunk > 0 && len(b) > p.maxChunk {
		b = b[:p.maxChunk]
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written.Write(b)
	return len(b), nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closeCalls++
	p.mu.Unlock()
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *fakePort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.written.Bytes()...)
}

func (p *fakePort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

// fakeOpener hands out ports from a map and records the modes it was given.
type fakeOpener struct {
	mu    sync.Mutex
	ports map[string]*fakePort
	modes []serial.Mode
	err   error
	calls int
}

func (o *fakeOpener) open(name string, mode *serial.Mode) (Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	if o.err != nil {
		return nil, o.err
	}
	p, ok := o.ports[name]
	if !ok {
		return nil, errors.New("no such device")
	}
	o.modes = append(o.modes, *mode)
	return p, nil
}
