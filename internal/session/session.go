package session

import (
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateClosed State = iota
	StateOpen
	// StateFaulted is terminal. A new session has to be opened to use the
	// device again.
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateFaulted:
		return "faulted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Encoding records how the GUI produced the bytes of an OutboundRequest.
type Encoding int

const (
	EncodingUTF Encoding = iota
	EncodingHex
)

func (e Encoding) String() string {
	if e == EncodingHex {
		return "HEX"
	}
	return "UTF-8"
}

// OutboundRequest is a block of bytes to put on the wire.
type OutboundRequest struct {
	Data     []byte
	Encoding Encoding
}

const (
	opPending int32 = iota
	opRunning
	opAbandoned
)

type writeOp struct {
	data  []byte
	state atomic.Int32
	done  chan error
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Session owns one open port, its reader goroutine and its writer goroutine.
// The zero Session is a session that was never opened: Write reports
// ErrSessionClosed and PollInbound yields nothing.
type Session struct {
	cfg  PortConfig
	opts Options
	port Port
	log  zerolog.Logger

	state        atomic.Int32
	inbox        *inbox
	seq          uint64 // reader goroutine only
	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64

	writes     chan *writeOp
	stopCh     chan struct{}
	stopOnce   sync.Once
	readerDone chan struct{}
	writerDone chan struct{}
	running    atomic.Int32

	releaseOnce sync.Once
	releaseErr  error
	unclaimOnce sync.Once
	release     func()

	faultMu sync.Mutex
	fault   error

	closeOnce sync.Once
	closeErr  error
}

func newSession(cfg PortConfig, opts Options, port Port, log zerolog.Logger, release func()) *Session {
	s := &Session{
		cfg:        cfg,
		opts:       opts,
		port:       port,
		log:        log.With().Str("port", cfg.PortName).Logger(),
		inbox:      newInbox(opts.InboxCapacity),
		writes:     make(chan *writeOp),
		stopCh:     make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
		release:    release,
	}
	s.state.Store(int32(StateOpen))
	return s
}

func (s *Session) start() {
	s.running.Store(2)
	go s.readLoop()
	go s.writeLoop()
}

// Config returns the parameters the session was opened with.
func (s *Session) Config() PortConfig { return s.cfg }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Err returns the error that faulted the session, or nil.
func (s *Session) Err() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	return s.fault
}

// Dropped returns how many frames were discarded because the inbox was full.
func (s *Session) Dropped() uint64 {
	if s.inbox == nil {
		return 0
	}
	return s.inbox.dropped.Load()
}

// Pending returns the number of frames waiting in the inbox.
func (s *Session) Pending() int {
	if s.inbox == nil {
		return 0
	}
	return s.inbox.len()
}

// BytesRead returns the total bytes captured from the port.
func (s *Session) BytesRead() uint64 { return s.bytesRead.Load() }

// BytesWritten returns the total bytes the port accepted.
func (s *Session) BytesWritten() uint64 { return s.bytesWritten.Load() }

// Ready receives a value whenever frames were pushed since the last receive.
// Signals coalesce, so a consumer should drain PollInbound fully after each one.
func (s *Session) Ready() <-chan struct{} {
	if s.inbox == nil {
		return nil
	}
	return s.inbox.ready
}

// Done is closed once the reader goroutine has exited, after Close or a fault.
func (s *Session) Done() <-chan struct{} {
	if s.readerDone == nil {
		return closedChan
	}
	return s.readerDone
}

// PollInbound drains queued frames in sequence order without blocking. The
// sequence ends when the inbox is empty or the caller stops ranging.
func (s *Session) PollInbound() iter.Seq[Frame] {
	return func(yield func(Frame) bool) {
		if s.inbox == nil {
			return
		}
		for {
			f, ok := s.inbox.pop()
			if !ok || !yield(f) {
				return
			}
		}
	}
}

// Write queues req for the writer goroutine and waits for the port to accept
// every byte. It returns ErrSessionClosed when the session is not open or the
// port fails mid-write (the error then also wraps ErrHardwareFault), and
// ErrWriteTimeout when the bytes are not accepted within the write timeout.
func (s *Session) Write(req OutboundRequest) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}
	if len(req.Data) == 0 {
		return nil
	}

	op := &writeOp{data: append([]byte(nil), req.Data...), done: make(chan error, 1)}
	timer := time.NewTimer(s.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case s.writes <- op:
	case <-s.stopCh:
		return s.closedErr()
	case <-timer.C:
		s.log.Warn().Int("bytes", len(op.data)).Msg("write timed out waiting for writer")
		return fmt.Errorf("%w: %s after %s", ErrWriteTimeout, s.cfg.PortName, s.opts.WriteTimeout)
	}

	select {
	case err := <-op.done:
		return err
	case <-timer.C:
		if op.state.CompareAndSwap(opPending, opAbandoned) {
			s.log.Warn().Int("bytes", len(op.data)).Msg("write abandoned before reaching the port")
		} else {
			s.log.Warn().Int("bytes", len(op.data)).Msg("write timed out in progress")
		}
		return fmt.Errorf("%w: %s after %s", ErrWriteTimeout, s.cfg.PortName, s.opts.WriteTimeout)
	}
}

func (s *Session) closedErr() error {
	if err := s.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	return ErrSessionClosed
}

func (s *Session) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Session) signalStop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// releasePort closes the handle. The port name stays claimed until both
// goroutines have exited.
func (s *Session) releasePort() error {
	s.releaseOnce.Do(func() { s.releaseErr = s.port.Close() })
	return s.releaseErr
}

// exited runs as each goroutine returns. The last one gives the port name
// back to the manager, so a leaked reader keeps the name claimed.
func (s *Session) exited() {
	if s.running.Dec() > 0 {
		return
	}
	s.unclaimOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

// faultWith moves an open session to Faulted and releases the port. The
// device is not retried.
func (s *Session) faultWith(err error) error {
	if !s.state.CompareAndSwap(int32(StateOpen), int32(StateFaulted)) {
		return err
	}
	s.faultMu.Lock()
	s.fault = err
	s.faultMu.Unlock()

	s.log.Error().Err(err).Msg("session faulted")
	s.signalStop()
	if cerr := s.releasePort(); cerr != nil {
		s.log.Warn().Err(cerr).Msg("closing faulted port")
	}
	return err
}

func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer s.exited()

	buf := make([]byte, s.opts.ReadBufferSize)
	for {
		if s.stopping() {
			return
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			s.seq++
			s.bytesRead.Add(uint64(n))
			s.inbox.push(NewFrame(s.seq, buf[:n], time.Now()))
		}

		if err != nil {
			// Close races the blocked Read; the driver reports that as an error.
			if s.stopping() {
				return
			}
			s.faultWith(fmt.Errorf("%w: read %s: %w", ErrHardwareFault, s.cfg.PortName, err))
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.exited()

	for {
		select {
		case <-s.stopCh:
			return
		case op := <-s.writes:
			if !op.state.CompareAndSwap(opPending, opRunning) {
				continue
			}
			op.done <- s.writeAll(op.data)
		}
	}
}

func (s *Session) writeAll(data []byte) error {
	for len(data) > 0 {
		n, err := s.port.Write(data)
		if n > 0 {
			s.bytesWritten.Add(uint64(n))
			data = data[n:]
		}
		if err == nil && n == 0 {
			err = io.ErrShortWrite
		}
		if err != nil {
			if s.stopping() {
				return s.closedErr()
			}
			s.faultWith(fmt.Errorf("%w: write %s: %w", ErrHardwareFault, s.cfg.PortName, err))
			return s.closedErr()
		}
	}
	return nil
}

// Close releases the port, stops the reader and writer and waits for both to
// exit. If they do not exit within the close timeout, Close returns
// ErrCloseTimeout and the manager keeps the port name claimed. Calling Close
// again returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.close() })
	return s.closeErr
}

func (s *Session) close() error {
	if s.port == nil {
		return nil
	}

	s.state.CompareAndSwap(int32(StateOpen), int32(StateClosed))
	s.signalStop()
	perr := s.releasePort()

	timer := time.NewTimer(s.opts.CloseTimeout)
	defer timer.Stop()
	waits := []struct {
		name string
		done <-chan struct{}
	}{{"reader", s.readerDone}, {"writer", s.writerDone}}
	for _, w := range waits {
		select {
		case <-w.done:
		case <-timer.C:
			s.log.Error().Str("goroutine", w.name).Dur("timeout", s.opts.CloseTimeout).Msg("session goroutine leaked, port stays claimed")
			return fmt.Errorf("%w: %s %s after %s", ErrCloseTimeout, s.cfg.PortName, w.name, s.opts.CloseTimeout)
		}
	}

	s.log.Info().
		Uint64("bytes_read", s.bytesRead.Load()).
		Uint64("bytes_written", s.bytesWritten.Load()).
		Uint64("dropped", s.Dropped()).
		Str("state", s.State().String()).
		Msg("session closed")

	if perr != nil && !isClosedPortError(perr) {
		return fmt.Errorf("close %s: %w", s.cfg.PortName, perr)
	}
	return nil
}
