package session

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"serial-app/internal/logger"
)

// Manager opens sessions and makes sure a port name is held by at most one
// of its sessions at a time.
type Manager struct {
	opts   Options
	opener Opener
	log    zerolog.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithOptions sets the session timings. Zero fields keep their defaults.
func WithOptions(o Options) ManagerOption {
	return func(m *Manager) { m.opts = o.withDefaults() }
}

// WithOpener replaces the go.bug.st/serial opener.
func WithOpener(o Opener) ManagerOption {
	return func(m *Manager) { m.opener = o }
}

// WithLogger sets the logger sessions log to.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		opts:    DefaultOptions(),
		opener:  OpenSerial,
		log:     zerolog.Nop(),
		claimed: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = logger.Component(m.log, "session")
	return m
}

// Options returns the timings new sessions are opened with.
func (m *Manager) Options() Options { return m.opts }

// Held reports whether an open session of this manager holds the port name.
func (m *Manager) Held(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.claimed[name]
	return ok
}

// Open validates cfg, opens the port and starts the session's reader.
func (m *Manager) Open(cfg PortConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !m.claim(cfg.PortName) {
		return nil, fmt.Errorf("%w: %s is held by another session", ErrPortUnavailable, cfg.PortName)
	}

	port, err := m.opener(cfg.PortName, cfg.mode())
	if err != nil {
		m.unclaim(cfg.PortName)
		err = classifyOpenError(cfg.PortName, err)
		m.log.Warn().Err(err).Str("port", cfg.PortName).Msg("open failed")
		return nil, err
	}

	if err := port.SetReadTimeout(m.opts.ReadTimeout); err != nil {
		if cerr := port.Close(); cerr != nil {
			m.log.Warn().Err(cerr).Str("port", cfg.PortName).Msg("closing port after read timeout failure")
		}
		m.unclaim(cfg.PortName)
		return nil, classifyOpenError(cfg.PortName, err)
	}

	s := newSession(cfg, m.opts, port, m.log, func() { m.unclaim(cfg.PortName) })
	s.start()

	m.log.Info().Str("port", cfg.PortName).Str("mode", cfg.String()).Msg("session opened")
	return s, nil
}

func (m *Manager) claim(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.claimed[name]; ok {
		return false
	}
	m.claimed[name] = struct{}{}
	return true
}

func (m *Manager) unclaim(name string) {
	m.mu.Lock()
	delete(m.claimed, name)
	m.mu.Unlock()
}
