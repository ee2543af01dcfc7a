package ui

import "serial-app/internal/session"

// feed hands the frames of one session to the window. Only run drains the
// session, so frames reach the log in sequence order.
type feed struct {
	sess *session.Session
	kick chan struct{}
}

func newFeed(s *session.Session) *feed {
	return &feed{sess: s, kick: make(chan struct{}, 1)}
}

// wake asks run to drain now, for frames queued while nobody was listening.
func (f *feed) wake() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// run calls drain whenever frames arrive or wake is called, and once more
// after the reader exits.
func (f *feed) run(drain func(*session.Session)) {
	for {
		select {
		case <-f.sess.Ready():
			drain(f.sess)
		case <-f.kick:
			drain(f.sess)
		case <-f.sess.Done():
			drain(f.sess)
			return
		}
	}
}
