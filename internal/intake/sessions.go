package intake

import "sync"

// sessionLocks hands out one mutex per session id. Entries are dropped
// once nobody holds or waits for them.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until the session is free and returns its unlock func.
func (s *sessionLocks) lock(session string) func() {
	s.mu.Lock()
	l, ok := s.locks[session]
	if !ok {
		l = &sessionLock{}
		s.locks[session] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, session)
		}
		s.mu.Unlock()
	}
}

func (s *sessionLocks) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
