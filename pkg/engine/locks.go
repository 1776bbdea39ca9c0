package engine

import "sync"

// convLocks serializes pipeline runs per conversation ID. Lock entries are
// refcounted and dropped when idle, so the map does not grow with the
// number of conversations ever seen.
type convLocks struct {
	mu    sync.Mutex
	locks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func newConvLocks() *convLocks {
	return &convLocks{locks: make(map[string]*convLock)}
}

// lock acquires the lock for id, blocking while another run holds it, and
// returns the matching unlock function.
func (l *convLocks) lock(id string) func() {
	l.mu.Lock()
	cl, ok := l.locks[id]
	if !ok {
		cl = &convLock{}
		l.locks[id] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	return func() {
		cl.mu.Unlock()

		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
