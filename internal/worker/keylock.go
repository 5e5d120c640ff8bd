package worker

import "sync"

// keyLock tracks in-flight serialization keys. It never blocks: a caller
// that loses TryAcquire walks away and the contended job is released back
// to the queue, so workers stay free for jobs with other keys.
type keyLock struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func newKeyLock() *keyLock {
	return &keyLock{inFlight: make(map[string]struct{})}
}

// TryAcquire claims the key if no execution currently holds it.
func (l *keyLock) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.inFlight[key]; held {
		return false
	}
	l.inFlight[key] = struct{}{}
	return true
}

// Release frees the key. Safe to call once per successful TryAcquire;
// the dispatcher guarantees exactly one release per acquisition, on
// success and failure alike.
func (l *keyLock) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, key)
}
