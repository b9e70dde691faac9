package service

import "sync"

// userLocker hands out one mutex per user ID.
//
// SQLite gives us transactional atomicity for a single statement sequence,
// but two engine operations for the same user can still interleave between
// statements (two browser tabs, a restore racing a card create). Operations
// that read state and then write decisions based on it — the default-flag
// swap, ensure-default, restore-with-clear — take the user's lock for the
// whole sequence. Operations for different users never contend.
//
// Locks are never removed from the map. An entry is a single mutex per user
// that has touched a locked operation; for a personal-inventory deployment
// that set is tiny and bounded by the user table.
type userLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newUserLocker() *userLocker {
	return &userLocker{locks: make(map[string]*sync.Mutex)}
}

// UserLocks is the shared per-user lock set. The composition root creates
// one and hands it to every service so operations for the same user
// serialize across services, not just within one.
type UserLocks = userLocker

// NewUserLocks creates the shared lock set.
func NewUserLocks() *UserLocks {
	return newUserLocker()
}

// lock acquires the mutex for userID, creating it on first use. The caller
// must call the returned unlock function, typically via defer.
func (l *userLocker) lock(userID string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
