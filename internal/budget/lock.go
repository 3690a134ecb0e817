package budget

import (
	"context"
	"sync"
)

// OrgLocker hands out one in-process lock per organization so that
// budget check and write happen as a unit. Entries are dropped once no
// goroutine holds or waits for them.
type OrgLocker struct {
	mu    sync.Mutex
	locks map[string]*orgLock
}

type orgLock struct {
	sem  chan struct{}
	refs int
}

// NewOrgLocker creates an OrgLocker.
func NewOrgLocker() *OrgLocker {
	return &OrgLocker{locks: make(map[string]*orgLock)}
}

// Lock blocks until the organization's lock is held or ctx is done.
// The returned function releases it and must be called exactly once.
func (l *OrgLocker) Lock(ctx context.Context, organizationID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[organizationID]
	if !ok {
		lk = &orgLock{sem: make(chan struct{}, 1)}
		l.locks[organizationID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.sem
				l.release(organizationID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.release(organizationID, lk)
		return nil, ctx.Err()
	}
}

func (l *OrgLocker) release(organizationID string, lk *orgLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, organizationID)
	}
}

// size reports how many organizations currently have lock entries.
func (l *OrgLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
