package sync

import stdsync "sync"

// accountLocks serializa el trabajo por cuenta: el ciclo completo de
// sync y las operaciones de share comparten el mismo mutex, así un
// issue/accept nunca corre contra un pull-merge-push en vuelo.
type accountLocks struct {
	mu    stdsync.Mutex
	locks map[string]*stdsync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*stdsync.Mutex)}
}

func (a *accountLocks) LockAccount(accountID string) (unlock func()) {
	a.mu.Lock()
	l, ok := a.locks[accountID]
	if !ok {
		l = &stdsync.Mutex{}
		a.locks[accountID] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}
