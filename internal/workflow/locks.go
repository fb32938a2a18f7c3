package workflow

import "sync"

// ticketLocks serializes engine operations per ticket number. Entries are
// reference-counted and removed when the last holder releases, so the map
// does not grow with ticket history.
type ticketLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the per-ticket lock is held and returns the release
// function.
func (l *ticketLocks) acquire(ticketNumber string) func() {
	l.mu.Lock()
	entry, ok := l.entries[ticketNumber]
	if !ok {
		entry = &lockEntry{}
		l.entries[ticketNumber] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, ticketNumber)
		}
		l.mu.Unlock()
	}
}
