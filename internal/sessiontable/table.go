package sessiontable

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"sessionwatch/pkg/models"
)

// ErrNotFound reports a session id with no live row. Only
// session_start creates rows, so callers treat this as a skip, not a
// failure.
var ErrNotFound = errors.New("session not found")

const shardCount = 64

type entry struct {
	mu      sync.Mutex
	removed bool
	session *models.Session
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Table is a sharded keyed store of session state. Mutations to one
// session id are serialized through the entry mutex; unrelated ids
// only contend on the short shard map operations.
type Table struct {
	shards [shardCount]shard
}

// New returns an empty table.
func New() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i].entries = make(map[string]*entry)
	}
	return t
}

func (t *Table) shardFor(sessionID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &t.shards[h.Sum32()%shardCount]
}

// UpsertStart creates a fresh row for the session, replacing any
// existing state for the same id. The whole path runs under the shard
// write lock so a restart can neither resurrect an entry the reaper
// already deleted nor clobber one a concurrent restart just created.
func (t *Table) UpsertStart(sessionID, userID string, ts time.Time) {
	sh := t.shardFor(sessionID)
	fresh := &models.Session{
		SessionID:     sessionID,
		UserID:        userID,
		StartTime:     ts,
		LastHeartbeat: ts,
		Status:        models.StatusActive,
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[sessionID]
	if !ok {
		sh.entries[sessionID] = &entry{session: fresh}
		return
	}

	// Entries are only deleted while holding the shard write lock, so
	// a mapped entry is live here. Lock order shard then entry matches
	// RemoveIf.
	e.mu.Lock()
	e.session = fresh
	e.mu.Unlock()
}

// Get returns a copy of the session, or false when absent.
func (t *Table) Get(sessionID string) (*models.Session, bool) {
	sh := t.shardFor(sessionID)
	sh.mu.RLock()
	e, ok := sh.entries[sessionID]
	sh.mu.RUnlock()
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, false
	}
	return e.session.Clone(), true
}

// Apply runs fn against the session under its serialization lock and
// returns a copy of the resulting state. Unknown ids return
// ErrNotFound without creating a row.
func (t *Table) Apply(sessionID string, fn func(*models.Session)) (*models.Session, error) {
	sh := t.shardFor(sessionID)
	sh.mu.RLock()
	e, ok := sh.entries[sessionID]
	sh.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil, ErrNotFound
	}
	fn(e.session)
	return e.session.Clone(), nil
}

// Remove deletes the session unconditionally.
func (t *Table) Remove(sessionID string) {
	t.RemoveIf(sessionID, func(*models.Session) bool { return true })
}

// RemoveIf deletes the session only when pred still holds under the
// entry lock, keeping reaper sweeps race-safe against concurrent
// Apply calls.
func (t *Table) RemoveIf(sessionID string, pred func(*models.Session) bool) bool {
	sh := t.shardFor(sessionID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[sessionID]
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || !pred(e.session) {
		return false
	}
	e.removed = true
	delete(sh.entries, sessionID)
	return true
}

// Snapshot returns a point-in-time copy of every session.
func (t *Table) Snapshot() []*models.Session {
	out := make([]*models.Session, 0, 64)
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		es := make([]*entry, 0, len(sh.entries))
		for _, e := range sh.entries {
			es = append(es, e)
		}
		sh.mu.RUnlock()

		for _, e := range es {
			e.mu.Lock()
			if !e.removed {
				out = append(out, e.session.Clone())
			}
			e.mu.Unlock()
		}
	}
	return out
}

// Len returns the number of live sessions.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		sh := &t.shards[i]
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
