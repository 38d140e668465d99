package server

import (
	"sync"
	"time"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"github.com/KaramelBytes/edaloom-cli/internal/clean"
	"github.com/KaramelBytes/edaloom-cli/internal/dataset"
	"github.com/google/uuid"
)

// Session is one uploaded dataset after imputation. It is immutable once
// stored, so handlers read it without locking.
type Session struct {
	ID         string
	Name       string
	SizeBytes  int64
	Created    time.Time
	Data       *dataset.Dataset
	Imputation clean.Summary
	Profile    *analysis.Report
}

// NewSession imputes ds in place and profiles the result.
func NewSession(ds *dataset.Dataset, size int64) *Session {
	sum := clean.Impute(ds)
	return &Session{
		ID:         uuid.NewString(),
		Name:       ds.Name,
		SizeBytes:  size,
		Created:    time.Now().UTC(),
		Data:       ds,
		Imputation: sum,
		Profile:    analysis.Profile(ds, analysis.DefaultOptions()),
	}
}

// Store keeps sessions in memory, evicting the oldest beyond max.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	max      int
}

// NewStore returns a store holding at most limit sessions (minimum 1).
func NewStore(limit int) *Store {
	if limit < 1 {
		limit = 1
	}
	return &Store{sessions: make(map[string]*Session), max: limit}
}

// Add stores s and returns the IDs evicted to make room.
func (st *Store) Add(s *Session) []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	var evicted []string
	for len(st.order) >= st.max {
		oldest := st.order[0]
		st.order = st.order[1:]
		delete(st.sessions, oldest)
		evicted = append(evicted, oldest)
	}
	st.sessions[s.ID] = s
	st.order = append(st.order, s.ID)
	return evicted
}

// Get returns the session with id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// Delete removes id and reports whether it existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	for i, v := range st.order {
		if v == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns sessions oldest first.
func (st *Store) List() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.order))
	for _, id := range st.order {
		out = append(out, st.sessions[id])
	}
	return out
}

// Len returns the number of stored sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
