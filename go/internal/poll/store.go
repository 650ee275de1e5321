package poll

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned when a poll id is not in the active set,
// including the case where it was already closed.
var ErrNotFound = errors.New("poll not found")

// Store owns the active poll set and the append-only history of
// closed polls. All mutation goes through the store; ids are assigned
// here and are unique and strictly increasing for the process
// lifetime. Like the registry, the store is confined to the session
// goroutine and is unlocked.
type Store struct {
	clock   clockwork.Clock
	nextID  int
	active  []*Poll
	history []HistoryRecord
}

func NewStore(clock clockwork.Clock) *Store {
	return &Store{clock: clock, nextID: 1}
}

// CreatePoll assigns the next id, stamps the end time and appends the
// poll to the active set. Scheduling the timeout close is the
// caller's job.
func (s *Store) CreatePoll(question string, options []string, duration time.Duration, correctIndex *int, createdBy string) *Poll {
	p := &Poll{
		ID:           s.nextID,
		Question:     question,
		Options:      options,
		EndTime:      s.clock.Now().Add(duration),
		CreatedBy:    createdBy,
		CorrectIndex: correctIndex,
		votes:        make(map[string]int),
	}
	s.nextID++
	s.active = append(s.active, p)
	return p
}

// FindActive returns the active poll with the given id.
func (s *Store) FindActive(id int) (*Poll, bool) {
	for _, p := range s.active {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Active returns the active set in creation order. The slice is
// shared; callers must not mutate it.
func (s *Store) Active() []*Poll {
	return s.active
}

// ClosePoll removes a poll from the active set and appends its
// immutable history record. Returns ErrNotFound if the id is not
// active, which makes close idempotent against the timeout trigger
// racing the completion trigger.
func (s *Store) ClosePoll(id int) (HistoryRecord, error) {
	idx := -1
	for i, p := range s.active {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return HistoryRecord{}, ErrNotFound
	}
	p := s.active[idx]
	s.active = append(s.active[:idx], s.active[idx+1:]...)

	rec := HistoryRecord{
		ID:           p.ID,
		Question:     p.Question,
		Options:      p.Options,
		Results:      LiveCounts(p),
		ClosedAt:     s.clock.Now(),
		CreatedBy:    p.CreatedBy,
		CorrectIndex: p.CorrectIndex,
		Ledger:       Ledger(p),
	}
	s.history = append(s.history, rec)
	return rec, nil
}

// HistoryFor returns the closed polls created by a presenter,
// oldest first.
func (s *Store) HistoryFor(presenterID string) []HistoryRecord {
	var out []HistoryRecord
	for _, rec := range s.history {
		if rec.CreatedBy == presenterID {
			out = append(out, rec)
		}
	}
	return out
}
