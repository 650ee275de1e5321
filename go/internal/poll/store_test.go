package poll

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func intPtr(i int) *int { return &i }

func TestCreatePollAssignsMonotonicIDs(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)

	p1 := s.CreatePoll("q1", []string{"a", "b"}, time.Minute, nil, "t1")
	p2 := s.CreatePoll("q2", []string{"a", "b"}, time.Minute, nil, "t1")
	if p1.ID != 1 || p2.ID != 2 {
		t.Fatalf("expected ids 1,2 got %d,%d", p1.ID, p2.ID)
	}

	// Closing must not recycle ids.
	if _, err := s.ClosePoll(p1.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	p3 := s.CreatePoll("q3", []string{"a", "b"}, time.Minute, nil, "t1")
	if p3.ID != 3 {
		t.Fatalf("expected id 3 after close, got %d", p3.ID)
	}
}

func TestCreatePollEndTime(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)

	p := s.CreatePoll("q", []string{"a", "b"}, 45*time.Second, nil, "t1")
	want := clock.Now().Add(45 * time.Second)
	if !p.EndTime.Equal(want) {
		t.Fatalf("expected end time %v, got %v", want, p.EndTime)
	}
}

func TestClosePollIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)
	p := s.CreatePoll("q", []string{"Red", "Blue"}, time.Minute, intPtr(1), "t1")
	p.RecordVote("Al", 0)

	rec, err := s.ClosePoll(p.ID)
	if err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if _, err := s.ClosePoll(p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second close, got %v", err)
	}

	if rec.ID != p.ID || rec.Question != "q" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Results) != 2 || rec.Results[0] != 1 || rec.Results[1] != 0 {
		t.Fatalf("unexpected results: %v", rec.Results)
	}
	if rec.CorrectIndex == nil || *rec.CorrectIndex != 1 {
		t.Fatalf("unexpected correct index: %v", rec.CorrectIndex)
	}
	if len(rec.Ledger) != 1 || rec.Ledger[0].Name != "Al" || rec.Ledger[0].Option != "Red" {
		t.Fatalf("unexpected ledger: %+v", rec.Ledger)
	}
	if !rec.ClosedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected close time: %v", rec.ClosedAt)
	}

	// Exactly one history record for the id.
	if got := s.HistoryFor("t1"); len(got) != 1 || got[0].ID != p.ID {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestFindActiveAfterClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)
	p := s.CreatePoll("q", []string{"a", "b"}, time.Minute, nil, "t1")

	if _, ok := s.FindActive(p.ID); !ok {
		t.Fatal("expected poll to be active")
	}
	if _, err := s.ClosePoll(p.ID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, ok := s.FindActive(p.ID); ok {
		t.Fatal("expected poll to be gone from active set")
	}
	if _, ok := s.FindActive(99); ok {
		t.Fatal("expected unknown id to miss")
	}
}

func TestHistoryForFiltersByPresenter(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)
	p1 := s.CreatePoll("q1", []string{"a", "b"}, time.Minute, nil, "t1")
	p2 := s.CreatePoll("q2", []string{"a", "b"}, time.Minute, nil, "t2")
	p3 := s.CreatePoll("q3", []string{"a", "b"}, time.Minute, nil, "t1")

	for _, id := range []int{p1.ID, p2.ID, p3.ID} {
		if _, err := s.ClosePoll(id); err != nil {
			t.Fatalf("close %d failed: %v", id, err)
		}
	}

	h1 := s.HistoryFor("t1")
	if len(h1) != 2 || h1[0].ID != p1.ID || h1[1].ID != p3.ID {
		t.Fatalf("unexpected t1 history: %+v", h1)
	}
	h2 := s.HistoryFor("t2")
	if len(h2) != 1 || h2[0].ID != p2.ID {
		t.Fatalf("unexpected t2 history: %+v", h2)
	}
	if got := s.HistoryFor("t3"); len(got) != 0 {
		t.Fatalf("expected empty history for unknown presenter, got %+v", got)
	}
}

func TestRecordVoteFirstWins(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := NewStore(clock)
	p := s.CreatePoll("q", []string{"a", "b"}, time.Minute, nil, "t1")

	if !p.RecordVote("Al", 0) {
		t.Fatal("expected first vote to be accepted")
	}
	if p.RecordVote("Al", 1) {
		t.Fatal("expected second vote from same name to be rejected")
	}
	counts := LiveCounts(p)
	if counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("rejected vote changed counts: %v", counts)
	}
}
