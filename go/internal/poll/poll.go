package poll

import "time"

// Poll is one live multiple-choice question. Poll ids are small
// monotonically increasing integers assigned by the Store.
//
// Votes are keyed by the voter's display name, not by connection:
// a voter who reconnects under the same name cannot vote twice, and
// two simultaneous connections sharing a name count as one voter.
// That is a documented property of the system, not an accident.
type Poll struct {
	ID           int
	Question     string
	Options      []string
	EndTime      time.Time
	CreatedBy    string // presenter connection id
	CorrectIndex *int   // nil when the poll has no designated answer

	votes     map[string]int
	voteOrder []string // names in first-vote order, drives the ledger
}

// LedgerEntry is one row of the per-voter detail shown to presenters
// and archived with the closed poll.
type LedgerEntry struct {
	Name   string `json:"name"`
	Option string `json:"option"`
}

// HistoryRecord is the immutable snapshot of a closed poll. It is
// never updated after being appended to history; late events naming
// its poll id are ignored.
type HistoryRecord struct {
	ID           int           `json:"id"`
	Question     string        `json:"question"`
	Options      []string      `json:"options"`
	Results      []int         `json:"results"`
	ClosedAt     time.Time     `json:"time"`
	CreatedBy    string        `json:"createdBy"`
	CorrectIndex *int          `json:"correctIndex"`
	Ledger       []LedgerEntry `json:"voteLedger"`
}

// RecordVote stores a vote for a display name. The first vote wins:
// a name already present in the ledger is rejected and the poll is
// left unchanged.
func (p *Poll) RecordVote(name string, optionIndex int) bool {
	if _, voted := p.votes[name]; voted {
		return false
	}
	p.votes[name] = optionIndex
	p.voteOrder = append(p.voteOrder, name)
	return true
}

// HasVoted reports whether a display name already appears in the ledger.
func (p *Poll) HasVoted(name string) bool {
	_, ok := p.votes[name]
	return ok
}

// VoteCount returns the number of distinct names that have voted.
func (p *Poll) VoteCount() int {
	return len(p.votes)
}
