package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/snappoll/snappoll/go/internal/poll"
)

// Event is the outbound envelope pushed to connected clients.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventType tags an outbound event.
type EventType string

const (
	EventPollNew           EventType = "poll:new"
	EventPollTally         EventType = "poll:tally"
	EventPollLedger        EventType = "poll:ledger"
	EventPollEnd           EventType = "poll:end"
	EventPollHistory       EventType = "poll:history"
	EventRosterUpdate      EventType = "roster:update"
	EventParticipantKicked EventType = "participant:kicked"
	EventChatMessage       EventType = "chat:message"
	EventError             EventType = "error"
)

// NewEvent builds an envelope, marshaling the payload once so a
// broadcast reuses the same bytes for every destination.
func NewEvent(t EventType, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{Type: t, Payload: data}, nil
}

// PollNewPayload announces an open poll, both on creation and as a
// late-join replay. EndTime is a Unix-millisecond timestamp, matching
// what clients compare against their local clock.
type PollNewPayload struct {
	ID           int      `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	EndTime      int64    `json:"endTime"`
	CorrectIndex *int     `json:"correctIndex"`
}

// TallyPayload carries the aggregate counts for one poll. CorrectIndex
// is only present once the poll has ended by time or by full
// participation; while genuinely open it is withheld so the answer
// cannot leak mid-poll.
type TallyPayload struct {
	PollID       int   `json:"pollId"`
	Counts       []int `json:"counts"`
	CorrectIndex *int  `json:"correctIndex,omitempty"`
}

// LedgerPayload is the presenter-only per-voter detail.
type LedgerPayload struct {
	PollID  int                `json:"pollId"`
	Entries []poll.LedgerEntry `json:"entries"`
}

// PollEndPayload signals the terminal transition of a poll.
type PollEndPayload struct {
	PollID       int  `json:"pollId"`
	CorrectIndex *int `json:"correctIndex"`
}

// ErrorPayload is sent back to a connection that submitted a
// malformed command.
type ErrorPayload struct {
	Message string `json:"message"`
}
