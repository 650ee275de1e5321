package gateway

import (
	"encoding/json"
	"fmt"
)

// Command is the inbound envelope read off a client connection. The
// gateway fills ConnID from the connection the bytes arrived on;
// clients cannot spoof it.
type Command struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
	ConnID  string          `json:"-"`
}

// CommandType tags an inbound command.
type CommandType string

const (
	CmdRegisterParticipant CommandType = "participant:register"
	CmdRegisterPresenter   CommandType = "presenter:register"
	CmdCreatePoll          CommandType = "poll:create"
	CmdCastVote            CommandType = "vote:cast"
	CmdKickParticipant     CommandType = "participant:kick"
	CmdChatMessage         CommandType = "chat:message"
	// CmdDisconnect is synthesized by the gateway when a connection
	// drops; it never arrives on the wire.
	CmdDisconnect CommandType = "disconnect"
)

// ParseCommand validates the envelope shape. Payload contents are
// decoded per command type by the session.
func ParseCommand(connID string, data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command envelope: %w", err)
	}
	switch cmd.Type {
	case CmdRegisterParticipant, CmdRegisterPresenter, CmdCreatePoll,
		CmdCastVote, CmdKickParticipant, CmdChatMessage:
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	cmd.ConnID = connID
	return cmd, nil
}

// RegisterParticipantPayload accompanies participant:register.
type RegisterParticipantPayload struct {
	Name string `json:"name"`
}

// CreatePollPayload accompanies poll:create. DurationMs of zero means
// the configured default; CorrectIndex may be absent.
type CreatePollPayload struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	DurationMs   int64    `json:"durationMs"`
	CorrectIndex *int     `json:"correctIndex"`
}

// CastVotePayload accompanies vote:cast. OptionIndex is a pointer so
// a missing or non-numeric index fails shape validation instead of
// silently voting for option zero.
type CastVotePayload struct {
	PollID      int  `json:"pollId"`
	OptionIndex *int `json:"optionIndex"`
}

// KickParticipantPayload accompanies participant:kick.
type KickParticipantPayload struct {
	Name string `json:"name"`
}

// ChatMessagePayload is fanned out verbatim to every connection.
type ChatMessagePayload struct {
	From    string `json:"from"`
	Name    string `json:"name"`
	Content string `json:"content"`
}
