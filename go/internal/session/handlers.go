package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/snappoll/snappoll/go/internal/gateway"
	"github.com/snappoll/snappoll/go/internal/poll"
)

func (s *Session) handleRegisterParticipant(cmd gateway.Command) {
	var payload gateway.RegisterParticipantPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil || payload.Name == "" {
		log.Debug().Str("connection_id", cmd.ConnID).Msg("rejecting participant registration without name")
		s.sendError(cmd.ConnID, "name is required")
		return
	}

	s.registry.RegisterParticipant(cmd.ConnID, payload.Name)
	s.broadcastRoster()

	// Late joiners get every active poll replayed so they can vote
	// without having been connected at creation time.
	for _, p := range s.store.Active() {
		s.sendEvent(cmd.ConnID, gateway.EventPollNew, pollNewPayload(p))
	}

	log.Info().
		Str("connection_id", cmd.ConnID).
		Str("name", payload.Name).
		Int("participants", s.registry.ParticipantCount()).
		Msg("participant registered")
}

func (s *Session) handleRegisterPresenter(cmd gateway.Command) {
	s.registry.RegisterPresenter(cmd.ConnID)
	s.broadcastRoster()

	// Replay current state: every active poll with its live tally,
	// plus this presenter's own history.
	for _, p := range s.store.Active() {
		s.sendEvent(cmd.ConnID, gateway.EventPollNew, pollNewPayload(p))
		s.sendEvent(cmd.ConnID, gateway.EventPollTally, s.tallyPayload(p))
	}
	s.sendEvent(cmd.ConnID, gateway.EventPollHistory, s.store.HistoryFor(cmd.ConnID))

	log.Info().Str("connection_id", cmd.ConnID).Msg("presenter registered")
}

func (s *Session) handleCreatePoll(ctx context.Context, cmd gateway.Command) {
	if !s.registry.IsPresenter(cmd.ConnID) {
		log.Debug().Str("connection_id", cmd.ConnID).Msg("ignoring poll:create from non-presenter")
		return
	}

	var payload gateway.CreatePollPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		s.sendError(cmd.ConnID, "malformed poll:create payload")
		return
	}
	if payload.Question == "" {
		s.sendError(cmd.ConnID, "question is required")
		return
	}
	if len(payload.Options) < 2 {
		s.sendError(cmd.ConnID, "poll needs at least two options")
		return
	}
	if payload.CorrectIndex != nil && (*payload.CorrectIndex < 0 || *payload.CorrectIndex >= len(payload.Options)) {
		s.sendError(cmd.ConnID, "correctIndex out of range")
		return
	}

	duration := time.Duration(payload.DurationMs) * time.Millisecond
	if duration <= 0 {
		duration = s.cfg.DefaultPollDuration
	}

	p := s.store.CreatePoll(payload.Question, payload.Options, duration, payload.CorrectIndex, cmd.ConnID)
	s.broadcastEvent(gateway.EventPollNew, pollNewPayload(p))
	s.scheduleClose(ctx, p)

	log.Info().
		Int("poll_id", p.ID).
		Str("question", p.Question).
		Int("options", len(p.Options)).
		Dur("duration", duration).
		Str("created_by", cmd.ConnID).
		Msg("poll created")
}

func (s *Session) handleCastVote(cmd gateway.Command) {
	var payload gateway.CastVotePayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil || payload.OptionIndex == nil {
		s.sendError(cmd.ConnID, "malformed vote:cast payload")
		return
	}

	participant, ok := s.registry.Participant(cmd.ConnID)
	if !ok {
		log.Debug().Str("connection_id", cmd.ConnID).Msg("ignoring vote from unregistered connection")
		return
	}
	p, ok := s.store.FindActive(payload.PollID)
	if !ok {
		log.Debug().Int("poll_id", payload.PollID).Msg("ignoring vote for inactive poll")
		return
	}
	idx := *payload.OptionIndex
	if idx < 0 || idx >= len(p.Options) {
		s.sendError(cmd.ConnID, "optionIndex out of range")
		return
	}
	if !p.RecordVote(participant.Name, idx) {
		log.Debug().
			Int("poll_id", p.ID).
			Str("name", participant.Name).
			Msg("ignoring duplicate vote")
		return
	}

	log.Info().
		Int("poll_id", p.ID).
		Str("name", participant.Name).
		Int("option", idx).
		Msg("vote accepted")

	s.broadcastPollState(p)
	if poll.AllVoted(p, s.registry.ParticipantNames()) {
		s.closePoll(p.ID, "completion")
	}
}

func (s *Session) handleKickParticipant(cmd gateway.Command) {
	if !s.registry.IsPresenter(cmd.ConnID) {
		log.Debug().Str("connection_id", cmd.ConnID).Msg("ignoring participant:kick from non-presenter")
		return
	}

	var payload gateway.KickParticipantPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil || payload.Name == "" {
		s.sendError(cmd.ConnID, "malformed participant:kick payload")
		return
	}

	targetID, found := s.registry.FindParticipantByName(payload.Name)
	if !found {
		log.Debug().Str("name", payload.Name).Msg("kick target not found, ignoring")
		return
	}

	s.sendEvent(targetID, gateway.EventParticipantKicked, struct{}{})
	s.registry.RemoveParticipant(targetID)
	log.Info().
		Str("name", payload.Name).
		Str("connection_id", targetID).
		Str("kicked_by", cmd.ConnID).
		Msg("participant kicked")

	s.reconcileAfterRemoval()
	s.bc.CloseConnection(targetID)
}

func (s *Session) handleChatMessage(cmd gateway.Command) {
	var payload gateway.ChatMessagePayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		s.sendError(cmd.ConnID, "malformed chat:message payload")
		return
	}
	// Verbatim fan-out, no state touched.
	s.broadcastEvent(gateway.EventChatMessage, payload)
}

func (s *Session) handleDisconnect(connID string) {
	wasParticipant := s.registry.RemoveParticipant(connID)
	wasPresenter := s.registry.RemovePresenter(connID)
	log.Info().
		Str("connection_id", connID).
		Bool("participant", wasParticipant).
		Bool("presenter", wasPresenter).
		Msg("connection closed")

	// A presenter leaving does not touch their polls; a participant
	// leaving changes the allVoted denominator for every active poll.
	if wasParticipant {
		s.reconcileAfterRemoval()
	}
}

// reconcileAfterRemoval rebroadcasts the roster and every active
// poll's state after the participant population shrank. Removing a
// non-voter can flip allVoted from false to true with no new vote,
// so each poll also gets a completion check.
func (s *Session) reconcileAfterRemoval() {
	s.broadcastRoster()

	// Snapshot: a completion close splices the active set mid-loop.
	active := append([]*poll.Poll(nil), s.store.Active()...)
	names := s.registry.ParticipantNames()
	for _, p := range active {
		s.broadcastPollState(p)
		if poll.AllVoted(p, names) {
			s.closePoll(p.ID, "completion")
		}
	}
}

// broadcastPollState pushes the public tally to everyone and the
// per-voter ledger to presenters only.
func (s *Session) broadcastPollState(p *poll.Poll) {
	s.broadcastEvent(gateway.EventPollTally, s.tallyPayload(p))
	s.sendToPresenters(gateway.EventPollLedger, gateway.LedgerPayload{
		PollID:  p.ID,
		Entries: poll.Ledger(p),
	})
}

// tallyPayload applies the end-reveal rule: the correct answer rides
// along only once the poll has run out of time or everyone present
// has voted.
func (s *Session) tallyPayload(p *poll.Poll) gateway.TallyPayload {
	payload := gateway.TallyPayload{
		PollID: p.ID,
		Counts: poll.LiveCounts(p),
	}
	ended := !s.clock.Now().Before(p.EndTime)
	if ended || poll.AllVoted(p, s.registry.ParticipantNames()) {
		payload.CorrectIndex = p.CorrectIndex
	}
	return payload
}

func (s *Session) broadcastRoster() {
	s.sendToPresenters(gateway.EventRosterUpdate, s.registry.ParticipantNames())
}

func (s *Session) broadcastEvent(t gateway.EventType, payload any) {
	evt, err := gateway.NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	s.bc.Broadcast(evt)
}

func (s *Session) sendEvent(connID string, t gateway.EventType, payload any) {
	evt, err := gateway.NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	s.bc.SendTo(connID, evt)
}

func (s *Session) sendToPresenters(t gateway.EventType, payload any) {
	evt, err := gateway.NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("failed to build event")
		return
	}
	for _, presenterID := range s.registry.PresenterIDs() {
		s.bc.SendTo(presenterID, evt)
	}
}

func (s *Session) sendError(connID, message string) {
	s.sendEvent(connID, gateway.EventError, gateway.ErrorPayload{Message: message})
}

func pollNewPayload(p *poll.Poll) gateway.PollNewPayload {
	return gateway.PollNewPayload{
		ID:           p.ID,
		Question:     p.Question,
		Options:      p.Options,
		EndTime:      p.EndTime.UnixMilli(),
		CorrectIndex: p.CorrectIndex,
	}
}
