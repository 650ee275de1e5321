package session

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/snappoll/snappoll/go/internal/gateway"
	"github.com/snappoll/snappoll/go/internal/poll"
	"github.com/snappoll/snappoll/go/internal/registry"
)

// Broadcaster is what the session needs from the transport: role
// targeting is decided here, delivery is the transport's problem.
type Broadcaster interface {
	Broadcast(evt gateway.Event)
	SendTo(connID string, evt gateway.Event)
	CloseConnection(connID string)
}

// Config holds session tuning.
type Config struct {
	// DefaultPollDuration applies when poll:create carries no duration.
	DefaultPollDuration time.Duration
	// CommandBuffer sizes the inbound command channel.
	CommandBuffer int
}

func DefaultConfig() Config {
	return Config{
		DefaultPollDuration: 60 * time.Second,
		CommandBuffer:       256,
	}
}

// Session is the single in-memory authority for the classroom: it
// owns the connection registry and the poll store, and processes every
// inbound command and timer firing to completion on one goroutine.
// Ordering between concurrent votes is arrival order at that
// goroutine; nothing else touches the registry or store.
type Session struct {
	registry *registry.Registry
	store    *poll.Store
	clock    clockwork.Clock
	bc       Broadcaster
	cfg      Config

	cmdCh chan gateway.Command
	// closeCh carries poll ids from fired close timers into the
	// command loop so timeouts serialize with commands.
	closeCh chan int
	timers  map[int]clockwork.Timer
}

func New(reg *registry.Registry, store *poll.Store, clock clockwork.Clock, bc Broadcaster, cfg Config) *Session {
	if cfg.DefaultPollDuration <= 0 {
		cfg.DefaultPollDuration = DefaultConfig().DefaultPollDuration
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = DefaultConfig().CommandBuffer
	}
	return &Session{
		registry: reg,
		store:    store,
		clock:    clock,
		bc:       bc,
		cfg:      cfg,
		cmdCh:    make(chan gateway.Command, cfg.CommandBuffer),
		closeCh:  make(chan int, 16),
		timers:   make(map[int]clockwork.Timer),
	}
}

// Run processes commands until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	log.Info().Msg("session started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session shutting down")
			return
		case cmd := <-s.cmdCh:
			s.dispatch(ctx, cmd)
		case id := <-s.closeCh:
			s.closePoll(id, "timeout")
		}
	}
}

// HandleMessage implements gateway.MessageSink. It validates the
// envelope at the boundary and queues the command for the loop.
// Malformed envelopes are bounced back to the sender.
func (s *Session) HandleMessage(connID string, data []byte) {
	cmd, err := gateway.ParseCommand(connID, data)
	if err != nil {
		log.Debug().Err(err).Str("connection_id", connID).Msg("rejecting malformed command")
		s.sendError(connID, "malformed command")
		return
	}
	s.cmdCh <- cmd
}

// HandleDisconnect implements gateway.MessageSink.
func (s *Session) HandleDisconnect(connID string) {
	s.cmdCh <- gateway.Command{Type: gateway.CmdDisconnect, ConnID: connID}
}

func (s *Session) dispatch(ctx context.Context, cmd gateway.Command) {
	switch cmd.Type {
	case gateway.CmdRegisterParticipant:
		s.handleRegisterParticipant(cmd)
	case gateway.CmdRegisterPresenter:
		s.handleRegisterPresenter(cmd)
	case gateway.CmdCreatePoll:
		s.handleCreatePoll(ctx, cmd)
	case gateway.CmdCastVote:
		s.handleCastVote(cmd)
	case gateway.CmdKickParticipant:
		s.handleKickParticipant(cmd)
	case gateway.CmdChatMessage:
		s.handleChatMessage(cmd)
	case gateway.CmdDisconnect:
		s.handleDisconnect(cmd.ConnID)
	default:
		log.Warn().Str("command_type", string(cmd.Type)).Msg("unknown command type, ignoring")
	}
}

// scheduleClose arms the timeout close for a poll. The timer goroutine
// only forwards the id; the close itself runs on the session loop.
func (s *Session) scheduleClose(ctx context.Context, p *poll.Poll) {
	duration := p.EndTime.Sub(s.clock.Now())
	timer := s.clock.NewTimer(duration)
	s.timers[p.ID] = timer

	go func(id int, t clockwork.Timer) {
		select {
		case <-t.Chan():
			select {
			case s.closeCh <- id:
			case <-ctx.Done():
			}
		case <-ctx.Done():
		}
	}(p.ID, timer)

	log.Debug().
		Int("poll_id", p.ID).
		Time("end_time", p.EndTime).
		Dur("duration", duration).
		Msg("scheduled poll close timer")
}

// stopTimer cancels a pending close timer. Correctness never depends
// on this: a stale timer that fires anyway is absorbed by the
// idempotent close. Draining follows the time.Timer.Stop contract.
func (s *Session) stopTimer(pollID int) {
	timer, ok := s.timers[pollID]
	if !ok {
		return
	}
	delete(s.timers, pollID)
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// closePoll performs the Open -> Closed transition exactly once. Both
// close producers (the armed timer and the completion check) land
// here; whichever comes second finds the poll gone and no-ops.
func (s *Session) closePoll(pollID int, reason string) {
	rec, err := s.store.ClosePoll(pollID)
	if err != nil {
		if errors.Is(err, poll.ErrNotFound) {
			log.Debug().Int("poll_id", pollID).Str("reason", reason).Msg("close for inactive poll, ignoring")
			return
		}
		log.Error().Err(err).Int("poll_id", pollID).Msg("close failed")
		return
	}
	s.stopTimer(pollID)

	s.broadcastEvent(gateway.EventPollTally, gateway.TallyPayload{
		PollID:       rec.ID,
		Counts:       rec.Results,
		CorrectIndex: rec.CorrectIndex,
	})
	s.sendToPresenters(gateway.EventPollLedger, gateway.LedgerPayload{
		PollID:  rec.ID,
		Entries: rec.Ledger,
	})
	s.broadcastEvent(gateway.EventPollEnd, gateway.PollEndPayload{
		PollID:       rec.ID,
		CorrectIndex: rec.CorrectIndex,
	})
	for _, presenterID := range s.registry.PresenterIDs() {
		s.sendEvent(presenterID, gateway.EventPollHistory, s.store.HistoryFor(presenterID))
	}

	log.Info().
		Int("poll_id", rec.ID).
		Str("reason", reason).
		Ints("results", rec.Results).
		Int("votes", len(rec.Ledger)).
		Msg("poll closed")
}
