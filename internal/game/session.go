// Package game implements the per-chat trivia session: a state machine
// sequencing question generation, answer collection, scoring and round
// progression. Each session is single-writer; all state transitions run on
// one actor goroutine fed by a mailbox, so concurrent submissions and timer
// fires within a chat are serialized while chats progress independently.
package game

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/event"
	"github.com/quizairium/quizairium/internal/ledger"
	"github.com/quizairium/quizairium/internal/telemetry"
)

// QuestionFetcher produces the next round's question. Implemented by
// provider.Adapter.
type QuestionFetcher interface {
	Fetch(ctx context.Context, topic, difficulty string) (domain.Question, error)
}

// Notifier posts messages into the chat a session belongs to.
type Notifier interface {
	Send(ctx context.Context, msg domain.OutgoingMessage) error
}

// SnapshotStore persists session state for crash recovery.
type SnapshotStore interface {
	Put(ctx context.Context, snap domain.GameSnapshot) error
	Delete(ctx context.Context, chat domain.ChatID) error
	List(ctx context.Context) ([]domain.GameSnapshot, error)
}

// Deps are the collaborators a session needs. All fields are required except
// Clock, which defaults to time.Now.
type Deps struct {
	Fetcher   QuestionFetcher
	Ledger    ledger.Ledger
	Snapshots SnapshotStore
	Bus       *event.Bus
	Notifier  Notifier
	Clock     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

const mailboxSize = 64

// Finish reasons recorded on the game record.
const (
	reasonCompleted   = "completed"
	reasonStopped     = "stopped"
	reasonProvider    = "provider_error"
	reasonPersistence = "persistence_error"
)

// Session is one running trivia game scoped to a single chat.
type Session struct {
	id   string
	chat domain.ChatID
	cfg  domain.GameConfig
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	acts chan func()
	done chan struct{}

	finishedFlag atomic.Bool
	onFinished   func()

	// Everything below is owned by the actor goroutine.
	state        domain.State
	round        int
	question     domain.Question
	deadline     time.Time
	window       *Window
	timer        *time.Timer
	refetched    bool
	participants map[string]string
	startedAt    time.Time
}

// NewSession creates a session in Idle. Call Start to begin the first round.
func NewSession(chat domain.ChatID, cfg domain.GameConfig, deps Deps) *Session {
	return &Session{
		id:           uuid.Must(uuid.NewV7()).String(),
		chat:         chat,
		cfg:          cfg.Normalize(),
		deps:         deps.withDefaults(),
		acts:         make(chan func(), mailboxSize),
		done:         make(chan struct{}),
		state:        domain.StateIdle,
		participants: make(map[string]string),
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Chat() domain.ChatID { return s.chat }

// Finished reports whether the session reached its terminal state. Safe to
// call from any goroutine.
func (s *Session) Finished() bool { return s.finishedFlag.Load() }

// OnFinished registers a callback invoked once when the session finishes.
// Must be set before Start.
func (s *Session) OnFinished(fn func()) { s.onFinished = fn }

// Start transitions Idle -> AwaitingQuestion and triggers the first question
// fetch. The initial snapshot write is the one persistence step that can fail
// the start command; everything after runs on the session's own goroutine.
func (s *Session) Start(ctx context.Context) error {
	if s.state != domain.StateIdle {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("session already started: chat=%s", s.chat))
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.state = domain.StateAwaitingQuestion
	s.startedAt = s.deps.Clock()

	if err := s.deps.Snapshots.Put(ctx, s.snapshot()); err != nil {
		s.state = domain.StateFinished
		s.finishedFlag.Store(true)
		close(s.done)
		s.cancel()
		return errors.Internal(err)
	}

	telemetry.GamesStarted.Inc()
	go s.run()

	s.say(startText(s.cfg))
	s.beginFetch(1)
	return nil
}

// Restore rebuilds a session from a persisted snapshot without starting it.
// Callers register OnFinished and then call Resume.
func Restore(ctx context.Context, snap domain.GameSnapshot, deps Deps) *Session {
	s := &Session{
		id:           snap.GameID,
		chat:         snap.Chat,
		cfg:          snap.Config.Normalize(),
		deps:         deps.withDefaults(),
		acts:         make(chan func(), mailboxSize),
		done:         make(chan struct{}),
		participants: snap.Participants,
		startedAt:    snap.StartedAt,
		round:        snap.Round,
	}
	if s.participants == nil {
		s.participants = make(map[string]string)
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if snap.State == domain.StateAwaitingAnswers {
		s.state = domain.StateAwaitingAnswers
		s.question = snap.Question
		s.deadline = snap.Deadline
		s.window = OpenWindow(snap.Round, snap.Question, snap.Deadline)
	} else {
		// AwaitingQuestion and Scoring resume by fetching the next question;
		// an unawarded closed round cannot be reconstructed without its
		// submissions, and the ledger guards against double awards.
		s.state = domain.StateAwaitingQuestion
	}
	return s
}

// Resume starts a restored session's actor loop, re-arming the persisted
// round deadline. A deadline already in the past fires immediately.
func (s *Session) Resume() {
	if s.state == domain.StateAwaitingAnswers {
		s.armTimer(s.round, s.deadline)
	} else {
		s.beginFetch(s.round + 1)
	}
	go s.run()

	slog.InfoContext(s.ctx, "game: session resumed",
		"chat", s.chat,
		"game", s.id,
		"state", s.state,
		"round", s.round,
	)
}

// Submit routes an answer into the session's round window. Rejections are
// verdicts, not errors: a submission for a closed or missing window yields
// VerdictRejectedClosed.
func (s *Session) Submit(sub domain.AnswerSubmission) domain.Verdict {
	reply := make(chan domain.Verdict, 1)
	if !s.post(func() { reply <- s.handleSubmit(sub) }) {
		return domain.VerdictRejectedClosed
	}
	select {
	case v := <-reply:
		return v
	case <-s.done:
		return domain.VerdictRejectedClosed
	}
}

// Skip force-closes the current answer window, as if the deadline fired.
// No-op outside AwaitingAnswers.
func (s *Session) Skip() {
	s.post(func() {
		if s.state == domain.StateAwaitingAnswers {
			s.closeRound("skipped")
		}
	})
}

// Stop forces the session to Finished from any non-terminal state,
// cancelling the pending deadline timer and any in-flight question fetch.
func (s *Session) Stop() {
	s.post(func() {
		if s.state == domain.StateFinished {
			return
		}
		s.say(stoppedText())
		s.finish(reasonStopped)
	})
}

// Halt tears the session down without finishing the game: no final message,
// no snapshot deletion, so the next boot resumes where this one left off.
func (s *Session) Halt() {
	s.post(func() {
		s.stopTimer()
		s.cancel()
	})
}

// run executes mailbox closures one at a time; it is the only goroutine
// allowed to touch session state after Start.
func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.acts:
			fn()
			if s.state == domain.StateFinished {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.acts <- fn:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) beginFetch(nextRound int) {
	ctx := s.ctx
	go func() {
		q, err := s.deps.Fetcher.Fetch(ctx, s.cfg.Topic, s.cfg.Difficulty)
		s.post(func() { s.handleQuestion(nextRound, q, err) })
	}()
}

func (s *Session) handleQuestion(nextRound int, q domain.Question, err error) {
	if s.state != domain.StateAwaitingQuestion {
		return
	}

	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return
		}
		telemetry.ProviderFailures.Inc()
		if !s.refetched {
			// One automatic re-attempt before giving up on the game.
			s.refetched = true
			slog.WarnContext(s.ctx, "game: question fetch failed, re-attempting",
				"chat", s.chat,
				"round", nextRound,
				"error", err,
			)
			s.beginFetch(nextRound)
			return
		}
		slog.ErrorContext(s.ctx, "game: question fetch failed twice, finishing",
			"chat", s.chat,
			"round", nextRound,
			"error", err,
		)
		s.say(providerFailedText())
		s.finish(reasonProvider)
		return
	}

	s.refetched = false
	s.round = nextRound
	s.question = q
	s.deadline = s.deps.Clock().Add(s.cfg.RoundTime)
	s.window = OpenWindow(s.round, q, s.deadline)
	s.state = domain.StateAwaitingAnswers
	s.persist()

	s.say(questionText(s.round, s.cfg.Rounds, q.Prompt, s.cfg.RoundTime))
	s.armTimer(s.round, s.deadline)
}

func (s *Session) armTimer(round int, deadline time.Time) {
	s.timer = time.AfterFunc(time.Until(deadline), func() {
		s.post(func() { s.handleTimeout(round) })
	})
}

// handleTimeout is the deadline trigger; it is a no-op when the window was
// already closed by skip or the all-answered signal.
func (s *Session) handleTimeout(round int) {
	if s.state != domain.StateAwaitingAnswers || s.round != round || s.window == nil || s.window.Closed() {
		return
	}
	s.closeRound("timeout")
}

func (s *Session) handleSubmit(sub domain.AnswerSubmission) domain.Verdict {
	if s.state != domain.StateAwaitingAnswers || s.window == nil {
		return domain.VerdictRejectedClosed
	}
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = s.deps.Clock()
	}
	if sub.DisplayName != "" {
		s.participants[sub.Participant] = sub.DisplayName
	}

	v := s.window.Submit(sub)
	telemetry.Answers.WithLabelValues(v.String()).Inc()

	if v == domain.VerdictAccepted &&
		s.cfg.ExpectedParticipants > 0 &&
		s.window.Accepted() >= s.cfg.ExpectedParticipants {
		s.closeRound("all answered")
	}
	return v
}

func (s *Session) closeRound(trigger string) {
	s.stopTimer()
	result := s.window.Close()
	s.state = domain.StateScoring

	awards, err := s.deps.Ledger.AwardRound(s.ctx, s.chat, s.id, result, s.cfg.PointsTable)
	switch {
	case stderrors.Is(err, ledger.ErrAlreadyAwarded):
		// Re-delivery after a resume; totals already include this round.
		awards = nil
	case err != nil:
		slog.ErrorContext(s.ctx, "game: award failed",
			"chat", s.chat,
			"game", s.id,
			"round", result.Round,
			"error", err,
		)
		s.say(scoringFailedText())
		s.finish(reasonPersistence)
		return
	}

	telemetry.RoundsScored.Inc()
	now := s.deps.Clock()
	for _, a := range awards {
		s.deps.Bus.Publish(s.ctx, domain.EventScoreUpdated{
			Chat:        s.chat,
			GameID:      s.id,
			Round:       result.Round,
			Participant: a.Participant,
			DisplayName: a.DisplayName,
			Awarded:     a.Points,
			Total:       a.Total,
			UpdateTime:  now,
		})
	}

	s.say(roundResultText(result, awards, trigger))

	if s.round >= s.cfg.Rounds {
		s.finish(reasonCompleted)
		return
	}

	s.state = domain.StateAwaitingQuestion
	s.persist()
	s.beginFetch(s.round + 1)
}

func (s *Session) finish(reason string) {
	s.stopTimer()

	totals, err := s.deps.Ledger.Totals(s.ctx, s.chat, s.id)
	if err != nil {
		slog.ErrorContext(s.ctx, "game: read totals failed",
			"chat", s.chat,
			"game", s.id,
			"error", err,
		)
		totals = map[string]int{}
	}

	s.state = domain.StateFinished
	s.finishedFlag.Store(true)
	telemetry.GamesFinished.WithLabelValues(reason).Inc()

	if err := s.deps.Snapshots.Delete(s.ctx, s.chat); err != nil {
		slog.ErrorContext(s.ctx, "game: delete snapshot failed",
			"chat", s.chat,
			"error", err,
		)
	}

	record := domain.GameRecord{
		GameID:       s.id,
		Chat:         s.chat,
		Rounds:       s.cfg.Rounds,
		RoundsPlayed: s.round,
		Topic:        s.cfg.Topic,
		Totals:       totals,
		Names:        s.participants,
		StartedAt:    s.startedAt,
		FinishedAt:   s.deps.Clock(),
		Reason:       reason,
	}
	s.deps.Bus.Publish(s.ctx, domain.EventGameFinished{Game: record})

	s.say(finalText(record))

	if s.onFinished != nil {
		s.onFinished()
	}
	s.cancel()
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) persist() {
	if err := s.deps.Snapshots.Put(s.ctx, s.snapshot()); err != nil {
		slog.ErrorContext(s.ctx, "game: persist snapshot failed",
			"chat", s.chat,
			"game", s.id,
			"error", err,
		)
	}
}

func (s *Session) snapshot() domain.GameSnapshot {
	names := make(map[string]string, len(s.participants))
	for id, name := range s.participants {
		names[id] = name
	}
	return domain.GameSnapshot{
		GameID:       s.id,
		Chat:         s.chat,
		State:        s.state,
		Round:        s.round,
		Question:     s.question,
		Deadline:     s.deadline,
		Config:       s.cfg,
		Participants: names,
		StartedAt:    s.startedAt,
	}
}

func (s *Session) say(text string) {
	if err := s.deps.Notifier.Send(s.ctx, domain.OutgoingMessage{Chat: s.chat, Text: text}); err != nil {
		slog.ErrorContext(s.ctx, "game: notify failed",
			"chat", s.chat,
			"error", err,
		)
	}
}
