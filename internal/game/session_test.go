package game_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/event"
	"github.com/quizairium/quizairium/internal/game"
	"github.com/quizairium/quizairium/internal/provider"
	"github.com/quizairium/quizairium/internal/store/memory"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type chatRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *chatRecorder) Send(_ context.Context, m domain.OutgoingMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m.Text)
	return nil
}

func (r *chatRecorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string, string) (domain.Question, error) {
	return domain.Question{}, fmt.Errorf("generation unavailable")
}

type fixture struct {
	deps     game.Deps
	chat     *chatRecorder
	ledger   *memory.Ledger
	snaps    *memory.SnapshotStore
	bus      *event.Bus
	finished chan domain.GameRecord
}

func makeFixture(t *testing.T, fetcher game.QuestionFetcher) *fixture {
	t.Helper()

	f := &fixture{
		chat:     &chatRecorder{},
		ledger:   memory.NewLedger(),
		snaps:    memory.NewSnapshotStore(),
		bus:      event.NewBus(),
		finished: make(chan domain.GameRecord, 1),
	}
	f.bus.Subscribe(domain.EventNameGameFinished, func(ctx context.Context, e event.Event) error {
		f.finished <- e.(domain.EventGameFinished).Game
		return nil
	})

	if fetcher == nil {
		fetcher = provider.NewAdapter(provider.NewStaticProvider())
	}
	f.deps = game.Deps{
		Fetcher:   fetcher,
		Ledger:    f.ledger,
		Snapshots: f.snaps,
		Bus:       f.bus,
		Notifier:  f.chat,
	}
	return f
}

func (f *fixture) waitFinished(t *testing.T) domain.GameRecord {
	t.Helper()
	select {
	case rec := <-f.finished:
		return rec
	case <-time.After(waitFor):
		t.Fatal("game did not finish in time")
		return domain.GameRecord{}
	}
}

func TestSession_FastestCorrectScoresMost(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	s := game.NewSession("tg:1", domain.GameConfig{
		Rounds:    2,
		RoundTime: time.Minute,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	// Round 1: capital of France. Alice answers first, Bob second with an
	// acceptable alternative casing, Carol is wrong.
	require.Eventually(t, func() bool { return f.chat.contains("Question 1/2") }, waitFor, tick)
	now := time.Now()
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "alice", DisplayName: "Alice", Text: "Paris", ReceivedAt: now,
	}))
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "bob", DisplayName: "Bob", Text: "  PARIS ", ReceivedAt: now.Add(time.Second),
	}))
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "carol", DisplayName: "Carol", Text: "London", ReceivedAt: now.Add(2 * time.Second),
	}))
	s.Skip()

	// Round 2: 2 + 2. Bob is fastest this time.
	require.Eventually(t, func() bool { return f.chat.contains("Question 2/2") }, waitFor, tick)
	now = time.Now()
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "bob", DisplayName: "Bob", Text: "4", ReceivedAt: now,
	}))
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "alice", DisplayName: "Alice", Text: "four", ReceivedAt: now.Add(time.Second),
	}))
	s.Skip()

	rec := f.waitFinished(t)
	assert.Equal(t, "completed", rec.Reason)
	assert.Equal(t, 2, rec.RoundsPlayed)
	// 5 for first, 3 for second, nothing for wrong answers.
	assert.Equal(t, map[string]int{"alice": 8, "bob": 8}, rec.Totals)
	assert.True(t, s.Finished())

	// Finished games leave no snapshot behind.
	snaps, err := f.snaps.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestSession_DeadlineClosesRound(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	s := game.NewSession("tg:2", domain.GameConfig{
		Rounds:    1,
		RoundTime: 100 * time.Millisecond,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	rec := f.waitFinished(t)
	assert.Equal(t, "completed", rec.Reason)
	assert.Empty(t, rec.Totals)
	assert.True(t, f.chat.contains("Time's up"))
}

func TestSession_AllAnsweredClosesEarly(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	s := game.NewSession("tg:3", domain.GameConfig{
		Rounds:               1,
		RoundTime:            time.Minute,
		ExpectedParticipants: 2,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return f.chat.contains("Question 1/1") }, waitFor, tick)
	s.Submit(domain.AnswerSubmission{Participant: "u1", Text: "paris"})
	s.Submit(domain.AnswerSubmission{Participant: "u2", Text: "rome"})

	// The second accepted answer closes the window well before the deadline.
	rec := f.waitFinished(t)
	assert.Equal(t, "completed", rec.Reason)
	assert.Equal(t, map[string]int{"u1": 5}, rec.Totals)
}

func TestSession_Stop(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	s := game.NewSession("tg:4", domain.GameConfig{
		Rounds:    3,
		RoundTime: time.Minute,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return f.chat.contains("Question 1/3") }, waitFor, tick)
	s.Stop()

	rec := f.waitFinished(t)
	assert.Equal(t, "stopped", rec.Reason)
	assert.True(t, f.chat.contains("Game stopped"))

	// Submissions after the stop are rejected, not errors.
	assert.Equal(t, domain.VerdictRejectedClosed, s.Submit(domain.AnswerSubmission{
		Participant: "u1", Text: "paris",
	}))
}

func TestSession_DuplicateSubmissionRejected(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	s := game.NewSession("tg:5", domain.GameConfig{
		Rounds:    1,
		RoundTime: time.Minute,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return f.chat.contains("Question 1/1") }, waitFor, tick)
	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "u1", Text: "london",
	}))
	assert.Equal(t, domain.VerdictRejectedDuplicate, s.Submit(domain.AnswerSubmission{
		Participant: "u1", Text: "paris",
	}))
	s.Stop()
	f.waitFinished(t)
}

func TestSession_ProviderFailureEndsGame(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, failingFetcher{})
	s := game.NewSession("tg:6", domain.GameConfig{
		Rounds:    3,
		RoundTime: time.Minute,
	}, f.deps)
	require.NoError(t, s.Start(context.Background()))

	rec := f.waitFinished(t)
	assert.Equal(t, "provider_error", rec.Reason)
	assert.True(t, f.chat.contains("Failed to generate"))
}

func TestSession_RestoreResumesMidRound(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	snap := domain.GameSnapshot{
		GameID:   "g1",
		Chat:     "tg:7",
		State:    domain.StateAwaitingAnswers,
		Round:    1,
		Question: domain.Question{Prompt: "What is 2 + 2?", Acceptable: []string{"4"}, Canonical: "4"},
		Deadline: time.Now().Add(time.Minute),
		Config:   domain.GameConfig{Rounds: 1, RoundTime: time.Minute},
	}
	require.NoError(t, f.snaps.Put(context.Background(), snap))

	s := game.Restore(context.Background(), snap, f.deps)
	s.Resume()

	assert.Equal(t, domain.VerdictAccepted, s.Submit(domain.AnswerSubmission{
		Participant: "u1", DisplayName: "dave", Text: "4",
	}))
	s.Skip()

	rec := f.waitFinished(t)
	assert.Equal(t, "completed", rec.Reason)
	assert.Equal(t, "g1", rec.GameID)
	assert.Equal(t, map[string]int{"u1": 5}, rec.Totals)
}

func TestSession_RestoreExpiredDeadlineFiresImmediately(t *testing.T) {
	t.Parallel()

	f := makeFixture(t, nil)
	snap := domain.GameSnapshot{
		GameID:   "g2",
		Chat:     "tg:8",
		State:    domain.StateAwaitingAnswers,
		Round:    1,
		Question: domain.Question{Prompt: "What is 2 + 2?", Acceptable: []string{"4"}, Canonical: "4"},
		Deadline: time.Now().Add(-time.Second),
		Config:   domain.GameConfig{Rounds: 1, RoundTime: time.Minute},
	}

	s := game.Restore(context.Background(), snap, f.deps)
	s.Resume()

	rec := f.waitFinished(t)
	assert.Equal(t, "completed", rec.Reason)
	assert.True(t, s.Finished())
}
