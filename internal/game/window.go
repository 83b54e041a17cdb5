package game

import (
	"sort"
	"time"

	"github.com/quizairium/quizairium/internal/domain"
)

// Window collects answer submissions for exactly one round. It is not safe
// for concurrent use; the owning session serializes access through its
// actor loop.
type Window struct {
	round    int
	question domain.Question
	deadline time.Time
	closed   bool

	// submissions in arrival order, accepted only
	accepted []domain.AnswerSubmission
	seen     map[string]struct{}
}

// OpenWindow begins accepting submissions for the round until the deadline.
func OpenWindow(round int, q domain.Question, deadline time.Time) *Window {
	return &Window{
		round:    round,
		question: q,
		deadline: deadline,
		seen:     make(map[string]struct{}),
	}
}

func (w *Window) Round() int { return w.round }

func (w *Window) Deadline() time.Time { return w.deadline }

// Accepted is the number of submissions accepted so far.
func (w *Window) Accepted() int { return len(w.accepted) }

// Submit enforces at-most-one-accepted-per-participant and the deadline.
// A later submission from the same participant never replaces the first.
func (w *Window) Submit(sub domain.AnswerSubmission) domain.Verdict {
	if w.closed || sub.ReceivedAt.After(w.deadline) {
		return domain.VerdictRejectedClosed
	}
	if _, ok := w.seen[sub.Participant]; ok {
		return domain.VerdictRejectedDuplicate
	}

	w.seen[sub.Participant] = struct{}{}
	w.accepted = append(w.accepted, sub)
	return domain.VerdictAccepted
}

// Close is terminal for the round: subsequent submissions are rejected with
// VerdictRejectedClosed. The result ranks correct answers
// fastest-first (ties broken by arrival order), followed by the incorrect
// ones in arrival order.
func (w *Window) Close() domain.RoundResult {
	w.closed = true

	entries := make([]domain.RoundEntry, 0, len(w.accepted))
	for _, sub := range w.accepted {
		entries = append(entries, domain.RoundEntry{
			Participant: sub.Participant,
			DisplayName: sub.DisplayName,
			Text:        sub.Text,
			Correct:     w.question.Matches(sub.Text),
			ReceivedAt:  sub.ReceivedAt,
			Rank:        -1,
		})
	}

	// Stable sort keeps arrival order for equal timestamps and for the
	// incorrect tail.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Correct != entries[j].Correct {
			return entries[i].Correct
		}
		if entries[i].Correct {
			return entries[i].ReceivedAt.Before(entries[j].ReceivedAt)
		}
		return false
	})

	rank := 0
	for i := range entries {
		if entries[i].Correct {
			entries[i].Rank = rank
			rank++
		}
	}

	return domain.RoundResult{
		Round:    w.round,
		Question: w.question,
		Entries:  entries,
	}
}

// Closed reports whether the window stopped accepting submissions.
func (w *Window) Closed() bool { return w.closed }
