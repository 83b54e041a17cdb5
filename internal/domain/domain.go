package domain

import (
	"strings"
	"time"
)

// ChatID identifies a group chat across transports. Transports prefix their
// native identifiers (e.g. "tg:-100123", "ws:lobby") so one process can serve
// several platforms at once.
type ChatID string

// State is the lifecycle phase of a game session.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingQuestion State = "awaiting_question"
	StateAwaitingAnswers  State = "awaiting_answers"
	StateScoring          State = "scoring"
	StateFinished         State = "finished"
)

// GameConfig holds the per-game settings chosen at start time.
type GameConfig struct {
	// Rounds is the number of questions in the game.
	Rounds int `json:"rounds"`
	// RoundTime is how long a single answer window stays open.
	RoundTime  time.Duration `json:"round_time"`
	Topic      string        `json:"topic"`
	Difficulty string        `json:"difficulty"`
	// PointsTable maps correct-answer rank to points. Ranks past the end of
	// the table earn the final entry.
	PointsTable []int `json:"points_table"`
	// ExpectedParticipants closes the window early once that many answers
	// were accepted. Zero disables the trigger.
	ExpectedParticipants int `json:"expected_participants"`
}

// Normalize fills zero values with the defaults the original bot shipped with.
func (c GameConfig) Normalize() GameConfig {
	if c.Rounds <= 0 {
		c.Rounds = 5
	}
	if c.RoundTime <= 0 {
		c.RoundTime = 30 * time.Second
	}
	if c.Topic == "" {
		c.Topic = "general"
	}
	if len(c.PointsTable) == 0 {
		c.PointsTable = []int{5, 3, 1}
	}
	return c
}

// Question is one trivia question. Immutable once generated; owned by the
// session for the round it was fetched for.
type Question struct {
	Prompt string `json:"prompt"`
	// Acceptable holds the acceptable answer forms, canonical answer included.
	Acceptable []string `json:"acceptable"`
	// Canonical is the answer revealed to the chat.
	Canonical  string `json:"canonical"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

// NormalizeAnswer canonicalizes submitted text for matching: lowercased,
// trimmed, inner whitespace collapsed, leading article "the" stripped.
func NormalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimPrefix(s, "the ")
	return strings.TrimSpace(s)
}

// Matches reports whether text is an acceptable answer for the question.
// Matching is normalized exact comparison, no fuzzy policies.
func (q Question) Matches(text string) bool {
	normalized := NormalizeAnswer(text)
	for _, a := range q.Acceptable {
		if NormalizeAnswer(a) == normalized {
			return true
		}
	}
	return false
}

// AnswerSubmission is one participant's answer attempt within a round.
type AnswerSubmission struct {
	Participant string
	DisplayName string
	Text        string
	ReceivedAt  time.Time
}

// Verdict is the window's decision on a submission. Rejections are expected
// outcomes communicated back to the submitter, never system errors.
type Verdict int

const (
	VerdictAccepted Verdict = iota
	VerdictRejectedDuplicate
	VerdictRejectedClosed
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejectedDuplicate:
		return "rejected_duplicate"
	case VerdictRejectedClosed:
		return "rejected_closed"
	}
	return "unknown"
}

// RoundEntry is one participant's line in a round outcome.
type RoundEntry struct {
	Participant string
	DisplayName string
	Text        string
	Correct     bool
	ReceivedAt  time.Time
	// Rank is the 0-based position among correct answers, -1 otherwise.
	Rank int
}

// RoundResult is the ranked outcome of a closed answer window: correct
// answers first, fastest first, then the rest in arrival order.
type RoundResult struct {
	Round    int
	Question Question
	Entries  []RoundEntry
}

// Correct returns the correct entries in rank order.
func (r RoundResult) Correct() []RoundEntry {
	out := make([]RoundEntry, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Correct {
			out = append(out, e)
		}
	}
	return out
}

// CommandType enumerates the control instructions a chat transport delivers.
type CommandType string

const (
	CommandStart CommandType = "start"
	CommandStop  CommandType = "stop"
	CommandSkip  CommandType = "skip"
)

type Command struct {
	Type        CommandType
	Chat        ChatID
	Participant string
	Config      GameConfig // start only
}

// OutgoingMessage is text the engine wants posted into a chat.
type OutgoingMessage struct {
	Chat ChatID
	Text string
}

// GameSnapshot is the serializable session state persisted after every
// transition so an in-flight game survives a restart.
type GameSnapshot struct {
	GameID       string            `json:"game_id"`
	Chat         ChatID            `json:"chat"`
	State        State             `json:"state"`
	Round        int               `json:"round"`
	Question     Question          `json:"question"`
	Deadline     time.Time         `json:"deadline"`
	Config       GameConfig        `json:"config"`
	Participants map[string]string `json:"participants"`
	StartedAt    time.Time         `json:"started_at"`
}

// GameRecord summarizes a finished game for archival.
type GameRecord struct {
	GameID       string
	Chat         ChatID
	Rounds       int
	RoundsPlayed int
	Topic        string
	Totals       map[string]int
	Names        map[string]string
	StartedAt    time.Time
	FinishedAt   time.Time
	Reason       string
}
