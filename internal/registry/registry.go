// Package registry maps each chat to at most one active game session and is
// the single entry point transports use to drive games.
package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/game"
)

// Registry enforces the single-game-per-chat invariant with an atomic
// check-and-insert. Entries are removed when their session finishes.
type Registry struct {
	deps game.Deps

	mu       sync.Mutex
	sessions map[domain.ChatID]*game.Session
}

func New(deps game.Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[domain.ChatID]*game.Session),
	}
}

// StartGame creates and starts a session for the chat. Fails with
// AlreadyExists while the chat has a non-finished session; concurrent start
// commands for one chat yield exactly one session.
func (r *Registry) StartGame(ctx context.Context, chat domain.ChatID, cfg domain.GameConfig) (*game.Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[chat]; ok && !existing.Finished() {
		r.mu.Unlock()
		return nil, errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("a trivia game is already running in this chat"))
	}

	s := game.NewSession(chat, cfg, r.deps)
	s.OnFinished(func() { r.remove(chat, s) })
	r.sessions[chat] = s
	r.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		r.remove(chat, s)
		return nil, err
	}
	return s, nil
}

// StopGame forces the chat's session to Finished. No-op when the chat has no
// active game.
func (r *Registry) StopGame(chat domain.ChatID) {
	if s, ok := r.Get(chat); ok {
		s.Stop()
	}
}

// Skip closes the chat's current answer window early. No-op without an
// active round.
func (r *Registry) Skip(chat domain.ChatID) {
	if s, ok := r.Get(chat); ok {
		s.Skip()
	}
}

// Execute dispatches a transport command to the chat's slot. Start errors
// surface to the caller; stop and skip are no-ops without an active game.
func (r *Registry) Execute(ctx context.Context, cmd domain.Command) error {
	switch cmd.Type {
	case domain.CommandStart:
		_, err := r.StartGame(ctx, cmd.Chat, cmd.Config)
		return err
	case domain.CommandStop:
		r.StopGame(cmd.Chat)
		return nil
	case domain.CommandSkip:
		r.Skip(cmd.Chat)
		return nil
	}
	return errors.New(errors.CodeInvalidArgument,
		errors.WithMessagef("unknown command type %q", cmd.Type))
}

// SubmitAnswer routes an incoming answer to the chat's session. The second
// return is false when the chat has no active game; the answer is ignored,
// matching how a chat full of unrelated messages behaves.
func (r *Registry) SubmitAnswer(chat domain.ChatID, sub domain.AnswerSubmission) (domain.Verdict, bool) {
	s, ok := r.Get(chat)
	if !ok {
		return domain.VerdictRejectedClosed, false
	}
	return s.Submit(sub), true
}

// Get returns the chat's session, finished or not, while it is registered.
func (r *Registry) Get(chat domain.ChatID) (*game.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[chat]
	return s, ok
}

// Active is the number of registered sessions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Resume rebuilds sessions from persisted snapshots after a restart,
// re-arming their deadlines. Chats that already have a live session keep it.
func (r *Registry) Resume(ctx context.Context) error {
	snaps, err := r.deps.Snapshots.List(ctx)
	if err != nil {
		return errors.Internal(err)
	}

	for _, snap := range snaps {
		r.mu.Lock()
		if existing, ok := r.sessions[snap.Chat]; ok && !existing.Finished() {
			r.mu.Unlock()
			continue
		}
		s := game.Restore(ctx, snap, r.deps)
		chat := snap.Chat
		s.OnFinished(func() { r.remove(chat, s) })
		r.sessions[chat] = s
		r.mu.Unlock()
		s.Resume()
	}

	if len(snaps) > 0 {
		slog.InfoContext(ctx, "registry: resumed sessions", "count", len(snaps))
	}
	return nil
}

// Close halts every registered session without finishing its game. Used on
// shutdown; snapshots persist so games resume on the next boot.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*game.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Halt()
	}
}

func (r *Registry) remove(chat domain.ChatID, s *game.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[chat]; ok && current == s {
		delete(r.sessions, chat)
	}
}
