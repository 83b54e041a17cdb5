package server

import (
	"context"
	"strings"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/game"
)

// notifierMux routes engine messages to the transport that owns the chat,
// keyed by the chat id prefix. Registration happens during Init, before any
// session can send.
type notifierMux struct {
	byPrefix map[string]game.Notifier
}

func newNotifierMux() *notifierMux {
	return &notifierMux{byPrefix: make(map[string]game.Notifier)}
}

func (m *notifierMux) register(prefix string, n game.Notifier) {
	m.byPrefix[prefix] = n
}

func (m *notifierMux) Send(ctx context.Context, msg domain.OutgoingMessage) error {
	for prefix, n := range m.byPrefix {
		if strings.HasPrefix(string(msg.Chat), prefix) {
			return n.Send(ctx, msg)
		}
	}
	return errors.New(errors.CodeFailedPrecondition,
		errors.WithMessagef("no transport for chat %s", msg.Chat))
}
