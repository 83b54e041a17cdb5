package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizairium/quizairium/internal/domain"
)

func TestHub_SendToForeignChatFails(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	err := hub.Send(context.Background(), domain.OutgoingMessage{Chat: "tg:1", Text: "hi"})
	require.Error(t, err)
}

func TestHub_BroadcastDuringClientTeardown(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	const room = "lobby"

	// Session actors broadcast from their own goroutines while clients come
	// and go; a departing client must never crash a broadcaster.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					err := hub.Send(context.Background(), domain.OutgoingMessage{
						Chat: ChatID(room),
						Text: "round update",
					})
					assert.NoError(t, err)
				}
			}
		}()
	}

	for i := 0; i < 500; i++ {
		c := &client{
			participant: fmt.Sprintf("u%d", i),
			send:        make(chan outbound, 1),
			done:        make(chan struct{}),
		}
		hub.join(room, c)
		// Same teardown order as ServeWS: leave the room, then release the
		// writer. send stays open for any broadcast still holding the client.
		hub.leave(room, c)
		close(c.done)
	}

	close(stop)
	wg.Wait()
}

func TestHub_BroadcastDropsWhenClientSlow(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	const room = "lobby"

	c := &client{participant: "u1", send: make(chan outbound, 1), done: make(chan struct{})}
	hub.join(room, c)
	defer func() {
		hub.leave(room, c)
		close(c.done)
	}()

	// Nobody drains send; the second broadcast must not block.
	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Send(context.Background(), domain.OutgoingMessage{
			Chat: ChatID(room),
			Text: "round update",
		}))
	}

	assert.Len(t, c.send, 1)
}
