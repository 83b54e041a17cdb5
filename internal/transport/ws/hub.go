// Package ws runs the WebSocket transport: browser clients join named rooms
// and play the same games the Telegram transport does.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quizairium/quizairium/internal/domain"
)

// ChatPrefix marks chat ids owned by this transport.
const ChatPrefix = "ws:"

// ChatID converts a room name to the engine's chat id form.
func ChatID(room string) domain.ChatID {
	return domain.ChatID(ChatPrefix + room)
}

// Room recovers the room name from an engine chat id. The boolean is false
// for chats owned by another transport.
func Room(chat domain.ChatID) (string, bool) {
	return strings.CutPrefix(string(chat), ChatPrefix)
}

// Hub tracks connected clients per room and fans engine messages out to
// them. It is the session notifier for ws-owned chats.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*client]struct{})}
}

// Send implements the session notifier: the message is broadcast to every
// client in the chat's room. An empty room is not an error; games keep
// running while everyone reconnects.
func (h *Hub) Send(_ context.Context, msg domain.OutgoingMessage) error {
	room, ok := Room(msg.Chat)
	if !ok {
		return fmt.Errorf("not a ws chat: %s", msg.Chat)
	}

	h.broadcast(room, outbound{Type: "message", Text: msg.Text})
	return nil
}

func (h *Hub) broadcast(room string, msg outbound) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		select {
		case <-c.done:
		case c.send <- msg:
		default:
			// Slow consumer; drop the message rather than block the engine.
			slog.Warn("ws: dropping message for slow client", "room", room, "participant", c.participant)
		}
	}
}

func (h *Hub) join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) leave(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}
