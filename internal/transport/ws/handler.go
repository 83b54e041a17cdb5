package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/registry"
)

type Handler struct {
	hub      *Hub
	registry *registry.Registry
	defaults domain.GameConfig
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, reg *registry.Registry, defaults domain.GameConfig) *Handler {
	return &Handler{
		hub:      hub,
		registry: reg,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inbound struct {
	Type string `json:"type"`
	// Topic applies to start only.
	Topic string `json:"topic,omitempty"`
	// Text applies to answer only.
	Text string `json:"text,omitempty"`
}

type outbound struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Verdict string `json:"verdict,omitempty"`
	Error   string `json:"error,omitempty"`
}

// client is one connected socket. send is never closed; the writer exits on
// done, so a broadcaster that still holds a reference after the client left
// its room can never hit a closed channel.
type client struct {
	participant string
	send        chan outbound
	done        chan struct{}
}

// ServeWS upgrades the request and joins the client to its room. Required
// query parameters: room, userId, name.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if room == "" || userID == "" || displayName == "" {
		http.Error(w, "missing room, userId, or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		participant: userID,
		send:        make(chan outbound, 16),
		done:        make(chan struct{}),
	}
	h.hub.join(room, c)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-c.send:
				if err := conn.WriteJSON(msg); err != nil {
					slog.Debug("ws: write failed", "room", room, "error", err)
					return
				}
			case <-c.done:
				return
			}
		}
	}()

	chat := ChatID(room)
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}

		switch msg.Type {
		case "start":
			cfg := h.defaults
			if msg.Topic != "" {
				cfg.Topic = msg.Topic
			}
			err := h.registry.Execute(r.Context(), domain.Command{
				Type:        domain.CommandStart,
				Chat:        chat,
				Participant: userID,
				Config:      cfg,
			})
			if err != nil {
				c.send <- outbound{Type: "error", Error: err.Error()}
			}
		case "stop":
			_ = h.registry.Execute(r.Context(), domain.Command{
				Type: domain.CommandStop, Chat: chat, Participant: userID,
			})
		case "skip":
			_ = h.registry.Execute(r.Context(), domain.Command{
				Type: domain.CommandSkip, Chat: chat, Participant: userID,
			})
		case "answer":
			verdict, active := h.registry.SubmitAnswer(chat, domain.AnswerSubmission{
				Participant: userID,
				DisplayName: displayName,
				Text:        msg.Text,
				ReceivedAt:  time.Now(),
			})
			if !active {
				c.send <- outbound{Type: "error", Error: "no game is running in this room"}
				continue
			}
			c.send <- outbound{Type: "answerResult", Verdict: verdict.String()}
		default:
			c.send <- outbound{Type: "error", Error: "unsupported message type"}
		}
	}

	// Leave the room first so new broadcast snapshots exclude this client,
	// then release the writer. A broadcast that snapshotted the client before
	// leave at worst buffers a message nobody reads.
	h.hub.leave(room, c)
	close(c.done)
	<-writerDone
}
