// Package telegram runs the Telegram group-chat transport: long-polled
// updates drive the game registry, and the bot posts engine messages back
// into their chats.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/leaderboard"
	"github.com/quizairium/quizairium/internal/registry"
	"github.com/quizairium/quizairium/internal/store/postgres"
)

// ChatPrefix marks chat ids owned by this transport.
const ChatPrefix = "tg:"

// ChatID converts a native Telegram chat id to the engine's form.
func ChatID(id int64) domain.ChatID {
	return domain.ChatID(fmt.Sprintf("%s%d", ChatPrefix, id))
}

// NativeChatID recovers the Telegram chat id from an engine chat id. The
// boolean is false for chats owned by another transport.
func NativeChatID(chat domain.ChatID) (int64, bool) {
	raw, ok := strings.CutPrefix(string(chat), ChatPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

type Config struct {
	Token string
	// Defaults seed each new game; /trivia arguments override Topic.
	Defaults domain.GameConfig

	Registry    *registry.Registry
	Leaderboard *leaderboard.Service
	// Archive is optional; /stats answers with an apology without it.
	Archive *postgres.Archive
}

type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      Config
	registry *registry.Registry
}

func New(cfg Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	slog.Info("telegram: authorized", "account", api.Self.UserName)

	return &Bot{
		api:      api,
		cfg:      cfg,
		registry: cfg.Registry,
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

// Send implements the session notifier for Telegram-owned chats.
func (b *Bot) Send(_ context.Context, msg domain.OutgoingMessage) error {
	id, ok := NativeChatID(msg.Chat)
	if !ok {
		return fmt.Errorf("not a telegram chat: %s", msg.Chat)
	}
	out := tgbotapi.NewMessage(id, msg.Text)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(out); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Text == "" {
		return
	}

	// Plain chat text is an answer attempt while a round is open and noise
	// otherwise, so rejections stay silent except for duplicates.
	verdict, active := b.registry.SubmitAnswer(ChatID(msg.Chat.ID), domain.AnswerSubmission{
		Participant: strconv.FormatInt(msg.From.ID, 10),
		DisplayName: displayName(msg.From),
		Text:        msg.Text,
		ReceivedAt:  msg.Time(),
	})
	if active && verdict == domain.VerdictRejectedDuplicate {
		b.reply(msg, fmt.Sprintf("%s, you already answered this round.", displayName(msg.From)))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "trivia", "start":
		b.cmdStart(ctx, msg)
	case "stop":
		_ = b.registry.Execute(ctx, domain.Command{
			Type:        domain.CommandStop,
			Chat:        ChatID(msg.Chat.ID),
			Participant: strconv.FormatInt(msg.From.ID, 10),
		})
	case "skip":
		_ = b.registry.Execute(ctx, domain.Command{
			Type:        domain.CommandSkip,
			Chat:        ChatID(msg.Chat.ID),
			Participant: strconv.FormatInt(msg.From.ID, 10),
		})
	case "leaderboard":
		b.cmdLeaderboard(ctx, msg)
	case "stats":
		b.cmdStats(ctx, msg)
	case "help":
		b.reply(msg, helpText)
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	cfg := b.cfg.Defaults
	if topic := strings.TrimSpace(msg.CommandArguments()); topic != "" {
		cfg.Topic = topic
	}

	err := b.registry.Execute(ctx, domain.Command{
		Type:        domain.CommandStart,
		Chat:        ChatID(msg.Chat.ID),
		Participant: strconv.FormatInt(msg.From.ID, 10),
		Config:      cfg,
	})
	if errors.IsCode(err, errors.CodeAlreadyExists) {
		b.reply(msg, "A trivia game is already running here. Finish it or /stop first.")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "telegram: start game", "chat", msg.Chat.ID, "error", err)
		b.reply(msg, "Could not start a game right now, try again in a moment.")
	}
}

func (b *Bot) cmdLeaderboard(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.Leaderboard == nil {
		b.reply(msg, "The leaderboard is not available on this server.")
		return
	}

	l, err := b.cfg.Leaderboard.GetLeaderboard(ctx, leaderboard.GetLeaderboardRequest{
		Chat: ChatID(msg.Chat.ID),
	})
	if errors.IsCode(err, errors.CodeNotFound) {
		b.reply(msg, "No points scored in this chat yet. Start a game with /trivia!")
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "telegram: get leaderboard", "chat", msg.Chat.ID, "error", err)
		b.reply(msg, "Could not load the leaderboard, try again later.")
		return
	}

	b.reply(msg, leaderboardText(*l))
}

func (b *Bot) cmdStats(ctx context.Context, msg *tgbotapi.Message) {
	if b.cfg.Archive == nil {
		b.reply(msg, "Player stats are not available on this server.")
		return
	}

	stats, found, err := b.cfg.Archive.Stats(ctx, ChatID(msg.Chat.ID), strconv.FormatInt(msg.From.ID, 10))
	if err != nil {
		slog.ErrorContext(ctx, "telegram: get stats", "chat", msg.Chat.ID, "error", err)
		b.reply(msg, "Could not load your stats, try again later.")
		return
	}
	if !found {
		b.reply(msg, "You have not finished a game in this chat yet.")
		return
	}

	b.reply(msg, statsText(stats))
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(out); err != nil {
		slog.Error("telegram: reply", "chat", msg.Chat.ID, "error", err)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}
