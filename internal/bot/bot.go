// Package bot implements the Telegram control surface: status queries,
// recent verdicts, manual runs and run notifications.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"freshrss_filter/internal/config"
	"freshrss_filter/internal/model"
	"freshrss_filter/internal/status"
	"freshrss_filter/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Runner starts pipeline runs on demand.
type Runner interface {
	TriggerAsync(ctx context.Context) bool
	Running() bool
	Next() time.Time
}

// Reviews is the read side of the review store.
type Reviews interface {
	GetReview(ctx context.Context, id model.ItemID) (*model.Review, error)
	ListReviews(ctx context.Context, opts storage.ListOptions) ([]model.Review, error)
	CountReviews(ctx context.Context) (storage.Counts, error)
}

// Bot is the Telegram bot that answers commands and reports runs.
type Bot struct {
	api    telegramAPI
	store  Reviews
	runner Runner
	state  *status.State
	cfg    *config.Config
	log    *slog.Logger
}

// New creates a Bot with the given Telegram token.
func New(token string, store Reviews, runner Runner, state *status.State, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:    api,
		store:  store,
		runner: runner,
		state:  state,
		cfg:    cfg,
		log:    log.With("component", "bot"),
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				if !b.cfg.IsUserAllowed(update.CallbackQuery.From.ID) {
					continue
				}
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.cfg.IsUserAllowed(update.Message.From.ID) {
				b.reply(update.Message.Chat.ID, "Access denied.")
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// RunStarted implements pipeline.Observer.
func (b *Bot) RunStarted(string, int) {}

// ItemDone implements pipeline.Observer.
func (b *Bot) ItemDone(model.ItemEvent) {}

// RunDone implements pipeline.Observer. The summary goes to the configured
// chat when the run did or would have done something, or hit errors.
func (b *Bot) RunDone(s model.RunSummary) {
	if b.cfg.Telegram.ChatID == 0 {
		return
	}
	if s.Acted() == 0 && s.WouldAct == 0 && s.Errors == 0 {
		return
	}
	b.SendMessage(b.cfg.Telegram.ChatID, FormatSummary(s))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	case cmdRecent:
		b.handleRecent(ctx, chatID, args)
	case cmdReview:
		b.handleReview(ctx, chatID, args)
	case "run":
		b.handleRun(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
