package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"freshrss_filter/internal/status"
	"freshrss_filter/internal/storage"
)

const (
	defaultRecent = 10
	maxRecent     = 50
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to FreshRSS Filter!

I scan your unread FreshRSS items, ask a language model which ones are ads, and take them out of your way.

Quick start:
1. /status — last run and next scheduled run
2. /recent — latest ads I caught
3. /run — scan now

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/status — last run summary and next scheduled run
/recent [n] — latest ad verdicts (default 10, max 50)
/review <item_id> — verdict details for one item
/run — start a scan now`)
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	counts, err := b.store.CountReviews(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	var snap status.Snapshot
	if b.state != nil {
		snap = b.state.Snapshot()
	}
	b.reply(chatID, FormatStatus(snap, counts, b.runner.Next()))
}

func (b *Bot) handleRecent(ctx context.Context, chatID int64, args string) {
	n, err := ParseCountArg(args, defaultRecent, maxRecent)
	if err != nil {
		b.reply(chatID, "Usage: /recent [n]")
		return
	}

	reviews, err := b.store.ListReviews(ctx, storage.ListOptions{AdsOnly: true, Limit: n})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatReviewList(reviews))
	msg.DisableWebPagePreview = true
	if len(reviews) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, r := range reviews {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Details #"+string(r.ItemID), cmdReview+":"+string(r.ItemID)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send recent reviews", "error", err)
	}
}

func (b *Bot) handleReview(ctx context.Context, chatID int64, args string) {
	id, err := ParseItemIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /review <item_id>")
		return
	}

	r, err := b.store.GetReview(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("Item #%s has not been reviewed.", id))
		return
	}
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatReview(r))
}

func (b *Bot) handleRun(ctx context.Context, chatID int64) {
	if !b.runner.TriggerAsync(context.WithoutCancel(ctx)) {
		b.reply(chatID, "A scan is already running.")
		return
	}
	b.reply(chatID, "Scan started. I'll report back when it finds something.")
}
