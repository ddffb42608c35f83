// Package alert notifies operators about configuration defects: a selector
// the site no longer matches means the profile is stale, and every task
// touching that page will keep failing until someone updates it.
package alert

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Min interval between any two Telegram messages to the same chat to avoid
// 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

// Alerter is the operator notification hook.
type Alerter interface {
	StaleSelector(site, page, name string, task models.BookingTask)
}

// NopAlerter is used when no Telegram credentials are configured.
type NopAlerter struct{}

func (NopAlerter) StaleSelector(site, page, name string, task models.BookingTask) {}

// TelegramAlerter sends operator alerts to a Telegram chat.
type TelegramAlerter struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	mu       sync.Mutex
	lastSend time.Time
	// One alert per selector per process run; a stale selector would
	// otherwise fire for every task in the batch.
	seen map[string]struct{}
}

// NewTelegramAlerter creates the alerter, verifying the bot token. Returns
// nil on failure so callers can fall back to NopAlerter.
func NewTelegramAlerter(token string, chatID int64) *TelegramAlerter {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	if _, err := bot.GetMe(); err != nil {
		slog.Error("Failed to get bot info", "error", err)
		return nil
	}

	return &TelegramAlerter{
		bot:    bot,
		chatID: chatID,
		seen:   make(map[string]struct{}),
	}
}

func (a *TelegramAlerter) StaleSelector(site, page, name string, task models.BookingTask) {
	key := site + "/" + page + "/" + name

	a.mu.Lock()
	if _, dup := a.seen[key]; dup {
		a.mu.Unlock()
		return
	}
	a.seen[key] = struct{}{}

	if wait := telegramSendInterval - time.Since(a.lastSend); wait > 0 {
		time.Sleep(wait)
	}
	a.lastSend = time.Now()
	a.mu.Unlock()

	text := fmt.Sprintf(
		"⚠️ Stale selector on %s\n\nPage: %s\nKey: %s\nFixture: %s\n\nThe site profile no longer matches the page. Booking tasks touching this selector will fail until the profile is updated.",
		site, page, name, task.FixtureID,
	)

	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		slog.Error("Failed to send selector alert", "selector", key, "error", err)
		return
	}
	slog.Info("Operator alerted about stale selector", "selector", key)
}
