// Package notify pushes alerts and scheduled-run results to an optional
// Telegram chat. When no token is configured every call is a no-op, so
// callers never need to branch.
package notify

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"netctl/pkg/logx"
)

// Config comes from the `notify:` block of the config file.
type Config struct {
	TelegramToken string
	ChatID        int64
	RatePerMin    int
}

// Notifier is safe for concurrent use. The zero/nil Notifier drops messages.
type Notifier struct {
	bot     *tele.Bot
	chatID  int64
	limiter *rate.Limiter
	log     logx.Logger
}

// New builds a Notifier; returns (nil, nil) when notifications are not
// configured.
func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.TelegramToken) == "" || cfg.ChatID == 0 {
		return nil, nil
	}

	bot, err := tele.NewBot(tele.Settings{Token: cfg.TelegramToken})
	if err != nil {
		return nil, err
	}

	rpm := cfg.RatePerMin
	if rpm <= 0 {
		rpm = 6
	}
	return &Notifier{
		bot:     bot,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
		log:     log,
	}, nil
}

// Send delivers one message, dropping it when the rate limit is exhausted
// (alert storms must not stall monitoring loops).
func (n *Notifier) Send(ctx context.Context, msg string) {
	if n == nil || n.bot == nil {
		return
	}
	if err := ctx.Err(); err != nil {
		return
	}
	if !n.limiter.Allow() {
		n.log.Debug("notification dropped by rate limit")
		return
	}
	if _, err := n.bot.Send(tele.ChatID(n.chatID), msg); err != nil {
		n.log.Warn("notification failed", logx.Err(err))
	}
}
