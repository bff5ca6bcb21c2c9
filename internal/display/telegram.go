package display

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"alert-stream/internal/models"
	"alert-stream/internal/utils"
)

// levelRank orders levels for the minimum-level filter.
var levelRank = map[models.Level]int{
	models.LevelInfo:     0,
	models.LevelWarning:  1,
	models.LevelCritical: 2,
}

// Telegram relays toasts at or above a minimum level to a chat via the Bot
// API. Sends are rate limited and retried.
type Telegram struct {
	token    string
	chatID   int64
	minLevel models.Level
	limiter  *rate.Limiter
	logger   *logrus.Logger
}

// NewTelegram builds the sink. ratePerSecond guards the Bot API limit;
// minLevel filters which toasts are relayed.
func NewTelegram(token string, chatID int64, ratePerSecond int, minLevel models.Level, logger *logrus.Logger) *Telegram {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &Telegram{
		token:    token,
		chatID:   chatID,
		minLevel: minLevel,
		limiter:  rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:   logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

// ShowToast sends the toast when its level passes the filter.
func (t *Telegram) ShowToast(ctx context.Context, message string, level models.Level, _ time.Duration) error {
	if levelRank[level] < levelRank[t.minLevel] {
		return nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	text := fmt.Sprintf("*%s*\n%s", strings.ToUpper(string(level)), message)
	return utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.token)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID:    t.chatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.chatID, err)
		}
		return nil
	})
}
