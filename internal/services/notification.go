package services

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// TelegramNotifier delivers retrain and forecast alert notifications to a
// Telegram chat. Delivery is best-effort; callers already treat sink errors
// as non-fatal.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID string
	logger *logrus.Logger
	titler cases.Caser
}

// NewTelegramNotifier creates the sink from a bot token and target chat id.
func NewTelegramNotifier(token, chatID string, logger *logrus.Logger) (*TelegramNotifier, error) {
	if logger == nil {
		logger = logrus.New()
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot:    b,
		chatID: chatID,
		logger: logger,
		titler: cases.Title(language.English),
	}, nil
}

// Notify sends one message with a title-cased header line.
func (n *TelegramNotifier) Notify(ctx context.Context, title, content string) error {
	text := fmt.Sprintf("*%s*\n\n%s", n.titler.String(title), content)
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		n.logger.WithError(err).WithField("chat_id", n.chatID).Warn("Failed to send telegram notification")
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"chat_id": n.chatID,
		"title":   title,
	}).Debug("Telegram notification sent")
	return nil
}

var _ models.NotificationSink = (*TelegramNotifier)(nil)
