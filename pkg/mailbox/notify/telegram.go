package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// MessageSender is the part of telego.Bot used by TelegramNotifier.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// telegramLimit is the maximum message length accepted by the Bot API.
const telegramLimit = 4096

// TelegramNotifier sends notifications to one or more Telegram chats.
type TelegramNotifier struct {
	bot     MessageSender
	chatIDs []int64
	logger  *slog.Logger
}

// NewTelegramNotifier creates a notifier backed by a telego bot.
func NewTelegramNotifier(token string, chatIDs []int64) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return NewTelegramNotifierWithSender(bot, chatIDs)
}

// NewTelegramNotifierWithSender creates a notifier around an existing sender.
func NewTelegramNotifierWithSender(bot MessageSender, chatIDs []int64) (*TelegramNotifier, error) {
	if bot == nil {
		return nil, fmt.Errorf("telegram sender cannot be nil")
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("at least one telegram chat id is required")
	}
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		logger:  slog.Default().With("component", "mailbox.notify.telegram"),
	}, nil
}

// Notify implements mailbox.Notifier. Every chat is attempted; the first
// failure is returned.
func (n *TelegramNotifier) Notify(ctx context.Context, severity mailbox.Severity, subject, body string) error {
	text := formatTelegram(severity, subject, body)

	var firstErr error
	for _, id := range n.chatIDs {
		_, err := n.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: id},
			Text:   text,
		})
		if err != nil {
			n.logger.Error("failed to send telegram notification", "chat_id", id, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("telegram chat %d: %w", id, err)
			}
		}
	}
	return firstErr
}

func formatTelegram(severity mailbox.Severity, subject, body string) string {
	text := fmt.Sprintf("[%s] %s\n\n%s", strings.ToUpper(string(severity)), subject, body)
	if r := []rune(text); len(r) > telegramLimit {
		text = string(r[:telegramLimit-1]) + "…"
	}
	return text
}
