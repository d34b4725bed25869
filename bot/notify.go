package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// Notifier delivers messages to a specific chat identity (user or admin)
// outside the current update's reply flow. Delivery is best-effort: a failed
// notification never rolls back state committed before it.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photo *tele.Photo, markup *tele.ReplyMarkup) error
}

// botSender is the slice of the bot surface the notifier needs.
type botSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type telegramNotifier struct {
	bot botSender
}

func newTelegramNotifier(bot botSender) Notifier {
	return &telegramNotifier{bot: bot}
}

func (n *telegramNotifier) SendText(_ context.Context, chatID int64, text string) error {
	if _, err := n.bot.Send(&tele.User{ID: chatID}, text, tele.ModeHTML); err != nil {
		return fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return nil
}

func (n *telegramNotifier) SendPhoto(_ context.Context, chatID int64, photo *tele.Photo, markup *tele.ReplyMarkup) error {
	if _, err := n.bot.Send(&tele.User{ID: chatID}, photo, markup, tele.ModeHTML); err != nil {
		return fmt.Errorf("send photo to %d: %w", chatID, err)
	}
	return nil
}
