package sink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramSink delivers messages to Telegram chats over the Bot API.
type TelegramSink struct {
	bot     *tele.Bot
	timeout time.Duration
}

func NewTelegramSink(token string, timeout time.Duration) (*TelegramSink, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token: token,
		// The sink only sends; no update poller is attached.
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, timeout: timeout}, nil
}

// chatRecipient routes a raw chat address. Telegram accepts both numeric chat
// ids ("-1001234") and public channel names ("@channel").
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func (s *TelegramSink) Send(ctx context.Context, chatID string, message string) error {
	if chatID == "" {
		return errors.New("empty chat id")
	}

	// telebot has no context-aware send; bound it with the HTTP client
	// timeout and watch ctx alongside.
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(chatRecipient(chatID), message, &tele.SendOptions{
			ParseMode: tele.ModeHTML,
		})
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Classify maps Telegram API errors onto the permanent/transient split. Flood
// waits and 5xx responses are transient; every other API rejection (bad chat,
// bot kicked, malformed HTML) is permanent.
func (s *TelegramSink) Classify(err error) ErrorClass {
	if err == nil {
		return ErrClassNone
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return ErrClassTransient
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return ErrClassPermanent
		}
		return ErrClassTransient
	}

	return ErrClassTransient
}
