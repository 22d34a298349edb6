package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v3"
)

// TelegramSink sends notifications to one chat through a bot.
type TelegramSink struct {
	bot  *tele.Bot
	chat tele.ChatID
}

// NewTelegramSink creates a send-only bot. apiURL may be empty for the
// public Bot API.
func NewTelegramSink(token string, chatID int64, apiURL string) (*TelegramSink, error) {
	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramSink{bot: bot, chat: tele.ChatID(chatID)}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Message))
	if _, err := s.bot.Send(s.chat, text, tele.ModeHTML); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
