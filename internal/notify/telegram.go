package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"pump_copy/internal/common"
)

// TelegramNotifier sends messages over a Telegram bot. The user identifier
// doubles as the chat id.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
	log *logrus.Entry
}

func NewTelegram(token string) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{
		bot: bot,
		log: common.Log.WithField("component", "telegram"),
	}, nil
}

func (t *TelegramNotifier) Notify(userID int64, text string) {
	msg := tgbotapi.NewMessage(userID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.log.WithError(err).WithField("user", userID).Warn("notification delivery failed")
	}
}
