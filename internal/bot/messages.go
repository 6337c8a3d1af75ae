package bot

import (
	"strconv"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Messenger is the bot-side send/delete surface the handlers talk to.
type Messenger interface {
	Send(chatID int64, text string, markup *tele.ReplyMarkup) (int, error)
	Delete(chatID int64, messageID int) error
}

type telebotMessenger struct {
	tb *tele.Bot
}

// NewTelebotMessenger wraps a telebot instance as a Messenger.
func NewTelebotMessenger(tb *tele.Bot) Messenger {
	return &telebotMessenger{tb: tb}
}

func (m *telebotMessenger) Send(chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	var opts []interface{}
	if markup != nil {
		opts = append(opts, markup)
	}
	msg, err := m.tb.Send(tele.ChatID(chatID), text, opts...)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (m *telebotMessenger) Delete(chatID int64, messageID int) error {
	return m.tb.Delete(&tele.StoredMessage{
		ChatID:    chatID,
		MessageID: strconv.Itoa(messageID),
	})
}

// cleanup deletes every message recorded as ephemeral for the chat. Runs
// before rendering any new prompt; individual delete failures are logged
// and ignored.
func (b *Bot) cleanup(chatID int64) {
	for _, id := range b.sessions.TakeEphemeral(chatID) {
		if err := b.msgr.Delete(chatID, id); err != nil {
			b.logger.Warn("failed to delete ephemeral message",
				zap.Int64("chat_id", chatID), zap.Int("message_id", id), zap.Error(err))
		}
	}
}

// say sends a message and records its ID as ephemeral for the chat, so
// the next step transition removes it.
func (b *Bot) say(chatID int64, text string, markup *tele.ReplyMarkup) error {
	id, err := b.msgr.Send(chatID, text, markup)
	if err != nil {
		b.logger.Error("failed to send message",
			zap.Int64("chat_id", chatID), zap.Error(err))
		return err
	}
	b.sessions.RecordEphemeral(chatID, id)
	return nil
}
