package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// post returns the message carried by an update, preferring channel posts.
func post(u *tgbotapi.Update) *tgbotapi.Message {
	if u.ChannelPost != nil {
		return u.ChannelPost
	}
	return u.Message
}

// body returns the text of a message, falling back to the media caption.
func body(m *tgbotapi.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}
