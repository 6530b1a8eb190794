package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"terratrack_notifier/internal/domain/channel"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements channel.Publisher on top of gopkg.in/telebot.v3.
// The message target is a chat: either a numeric chat ID or a public "@channel" name.
// Every digest posted to the chat is visible to all of its members.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

type chatName string

func (c chatName) Recipient() string { return string(c) }

// ParseChat resolves a configured chat target.
func ParseChat(target string) (telebot.Recipient, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty telegram chat target")
	}
	if strings.HasPrefix(target, "@") {
		return chatName(target), nil
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat target %q is neither a chat ID nor an @channel", target)
	}
	return telebot.ChatID(id), nil
}

func (tba *TelebotAdapter) Publish(_ context.Context, msg channel.Message) (string, error) {
	chat, err := ParseChat(msg.Target)
	if err != nil {
		return "", err
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	sent, err := tba.bot.Send(chat, text, &telebot.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return "", err
	}
	return strconv.Itoa(sent.ID), nil
}
