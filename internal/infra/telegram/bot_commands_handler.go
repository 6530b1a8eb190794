package telegram

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const adminHelpText = `Available commands:
/run_digest - send today's garden digest to every subscribed user
/preview_digest <user_id> - show the digest a user would receive today
/help - show this message`

// RegisterBotCommands registers /start and /help.
func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, productName string, baseLogger *logrus.Entry) {
	log := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		return c.Send(StartReply(c.Sender(), adminTelegramID, productName, log))
	})

	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(HelpReply(c.Sender(), adminTelegramID, productName, log))
	})
}

func StartReply(sender *telebot.User, adminTelegramID int64, productName string, log *logrus.Entry) string {
	if sender == nil {
		return fmt.Sprintf("This is the %s notifier bot.", productName)
	}
	log.WithFields(logrus.Fields{"command": "/start", "sender_id": sender.ID}).Info("Processing /start command")
	if adminTelegramID != 0 && sender.ID == adminTelegramID {
		return fmt.Sprintf("Hello %s! The %s notifier is running. Use /help for the list of commands.", sender.FirstName, productName)
	}
	return fmt.Sprintf("Hello %s! This bot posts the %s daily garden digest.", sender.FirstName, productName)
}

func HelpReply(sender *telebot.User, adminTelegramID int64, productName string, log *logrus.Entry) string {
	if sender == nil {
		return fmt.Sprintf("Subscribe to this chat to receive the %s daily garden digest.", productName)
	}
	log.WithFields(logrus.Fields{"command": "/help", "sender_id": sender.ID}).Info("Processing /help command")
	if adminTelegramID != 0 && sender.ID == adminTelegramID {
		return adminHelpText
	}
	return fmt.Sprintf("Subscribe to this chat to receive the %s daily garden digest.", productName)
}
