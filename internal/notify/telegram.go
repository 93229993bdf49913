package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"
)

type telegramSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramNotifier 通过 Telegram 机器人把通知发到指定会话
type TelegramNotifier struct {
	sender telegramSender
	chat   telebot.ChatID
}

// NewTelegramNotifier 用机器人令牌构造通知器，仅用于发送，不启动轮询
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is required")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}

	bot, err := telebot.NewBot(telebot.Settings{Token: token, Offline: true})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chatID), nil
}

func newTelegramNotifier(sender telegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chat: telebot.ChatID(chatID)}
}

// Notify 发送标题与正文
func (n *TelegramNotifier) Notify(_ context.Context, notice Notice) error {
	text := notice.Title
	if body := strings.TrimSpace(notice.Text); body != "" {
		text = fmt.Sprintf("%s\n%s", notice.Title, body)
	}
	if _, err := n.sender.Send(n.chat, text, &telebot.SendOptions{ParseMode: telebot.ModeDefault}); err != nil {
		return fmt.Errorf("send telegram notice: %w", err)
	}
	return nil
}
