// Package bot adapts the Telegram Bot API to the rate commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrChatUnavailable means the recipient cannot be reached (blocked bot, deleted chat).
// Retrying such a send will not help.
var ErrChatUnavailable = errors.New("chat unavailable")

// Messenger sends replies to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, path, caption string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramMessenger implements Messenger over the Bot API.
type TelegramMessenger struct {
	api sender
}

// NewTelegramAPI authenticates with the Bot API using token.
func NewTelegramAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return api, nil
}

// NewTelegramMessenger creates a new TelegramMessenger.
func NewTelegramMessenger(api *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{api: api}
}

func (m *TelegramMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	return m.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (m *TelegramMessenger) SendPhoto(ctx context.Context, chatID int64, path, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	return m.send(ctx, photo)
}

// SendKeyboard shows a one-time, resized reply keyboard.
func (m *TelegramMessenger) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]string) error {
	buttons := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			r = append(r, tgbotapi.NewKeyboardButton(label))
		}
		buttons = append(buttons, tgbotapi.NewKeyboardButtonRow(r...))
	}
	kb := tgbotapi.NewReplyKeyboard(buttons...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	return m.send(ctx, msg)
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (m *TelegramMessenger) RegisterCommands(commands []Command) error {
	list := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		list = append(list, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := m.api.Request(tgbotapi.NewSetMyCommands(list...)); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

func (m *TelegramMessenger) send(ctx context.Context, c tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.api.Send(c); err != nil {
		return classifySendError(err)
	}
	return nil
}

func classifySendError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusForbidden ||
			(apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "chat not found")) {
			return fmt.Errorf("%w: %s", ErrChatUnavailable, apiErr.Message)
		}
	}
	return fmt.Errorf("telegram send: %w", err)
}
