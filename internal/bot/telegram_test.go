package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func (m *mockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	return &tgbotapi.APIResponse{Ok: args.Error(0) == nil}, args.Error(0)
}

func TestTelegramMessenger_SendText(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == 10 && msg.Text == "hello"
	})).Return(nil).Once()

	m := &TelegramMessenger{api: s}
	require.NoError(t, m.SendText(context.Background(), 10, "hello"))
	s.AssertExpectations(t)
}

func TestTelegramMessenger_SendPhoto(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		p, ok := c.(tgbotapi.PhotoConfig)
		return ok && p.ChatID == 10 && p.Caption == "USD rate (NBU), last 7 days" &&
			p.File == tgbotapi.FilePath("/tmp/chart.png")
	})).Return(nil).Once()

	m := &TelegramMessenger{api: s}
	require.NoError(t, m.SendPhoto(context.Background(), 10, "/tmp/chart.png", "USD rate (NBU), last 7 days"))
	s.AssertExpectations(t)
}

func TestTelegramMessenger_SendKeyboard(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		if !ok {
			return false
		}
		kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
		return ok && kb.OneTimeKeyboard && kb.ResizeKeyboard &&
			len(kb.Keyboard) == 2 && kb.Keyboard[1][1].Text == "GBP"
	})).Return(nil).Once()

	m := &TelegramMessenger{api: s}
	require.NoError(t, m.SendKeyboard(context.Background(), 10, "Choose a currency:", [][]string{{"USD", "EUR"}, {"PLN", "GBP"}}))
	s.AssertExpectations(t)
}

func TestTelegramMessenger_CancelledContext(t *testing.T) {
	s := new(mockSender)
	m := &TelegramMessenger{api: s}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.SendText(ctx, 1, "x"), context.Canceled)
	s.AssertNotCalled(t, "Send", mock.Anything)
}

func TestTelegramMessenger_RegisterCommands(t *testing.T) {
	s := new(mockSender)
	s.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		cfg, ok := c.(tgbotapi.SetMyCommandsConfig)
		return ok && len(cfg.Commands) == len(Commands) && cfg.Commands[0].Command == "start"
	})).Return(nil).Once()

	m := &TelegramMessenger{api: s}
	require.NoError(t, m.RegisterCommands(Commands))
	s.AssertExpectations(t)
}

func TestClassifySendError(t *testing.T) {
	blocked := &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	assert.ErrorIs(t, classifySendError(blocked), ErrChatUnavailable)

	missing := &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}
	assert.ErrorIs(t, classifySendError(missing), ErrChatUnavailable)

	throttled := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	assert.False(t, errors.Is(classifySendError(throttled), ErrChatUnavailable))

	assert.False(t, errors.Is(classifySendError(errors.New("connection reset")), ErrChatUnavailable))
}
