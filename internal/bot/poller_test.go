package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	ch      chan tgbotapi.Update
	stopped atomic.Bool
	cfg     tgbotapi.UpdateConfig
}

func (s *fakeSource) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	s.cfg = cfg
	return s.ch
}

func (s *fakeSource) StopReceivingUpdates() { s.stopped.Store(true) }

type recordingHandler struct {
	mu       sync.Mutex
	msgs     []Message
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (h *recordingHandler) Handle(_ context.Context, msg Message) {
	n := h.inFlight.Add(1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(h.delay)
	h.inFlight.Add(-1)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

func textUpdate(chatID, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: userID},
		Text: text,
	}}
}

func TestPoller_DispatchesMessages(t *testing.T) {
	src := &fakeSource{ch: make(chan tgbotapi.Update, 8)}
	h := &recordingHandler{}
	p := NewPoller(src, h, 30, 4, zap.NewNop().Sugar())

	src.ch <- textUpdate(1, 11, "/usd")
	src.ch <- tgbotapi.Update{}                 // no message
	src.ch <- textUpdate(2, 22, "   ")          // blank
	src.ch <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}, Text: " USD "}}
	close(src.ch)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, 30, src.cfg.Timeout)
	assert.ElementsMatch(t, []Message{
		{ChatID: 1, UserID: 11, Text: "/usd"},
		{ChatID: 3, UserID: 0, Text: "USD"},
	}, h.msgs)
}

func TestPoller_BoundsConcurrency(t *testing.T) {
	src := &fakeSource{ch: make(chan tgbotapi.Update, 16)}
	h := &recordingHandler{delay: 20 * time.Millisecond}
	p := NewPoller(src, h, 1, 2, zap.NewNop().Sugar())

	for i := 0; i < 10; i++ {
		src.ch <- textUpdate(int64(i), 1, "/help")
	}
	close(src.ch)

	require.NoError(t, p.Run(context.Background()))
	assert.Len(t, h.msgs, 10)
	assert.LessOrEqual(t, h.peak.Load(), int32(2))
}

func TestPoller_StopsOnCancel(t *testing.T) {
	src := &fakeSource{ch: make(chan tgbotapi.Update)}
	p := NewPoller(src, &recordingHandler{}, 1, 1, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.True(t, src.stopped.Load())
}

type panickingHandler struct{ calls atomic.Int32 }

func (h *panickingHandler) Handle(context.Context, Message) {
	h.calls.Add(1)
	panic("boom")
}

func TestPoller_RecoversHandlerPanic(t *testing.T) {
	src := &fakeSource{ch: make(chan tgbotapi.Update, 2)}
	h := &panickingHandler{}
	p := NewPoller(src, h, 1, 1, zap.NewNop().Sugar())

	src.ch <- textUpdate(1, 1, "/usd")
	src.ch <- textUpdate(1, 1, "/eur")
	close(src.ch)

	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int32(2), h.calls.Load())
}
