package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Message is an inbound chat message reduced to what the commands need.
type Message struct {
	ChatID int64
	UserID int64
	Text   string
}

// Handler processes one inbound message.
type Handler interface {
	Handle(ctx context.Context, msg Message)
}

// UpdateSource is the long-polling side of the Bot API.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller receives updates and hands each message to the handler in its own goroutine.
type Poller struct {
	source      UpdateSource
	handler     Handler
	timeoutSec  int
	maxInFlight int
	log         *zap.SugaredLogger
}

// NewPoller creates a new Poller. maxInFlight bounds concurrently handled messages.
func NewPoller(source UpdateSource, handler Handler, timeoutSec, maxInFlight int, logger *zap.SugaredLogger) *Poller {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Poller{
		source:      source,
		handler:     handler,
		timeoutSec:  timeoutSec,
		maxInFlight: maxInFlight,
		log:         logger,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.timeoutSec
	updates := p.source.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(p.maxInFlight)
	defer func() {
		_ = g.Wait()
		p.log.Infow("Chat poller stopped")
	}()

	p.log.Infow("Chat poller started", "max_in_flight", p.maxInFlight)
	for {
		select {
		case <-ctx.Done():
			p.source.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := messageFromUpdate(update)
			if !ok {
				continue
			}
			// in-flight replies complete after ctx is cancelled
			handlerCtx := context.WithoutCancel(ctx)
			g.Go(func() error {
				defer func() {
					if r := recover(); r != nil {
						p.log.Errorw("Message handler panicked", "chat_id", msg.ChatID, "panic", r)
					}
				}()
				p.handler.Handle(handlerCtx, msg)
				return nil
			})
		}
	}
}

func messageFromUpdate(update tgbotapi.Update) (Message, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return Message{}, false
	}
	msg := Message{ChatID: m.Chat.ID, Text: strings.TrimSpace(m.Text)}
	if m.From != nil {
		msg.UserID = m.From.ID
	}
	return msg, true
}
