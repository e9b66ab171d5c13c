package bot

import (
	"context"
	"sync"
	"time"

	"whispra-server/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// DefaultHandleTimeout bounds the work done for one update
const DefaultHandleTimeout = 30 * time.Second

// UpdateSource yields inbound Telegram updates; *tgbotapi.BotAPI satisfies it
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Poller long-polls Telegram and hands each message to the Dispatcher
type Poller struct {
	source        UpdateSource
	dispatcher    *Dispatcher
	pollTimeout   int
	handleTimeout time.Duration
}

// NewPoller creates a Poller; pollTimeout is the long-poll wait in seconds
func NewPoller(source UpdateSource, dispatcher *Dispatcher, pollTimeout int) *Poller {
	return &Poller{
		source:        source,
		dispatcher:    dispatcher,
		pollTimeout:   pollTimeout,
		handleTimeout: DefaultHandleTimeout,
	}
}

// Run receives updates until ctx is done, then waits for in-flight
// handlers to finish. Updates are handled concurrently and unordered.
func (p *Poller) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.pollTimeout
	updates := p.source.GetUpdatesChan(cfg)

	logger.Info("Telegram bot polling started")

	var wg sync.WaitGroup
	defer func() {
		p.source.StopReceivingUpdates()
		wg.Wait()
		logger.Info("Telegram bot polling stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			ev, ok := eventFromUpdate(update)
			if !ok {
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				p.handle(ctx, ev)
			}()
		}
	}
}

func (p *Poller) handle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while handling bot update",
				zap.Int64("chat_id", ev.ChatID),
				zap.Any("panic", r),
			)
		}
	}()

	// A command already received is finished even during shutdown
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.handleTimeout)
	defer cancel()

	if err := p.dispatcher.Handle(hctx, ev); err != nil {
		logger.Error("Failed to handle bot update",
			zap.Int64("chat_id", ev.ChatID),
			zap.Error(err),
		)
	}
}

// eventFromUpdate extracts the chat message from an update
func eventFromUpdate(update tgbotapi.Update) (Event, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return Event{}, false
	}

	ev := Event{ChatID: msg.Chat.ID, Text: msg.Text}
	if msg.From != nil {
		ev.Username = msg.From.UserName
	}
	return ev, true
}
