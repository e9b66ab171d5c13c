package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"whispra-server/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// DefaultSendTimeout bounds a single Bot API call
const DefaultSendTimeout = 15 * time.Second

// TelegramOptions configures the Telegram gateway
type TelegramOptions struct {
	Token    string
	Endpoint string // Bot API endpoint format, tgbotapi.APIEndpoint when empty
	Timeout  time.Duration
}

// BotInfo identifies the bot account
type BotInfo struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

// Telegram delivers messages through the Telegram Bot API
type Telegram struct {
	api *tgbotapi.BotAPI
	now func() time.Time
}

// NewTelegram authenticates the bot token against the Bot API
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSendTimeout
	}

	_ = tgbotapi.SetLogger(botLogger{})

	api, err := tgbotapi.NewBotAPIWithClient(opts.Token, opts.Endpoint, &http.Client{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("bot", api.Self.UserName))

	return &Telegram{api: api, now: time.Now}, nil
}

// API exposes the client for update polling
func (t *Telegram) API() *tgbotapi.BotAPI {
	return t.api
}

// Self returns the bot identity resolved at startup
func (t *Telegram) Self() BotInfo {
	return BotInfo{
		ID:        t.api.Self.ID,
		Username:  t.api.Self.UserName,
		FirstName: t.api.Self.FirstName,
	}
}

// GetMe asks the Bot API for the bot identity
func (t *Telegram) GetMe(ctx context.Context) (BotInfo, error) {
	if err := ctx.Err(); err != nil {
		return BotInfo{}, err
	}
	me, err := t.api.GetMe()
	if err != nil {
		return BotInfo{}, err
	}
	return BotInfo{ID: me.ID, Username: me.UserName, FirstName: me.FirstName}, nil
}

// Send formats text as an anonymous message and delivers it to chatID
func (t *Telegram) Send(ctx context.Context, chatID, text string) (*Receipt, error) {
	id, err := ParseChatID(chatID)
	if err != nil {
		return nil, &DeliveryError{ChatID: chatID, Err: err}
	}

	sentAt := t.now()
	msg := tgbotapi.NewMessage(id, FormatAnonymous(text, sentAt))
	msg.DisableWebPagePreview = true

	sent, err := t.send(ctx, msg)
	if err != nil {
		logger.Warn("Telegram delivery failed",
			zap.String("chat_id", chatID),
			zap.Error(err),
		)
		return nil, &DeliveryError{ChatID: chatID, Err: err}
	}

	return &Receipt{
		RemoteID: strconv.Itoa(sent.MessageID),
		SentAt:   sentAt,
	}, nil
}

// Reply sends text to chatID unchanged
func (t *Telegram) Reply(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true

	_, err := t.send(ctx, msg)
	return err
}

// send runs the blocking SDK call but returns as soon as ctx is done
func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}

	type result struct {
		msg tgbotapi.Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		msg, err := t.api.Send(c)
		ch <- result{msg: msg, err: err}
	}()

	select {
	case res := <-ch:
		return res.msg, res.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

// botLogger routes the SDK's own logging into zap
type botLogger struct{}

func (botLogger) Println(v ...interface{}) {
	logger.Debug(fmt.Sprint(v...))
}

func (botLogger) Printf(format string, v ...interface{}) {
	logger.Debug(fmt.Sprintf(format, v...))
}
