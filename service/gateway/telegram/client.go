// Package telegram implements the gateway Messenger over the Telegram Bot
// API, with inline keyboard buttons carrying the correlation token of each
// approval request.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mailmend/mailmend/model/correction"
	"github.com/mailmend/mailmend/service/gateway"
)

const (
	callbackApprovePrefix = "approve:"
	callbackRejectPrefix  = "reject:"
)

// Client sends messages to a single chat and listens for button callbacks.
type Client struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// Option customises the client.
type Option func(*Client)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New authenticates against the Bot API with the supplied token.
func New(token string, chatID int64, options ...Option) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	client := &Client{bot: bot, chatID: chatID, logger: slog.Default()}
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Send delivers a plain text notification. Markdown rendering is attempted
// first; on a parse rejection the message is resent as plain text so an odd
// underscore in a filename never loses a notification.
func (c *Client) Send(ctx context.Context, text string) error {
	message := tgbotapi.NewMessage(c.chatID, text)
	message.ParseMode = tgbotapi.ModeMarkdown
	if _, err := c.bot.Send(message); err != nil {
		message.ParseMode = ""
		if _, err = c.bot.Send(message); err != nil {
			return fmt.Errorf("failed to send telegram message: %w", err)
		}
	}
	return nil
}

// SendApprovalRequest delivers text with Approve/Reject inline buttons whose
// callback data carries the correlation token.
func (c *Client) SendApprovalRequest(ctx context.Context, text, token string) error {
	message := tgbotapi.NewMessage(c.chatID, text)
	message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", callbackApprovePrefix+token),
			tgbotapi.NewInlineKeyboardButtonData("Reject", callbackRejectPrefix+token),
		),
	)
	if _, err := c.bot.Send(message); err != nil {
		return fmt.Errorf("failed to send approval request: %w", err)
	}
	return nil
}

// Listen long-polls for updates until the context is cancelled, invoking the
// handler for every decision callback. Malformed callback data is
// acknowledged and dropped.
func (c *Client) Listen(ctx context.Context, handler gateway.DecisionHandler) {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = 30
	updates := c.bot.GetUpdatesChan(config)
	defer c.bot.StopReceivingUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery == nil {
				continue
			}
			c.handleCallback(ctx, update.CallbackQuery, handler)
		}
	}
}

func (c *Client) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery, handler gateway.DecisionHandler) {
	token, decision, ok := parseCallback(query.Data)
	callback := tgbotapi.NewCallback(query.ID, "")
	if !ok {
		c.logger.Warn("malformed callback dropped", slog.String("data", query.Data))
	} else {
		callback.Text = "Recorded"
		handler(ctx, token, decision)
	}
	if _, err := c.bot.Request(callback); err != nil {
		c.logger.Warn("failed to answer callback", slog.String("error", err.Error()))
	}
}

func parseCallback(data string) (token string, decision correction.Decision, ok bool) {
	switch {
	case strings.HasPrefix(data, callbackApprovePrefix):
		token = strings.TrimPrefix(data, callbackApprovePrefix)
		decision = correction.DecisionApprove
	case strings.HasPrefix(data, callbackRejectPrefix):
		token = strings.TrimPrefix(data, callbackRejectPrefix)
		decision = correction.DecisionReject
	default:
		return "", "", false
	}
	return token, decision, token != ""
}
