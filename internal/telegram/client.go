// Package telegram adapts the Bot API client to an outbound sender for
// forwarded identifiers and a long-poll source of channel posts.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultTimeout = 30 * time.Second
)

var (
	// ErrNoToken is returned when the client has no bot token.
	ErrNoToken = errors.New("telegram bot token not configured")
	// ErrNotConnected is returned by calls made before a successful Connect.
	ErrNotConnected = errors.New("telegram client not connected")
)

// Client implements forward.Sender over the Bot API.
type Client struct {
	endpoint  string // tgbotapi endpoint format: base + "/bot%s/%s"
	token     string
	client    *http.Client
	api       atomic.Pointer[tgbotapi.BotAPI]
	connected atomic.Bool
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(u, "/") + "/bot%s/%s"
	}
}

// WithTimeout sets HTTP client timeout. It must exceed the long-poll timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a Bot API client. It does not contact the API until
// Connect.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint: tgbotapi.APIEndpoint,
		token:    token,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether the last call reached the API.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Connect verifies the token with getMe and keeps the authenticated bot.
func (c *Client) Connect(ctx context.Context) error {
	if c.token == "" {
		return ErrNoToken
	}
	var api *tgbotapi.BotAPI
	err := do(ctx, func() error {
		var err error
		api, err = tgbotapi.NewBotAPIWithClient(c.token, c.endpoint, c.client)
		return err
	})
	if err = c.observe("getMe", err); err != nil {
		c.connected.Store(false)
		return err
	}
	c.api.Store(api)
	return nil
}

// Me returns the bot account after a successful Connect.
func (c *Client) Me() *tgbotapi.User {
	api := c.api.Load()
	if api == nil {
		return nil
	}
	me := api.Self
	return &me
}

// Send posts text to destination, a numeric chat id or @username.
func (c *Client) Send(ctx context.Context, destination, text string) error {
	api, err := c.bot()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessageToChannel(destination, text)
	if id, err := strconv.ParseInt(destination, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	}
	msg.DisableWebPagePreview = true

	err = do(ctx, func() error {
		_, err := api.Send(msg)
		return err
	})
	return c.observe("sendMessage", err)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration, allowed []string) ([]tgbotapi.Update, error) {
	api, err := c.bot()
	if err != nil {
		return nil, err
	}

	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(timeout / time.Second)
	cfg.AllowedUpdates = allowed

	var updates []tgbotapi.Update
	err = do(ctx, func() error {
		var err error
		updates, err = api.GetUpdates(cfg)
		return err
	})
	if err = c.observe("getUpdates", err); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) bot() (*tgbotapi.BotAPI, error) {
	if c.token == "" {
		return nil, ErrNoToken
	}
	api := c.api.Load()
	if api == nil {
		return nil, ErrNotConnected
	}
	return api, nil
}

// observe updates the connection flag from a call result. Transport and
// decode failures mark the client disconnected; API errors other than 401
// do not.
func (c *Client) observe(method string, err error) error {
	if err == nil {
		c.connected.Store(true)
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		c.connected.Store(apiErr.Code != http.StatusUnauthorized)
		return fmt.Errorf("%s: telegram error %d: %w", method, apiErr.Code, err)
	}
	c.connected.Store(false)
	return fmt.Errorf("%s: %w", method, redact(err, c.token))
}

// do runs a blocking library call and returns early when ctx ends. The
// abandoned call finishes in the background within the HTTP timeout.
func do(ctx context.Context, call func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- call()
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// redact removes the bot token from transport errors, which embed the URL.
func redact(err error, token string) error {
	msg := err.Error()
	if token == "" || !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<token>"))
}
