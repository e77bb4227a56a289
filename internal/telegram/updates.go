package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/logger"
	"solana-trend-monitor/internal/storage"
)

// Default polling values.
const (
	DefaultPollTimeout     = 30 * time.Second
	DefaultPollRetryDelay  = 1 * time.Second
	DefaultPollMaxDelay    = 30 * time.Second
	DefaultSourceName      = "telegram"
	defaultMessageBuffer   = 100
	pollTimeoutGracePeriod = 10 * time.Second
)

var allowedUpdates = []string{"message", "channel_post"}

// UpdatesSource long-polls getUpdates and emits posts from the configured
// origin chats. The bot must be a member of each origin.
type UpdatesSource struct {
	client      *Client
	origins     map[string]struct{}
	progress    storage.SourceProgressStore
	name        string
	pollTimeout time.Duration
	retryDelay  time.Duration
	maxDelay    time.Duration
	log         *logger.Entry
}

// SourceOption configures UpdatesSource.
type SourceOption func(*UpdatesSource)

// WithProgressStore persists the update cursor so restarts resume after the
// last handled update.
func WithProgressStore(store storage.SourceProgressStore) SourceOption {
	return func(s *UpdatesSource) {
		s.progress = store
	}
}

// WithPollTimeout sets the long-poll timeout.
func WithPollTimeout(d time.Duration) SourceOption {
	return func(s *UpdatesSource) {
		s.pollTimeout = d
	}
}

// WithRetryDelay sets the initial and maximum delay after a failed poll.
func WithRetryDelay(initial, maxDelay time.Duration) SourceOption {
	return func(s *UpdatesSource) {
		s.retryDelay = initial
		s.maxDelay = maxDelay
	}
}

// WithSourceLogger sets the log entry.
func WithSourceLogger(log *logger.Entry) SourceOption {
	return func(s *UpdatesSource) {
		s.log = log
	}
}

// NewUpdatesSource creates a source. Origins are chat usernames (with or
// without '@') or numeric chat ids; empty origins accept every chat.
func NewUpdatesSource(client *Client, origins []string, opts ...SourceOption) *UpdatesSource {
	s := &UpdatesSource{
		client:      client,
		origins:     make(map[string]struct{}, len(origins)),
		name:        DefaultSourceName,
		pollTimeout: DefaultPollTimeout,
		retryDelay:  DefaultPollRetryDelay,
		maxDelay:    DefaultPollMaxDelay,
		log:         logger.Discard().WithComponent("telegram"),
	}
	for _, o := range origins {
		if key := normalizeOrigin(o); key != "" {
			s.origins[key] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Messages starts polling and returns the message channel. The channel is
// closed when ctx ends.
func (s *UpdatesSource) Messages(ctx context.Context) (<-chan domain.Message, error) {
	if err := s.client.Connect(ctx); err != nil {
		return nil, err
	}
	if me := s.client.Me(); me != nil {
		s.log.WithField("bot", me.UserName).Info("telegram connected")
	}

	offset, err := s.loadOffset(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Message, defaultMessageBuffer)
	go s.poll(ctx, offset, out)
	return out, nil
}

// poll runs the getUpdates loop until ctx ends.
func (s *UpdatesSource) poll(ctx context.Context, offset int64, out chan<- domain.Message) {
	defer close(out)

	delay := s.retryDelay
	for ctx.Err() == nil {
		pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout+pollTimeoutGracePeriod)
		updates, err := s.client.GetUpdates(pollCtx, offset, s.pollTimeout, allowedUpdates)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).WithField("retry_in", delay.String()).Warn("getUpdates failed")
			wait := delay
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			// Exponential backoff
			delay *= 2
			if delay > s.maxDelay {
				delay = s.maxDelay
			}
			continue
		}
		delay = s.retryDelay

		for _, u := range updates {
			offset = int64(u.UpdateID) + 1
			msg, ok := s.convert(&u)
			if !ok {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}

		if len(updates) > 0 {
			s.saveCursor(ctx, offset-1)
		}
	}
}

// convert maps an update to a domain message if it comes from an origin.
func (s *UpdatesSource) convert(u *tgbotapi.Update) (domain.Message, bool) {
	m := post(u)
	if m == nil || m.Chat == nil {
		return domain.Message{}, false
	}
	text := body(m)
	if text == "" {
		return domain.Message{}, false
	}
	origin, ok := s.match(m.Chat)
	if !ok {
		return domain.Message{}, false
	}
	return domain.Message{
		Origin:     origin,
		Text:       text,
		ReceivedAt: time.Unix(int64(m.Date), 0),
	}, true
}

// match reports whether chat is an origin and returns its display handle.
func (s *UpdatesSource) match(chat *tgbotapi.Chat) (string, bool) {
	handle := strconv.FormatInt(chat.ID, 10)
	if chat.UserName != "" {
		handle = "@" + chat.UserName
	}
	if len(s.origins) == 0 {
		return handle, true
	}
	if _, ok := s.origins[strconv.FormatInt(chat.ID, 10)]; ok {
		return handle, true
	}
	if chat.UserName != "" {
		if _, ok := s.origins[normalizeOrigin(chat.UserName)]; ok {
			return handle, true
		}
	}
	return "", false
}

func (s *UpdatesSource) loadOffset(ctx context.Context) (int64, error) {
	if s.progress == nil {
		return 0, nil
	}
	p, err := s.progress.GetProgress(ctx, s.name)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	s.log.WithField("cursor", p.Cursor).Info("resuming from saved update cursor")
	return p.Cursor + 1, nil
}

func (s *UpdatesSource) saveCursor(ctx context.Context, cursor int64) {
	if s.progress == nil {
		return
	}
	err := s.progress.SetProgress(ctx, &storage.SourceProgress{
		Source:    s.name,
		Cursor:    cursor,
		UpdatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		s.log.WithError(err).Warn("save update cursor failed")
	}
}

// normalizeOrigin lowercases usernames and strips '@' and t.me prefixes.
func normalizeOrigin(o string) string {
	o = strings.TrimSpace(o)
	o = strings.TrimPrefix(o, "https://t.me/")
	o = strings.TrimPrefix(o, "t.me/")
	o = strings.TrimPrefix(o, "@")
	return strings.ToLower(o)
}
