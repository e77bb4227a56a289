// Package stream reads chat messages from a WebSocket relay.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/logger"
)

// WSSourceConfig configures WebSocket source behavior.
type WSSourceConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSSourceConfig {
	return WSSourceConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSSource implements dispatch.Source over a relay that pushes JSON frames.
type WSSource struct {
	endpoint string
	config   WSSourceConfig
	origins  []string
	allowed  map[string]struct{}
	log      *logger.Entry
}

// NewWSSource creates a relay source. Origins are sent to the relay as a
// subscription and also enforced locally; empty origins accept all frames.
func NewWSSource(endpoint string, origins []string, config *WSSourceConfig, log *logger.Entry) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	def := DefaultWSConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if log == nil {
		log = logger.Discard().WithComponent("stream")
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[normalize(o)] = struct{}{}
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		origins:  origins,
		allowed:  allowed,
		log:      log,
	}
}

// Messages connects and returns the message channel. The first dial must
// succeed; later disconnects are retried with exponential backoff. The
// channel is closed when ctx ends.
func (s *WSSource) Messages(ctx context.Context) (<-chan domain.Message, error) {
	conn, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.Message, 100)
	go s.run(ctx, conn, out)
	return out, nil
}

// connect establishes WebSocket connection and subscribes to the origins.
func (s *WSSource) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := conn.WriteJSON(subscribeRequest{Action: "subscribe", Origins: s.origins}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write subscribe: %w", err)
	}
	return conn, nil
}

// run reads from conn, reconnecting until ctx ends.
func (s *WSSource) run(ctx context.Context, conn *websocket.Conn, out chan<- domain.Message) {
	defer close(out)

	reconnectDelay := s.config.ReconnectDelay
	for {
		err := s.readConn(ctx, conn, out)
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Warn("relay connection lost")

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}

			// Increase delay for next reconnect (exponential backoff)
			reconnectDelay *= 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			conn, err = s.connect(ctx)
			if err == nil {
				break
			}
			s.log.WithError(err).Warn("relay reconnect failed")
		}

		// Reset delay on successful reconnect
		reconnectDelay = s.config.ReconnectDelay
		s.log.Info("relay reconnected")
	}
}

// readConn reads frames until the connection fails or ctx ends.
func (s *WSSource) readConn(ctx context.Context, conn *websocket.Conn, out chan<- domain.Message) error {
	var wg sync.WaitGroup
	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		wg.Wait()
	}()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	})

	// Closing the connection unblocks ReadMessage on shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pingLoop(ctx, conn, done)
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, ok := s.decode(data)
		if !ok {
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pingLoop sends periodic ping frames and closes conn when ctx ends.
func (s *WSSource) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.config.WriteTimeout))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				// Connection might be dead, reader will handle reconnect
				continue
			}
		}
	}
}

// decode parses a relay frame and applies the origin filter.
func (s *WSSource) decode(data []byte) (domain.Message, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.WithError(err).Debug("ignoring malformed frame")
		return domain.Message{}, false
	}
	if f.Text == "" {
		return domain.Message{}, false
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[normalize(f.Origin)]; !ok {
			return domain.Message{}, false
		}
	}

	receivedAt := time.Now()
	if f.Date > 0 {
		receivedAt = time.Unix(f.Date, 0)
	}
	return domain.Message{Origin: f.Origin, Text: f.Text, ReceivedAt: receivedAt}, true
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(origin), "@"))
}

// Relay message types

type subscribeRequest struct {
	Action  string   `json:"action"`
	Origins []string `json:"origins,omitempty"`
}

type frame struct {
	Origin string `json:"origin"`
	Text   string `json:"text"`
	Date   int64  `json:"date"` // Unix seconds
}
