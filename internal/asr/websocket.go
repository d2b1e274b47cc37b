package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the address of a local transcript-push feed: a server
// that runs recognition itself and pushes one JSON result per message. The
// client only reads; it never streams audio.
const DefaultEndpoint = "ws://127.0.0.1:2700"

// TranscriptMessage is one message of the transcript feed. Final results
// carry Text; interim results carry Partial and are discarded.
type TranscriptMessage struct {
	Text    *string `json:"text,omitempty"`
	Partial string  `json:"partial,omitempty"`
}

// decodeTranscript extracts a final transcript from a feed message.
func decodeTranscript(data []byte) (string, bool) {
	var msg TranscriptMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", false
	}
	if msg.Text == nil {
		return "", false
	}
	text := strings.TrimSpace(*msg.Text)
	return text, text != ""
}

// WebSocketConfig configures a WebSocketSource.
type WebSocketConfig struct {
	// Endpoint is the transcript feed URL.
	Endpoint string
	// ReconnectDelay is the pause before redialing after a failure.
	ReconnectDelay time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Logger zerolog.Logger
}

// WebSocketSource reads final transcripts from a WebSocket feed and
// reconnects when the connection drops. Connection failures are reported
// through Next so the caller can decide when to give up.
type WebSocketSource struct {
	endpoint string
	delay    time.Duration
	dialer   *websocket.Dialer
	log      zerolog.Logger

	start   sync.Once
	ctx     context.Context
	cancel  context.CancelFunc
	results chan result
	wg      sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWebSocketSource creates a source. Nothing is dialed until Next.
func NewWebSocketSource(cfg WebSocketConfig) (*WebSocketSource, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(cfg.Endpoint, "ws://") && !strings.HasPrefix(cfg.Endpoint, "wss://") {
		return nil, fmt.Errorf("asr: endpoint %q is not a ws:// or wss:// URL", cfg.Endpoint)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketSource{
		endpoint: cfg.Endpoint,
		delay:    cfg.ReconnectDelay,
		dialer:   cfg.Dialer,
		log:      cfg.Logger,
		ctx:      ctx,
		cancel:   cancel,
		results:  make(chan result),
	}, nil
}

// Next returns the next final transcript.
func (s *WebSocketSource) Next(ctx context.Context) (string, error) {
	s.start.Do(func() {
		s.wg.Add(1)
		go s.loop()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.ctx.Done():
		return "", io.EOF
	case r := <-s.results:
		return r.text, r.err
	}
}

func (s *WebSocketSource) loop() {
	defer s.wg.Done()

	for {
		conn, _, err := s.dialer.DialContext(s.ctx, s.endpoint, nil)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if !s.send(result{err: fmt.Errorf("asr: dial %s: %w", s.endpoint, err)}) || !s.sleep() {
				return
			}
			continue
		}

		s.setConn(conn)
		s.log.Info().Str("endpoint", s.endpoint).Msg("Connected to transcript feed")

		err = s.read(conn)
		s.setConn(nil)
		conn.Close()

		if s.ctx.Err() != nil {
			return
		}
		s.log.Warn().Err(err).Dur("retry_in", s.delay).Msg("Transcript feed disconnected")
		if !s.send(result{err: fmt.Errorf("asr: connection lost: %w", err)}) || !s.sleep() {
			return
		}
	}
}

func (s *WebSocketSource) read(conn *websocket.Conn) error {
	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if typ != websocket.TextMessage {
			continue
		}
		text, ok := decodeTranscript(data)
		if !ok {
			continue
		}
		if !s.send(result{text: text}) {
			return nil
		}
	}
}

func (s *WebSocketSource) send(r result) bool {
	select {
	case s.results <- r:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *WebSocketSource) sleep() bool {
	t := time.NewTimer(s.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *WebSocketSource) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Close stops the reader and closes the connection.
func (s *WebSocketSource) Close() error {
	s.cancel()

	s.mu.Lock()
	var err error
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
