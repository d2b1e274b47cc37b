package asr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLineSource(t *testing.T) {
	src := NewLineSource(strings.NewReader("hey computer\n\nturn on the lights\n"))
	defer src.Close()

	ctx := context.Background()
	var got []string
	for {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, line)
	}
	assert.Equal(t, []string{"hey computer", "", "turn on the lights"}, got)

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF, "exhausted source keeps returning EOF")
}

func TestLineSource_ContextCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewLineSource(r)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLineSource_Close(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	src := NewLineSource(r)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())

	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestNormalizer(t *testing.T) {
	tests := []struct {
		name string
		tag  language.Tag
		in   string
		want string
	}{
		{"lower", language.English, "Turn On The Lights", "turn on the lights"},
		{"whitespace", language.English, "  open \t  the\n door  ", "open the door"},
		{"blank", language.English, "   ", ""},
		{"empty", language.English, "", ""},
		{"cyrillic", language.Russian, "Включи Свет", "включи свет"},
		{"turkish dotted", language.Turkish, "İSTANBUL", "istanbul"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNormalizer(tt.tag)
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestDecodeTranscript(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"text": "lights on"}`, "lights on", true},
		{`{"text": "  padded  "}`, "padded", true},
		{`{"text": ""}`, "", false},
		{`{"partial": "ligh"}`, "", false},
		{`{"result": [], "text": "with result"}`, "with result", true},
		{`not json`, "", false},
	}
	for _, tt := range tests {
		got, ok := decodeTranscript([]byte(tt.in))
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

var upgrader = websocket.Upgrader{}

// feedServer serves one batch of messages per connection, then closes it.
func feedServer(t *testing.T, batches [][]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := int(conns.Add(1)) - 1
		if n >= len(batches) {
			// Hold the connection open until the client leaves.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
		for _, msg := range batches[n] {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	t.Cleanup(srv.Close)
	return srv, &conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketSource_ReadsFinalTranscripts(t *testing.T) {
	srv, _ := feedServer(t, [][]string{{
		`{"partial": "hey"}`,
		`{"text": "hey computer"}`,
		`{"partial": "lights"}`,
		`{"text": ""}`,
		`{"text": "lights on"}`,
	}})

	src, err := NewWebSocketSource(WebSocketConfig{
		Endpoint:       wsURL(srv),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hey computer", text)

	text, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lights on", text)
}

func TestWebSocketSource_Reconnects(t *testing.T) {
	srv, conns := feedServer(t, [][]string{
		{`{"text": "first"}`},
		{`{"text": "second"}`},
	})

	src, err := NewWebSocketSource(WebSocketConfig{
		Endpoint:       wsURL(srv),
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	_, err = src.Next(ctx)
	require.Error(t, err, "dropped connection is reported")

	text, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", text)
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestWebSocketSource_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	src, err := NewWebSocketSource(WebSocketConfig{
		Endpoint:       url,
		ReconnectDelay: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		_, err := src.Next(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "asr: dial")
	}
}

func TestWebSocketSource_Close(t *testing.T) {
	srv, _ := feedServer(t, nil)

	src, err := NewWebSocketSource(WebSocketConfig{Endpoint: wsURL(srv), Logger: zerolog.Nop()})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := src.Next(context.Background())
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, src.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after Close")
	}
}

func TestNewWebSocketSource_RejectsHTTPURL(t *testing.T) {
	_, err := NewWebSocketSource(WebSocketConfig{Endpoint: "http://localhost:2700"})
	assert.Error(t, err)
}
