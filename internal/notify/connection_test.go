package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/galaxycore/galaxyview/pkg/streaming"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serverLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	tokens   []string
}

func (s *serverLog) add(env streaming.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, env)
}

func (s *serverLog) all() []streaming.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]streaming.Envelope(nil), s.messages...)
}

// testServer upgrades every request, logs what the client sends and lets the
// test push messages through onConnect. Connections numbered in dropFirst are
// closed right after the subscribe message.
func testServer(t *testing.T, dropFirst int, onConnect func(n int, c *ws.Conn)) (*httptest.Server, *serverLog) {
	t.Helper()
	log := &serverLog{}
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		log.mu.Lock()
		log.tokens = append(log.tokens, r.URL.Query().Get("token"))
		log.mu.Unlock()

		n := int(conns.Add(1))
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		var env streaming.Envelope
		if json.Unmarshal(msg, &env) == nil {
			log.add(env)
		}
		if n <= dropFirst {
			return
		}
		if onConnect != nil {
			onConnect(n, c)
		}
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if json.Unmarshal(msg, &env) == nil {
				log.add(env)
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + notifyPath
}

func push(t *testing.T, c *ws.Conn, msgType string, payload any) {
	t.Helper()
	data, err := streaming.Marshal(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(ws.TextMessage, data))
}

func TestURLFromBase(t *testing.T) {
	tests := []struct {
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "", "ws://localhost:8080/api/notify", false},
		{"https://game.example.com/", "", "wss://game.example.com/api/notify", false},
		{"https://game.example.com/v2", "", "wss://game.example.com/v2/api/notify", false},
		{"https://game.example.com", "events", "wss://game.example.com/events", false},
		{"ftp://nope", "", "", true},
	}
	for _, tt := range tests {
		got, err := URLFromBase(tt.base, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("URLFromBase(%q) error = %v, wantErr %v", tt.base, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("URLFromBase(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestListener_SubscribesAndReceivesChanges(t *testing.T) {
	srv, log := testServer(t, 0, func(n int, c *ws.Conn) {
		push(t, c, streaming.TypeSnapshotChanged, streaming.SnapshotChangedPayload{Turn: 5})
		push(t, c, streaming.TypeCommandResolved, streaming.CommandResolvedPayload{Kind: "move_fleet", OK: false, Message: "Blocked"})
	})

	l := New(Options{URL: wsURL(srv), Token: "abc", PlayerID: "p7"}, nil)
	turns := make(chan int, 1)
	resolved := make(chan streaming.CommandResolvedPayload, 1)
	l.OnSnapshotChanged(func(turn int) { turns <- turn })
	l.OnCommandResolved(func(p streaming.CommandResolvedPayload) { resolved <- p })

	require.NoError(t, l.Start())
	defer l.Close()
	assert.True(t, l.Connected())

	select {
	case turn := <-turns:
		assert.Equal(t, 5, turn)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot_changed callback")
	}
	select {
	case p := <-resolved:
		assert.Equal(t, "Blocked", p.Message)
		assert.False(t, p.OK)
	case <-time.After(2 * time.Second):
		t.Fatal("no command_resolved callback")
	}

	msgs := log.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, streaming.TypeSubscribe, msgs[0].Type)
	var sub streaming.SubscribePayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &sub))
	assert.Equal(t, "p7", sub.PlayerID)
	log.mu.Lock()
	assert.Equal(t, "abc", log.tokens[0])
	log.mu.Unlock()
}

func TestListener_AnswersPing(t *testing.T) {
	srv, log := testServer(t, 0, func(n int, c *ws.Conn) {
		push(t, c, streaming.TypePing, nil)
	})

	l := New(Options{URL: wsURL(srv)}, nil)
	require.NoError(t, l.Start())
	defer l.Close()

	assert.Eventually(t, func() bool {
		for _, m := range log.all() {
			if m.Type == streaming.TypePing {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_ReconnectTriggersCallback(t *testing.T) {
	srv, log := testServer(t, 1, nil)

	l := New(Options{URL: wsURL(srv), InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond}, nil)
	reconnected := make(chan struct{}, 1)
	l.OnReconnect(func() { reconnected <- struct{}{} })

	require.NoError(t, l.Start())
	defer l.Close()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not reconnect")
	}
	assert.True(t, l.Connected())

	assert.Eventually(t, func() bool {
		subs := 0
		for _, m := range log.all() {
			if m.Type == streaming.TypeSubscribe {
				subs++
			}
		}
		return subs == 2
	}, 2*time.Second, 10*time.Millisecond, "subscribe is sent again after reconnect")
}

func TestListener_StartFailsWhenUnreachable(t *testing.T) {
	l := New(Options{URL: "ws://127.0.0.1:1/api/notify"}, nil)
	assert.Error(t, l.Start())
	assert.False(t, l.Connected())
	assert.NoError(t, l.Close())
}
