package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/galaxycore/galaxyview/pkg/core"
	"github.com/galaxycore/galaxyview/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	sendChSize = 64
	writeWait  = 10 * time.Second
	notifyPath = "/api/notify"
)

// Options configures a Listener.
type Options struct {
	URL            string
	Token          string
	PlayerID       core.PlayerID
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnect   int
}

func (o *Options) withDefaults() {
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.MaxReconnect <= 0 {
		o.MaxReconnect = 10
	}
}

// URLFromBase derives the notification endpoint from the HTTP API root. An
// empty path means /api/notify.
func URLFromBase(baseURL, path string) (string, error) {
	if path == "" {
		path = notifyPath
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid base URL scheme %q", u.Scheme)
	}
	u.Path += "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// Listener receives out-of-band change notifications over a WebSocket and
// turns them into callbacks. It reconnects with exponential backoff and
// reports each successful reconnect, since notifications may have been missed.
type Listener struct {
	opts Options

	mu        sync.Mutex
	conn      *ws.Conn
	sendCh    chan []byte
	done      chan struct{}
	closed    bool
	connected bool

	onChanged   func(turn int)
	onResolved  func(streaming.CommandResolvedPayload)
	onReconnect func()

	logger *slog.Logger
}

// New creates a Listener. Call Start to connect.
func New(opts Options, logger *slog.Logger) *Listener {
	opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		opts:   opts,
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// OnSnapshotChanged sets the callback for snapshot_changed and turn_advanced.
func (l *Listener) OnSnapshotChanged(fn func(turn int)) { l.onChanged = fn }

// OnCommandResolved sets the callback for command_resolved.
func (l *Listener) OnCommandResolved(fn func(streaming.CommandResolvedPayload)) { l.onResolved = fn }

// OnReconnect sets the callback run after the connection is re-established.
func (l *Listener) OnReconnect(fn func()) { l.onReconnect = fn }

// Connected reports whether a connection is currently open.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Start dials the server, subscribes and starts the read/write loops.
func (l *Listener) Start() error {
	conn, err := l.dialOnce()
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conn = conn
	l.connected = true
	l.mu.Unlock()

	go l.writeLoop(conn)
	go l.readLoop(conn)
	return nil
}

// dialOnce performs a single dial and sends the subscribe message.
func (l *Listener) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(l.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if l.opts.Token != "" {
		q := u.Query()
		q.Set("token", l.opts.Token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	sub, err := streaming.Marshal(streaming.TypeSubscribe, streaming.SubscribePayload{PlayerID: string(l.opts.PlayerID)})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := conn.WriteMessage(ws.TextMessage, sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh for one connection. It returns on error, shutdown,
// or when the connection is replaced.
func (l *Listener) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.sendCh:
			if !l.current(conn) {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				l.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				l.logger.Warn("WebSocket write error", "error", err)
				return
			}
		}
	}
}

// readLoop routes notifications to callbacks until the connection fails.
func (l *Listener) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			l.logger.Warn("WebSocket read error", "error", err)
			go l.reconnect(conn)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			l.logger.Debug("Unreadable notification", "raw", string(message))
			continue
		}
		l.handle(env)
	}
}

func (l *Listener) handle(env streaming.Envelope) {
	switch env.Type {
	case streaming.TypeSnapshotChanged, streaming.TypeTurnAdvanced:
		var p streaming.SnapshotChangedPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				l.logger.Debug("Bad snapshot_changed payload", "error", err)
			}
		}
		if l.onChanged != nil {
			l.onChanged(p.Turn)
		}
	case streaming.TypeCommandResolved:
		var p streaming.CommandResolvedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			l.logger.Debug("Bad command_resolved payload", "error", err)
			return
		}
		if l.onResolved != nil {
			l.onResolved(p)
		}
	case streaming.TypePing:
		l.send(env.Type, nil)
	default:
		l.logger.Debug("Ignoring notification", "type", env.Type)
	}
}

func (l *Listener) current(conn *ws.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn == conn
}

// reconnect re-establishes the connection with exponential backoff.
func (l *Listener) reconnect(failed *ws.Conn) {
	l.mu.Lock()
	if l.closed || l.conn != failed {
		l.mu.Unlock()
		return
	}
	_ = l.conn.Close()
	l.conn = nil
	l.connected = false
	l.mu.Unlock()

	backoff := l.opts.InitialBackoff
	for attempt := 1; attempt <= l.opts.MaxReconnect; attempt++ {
		l.logger.Info("Reconnecting to notification stream", "attempt", attempt, "backoff", backoff)
		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}

		conn, err := l.dialOnce()
		if err != nil {
			l.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, l.opts.MaxBackoff)
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			_ = conn.Close()
			return
		}
		l.conn = conn
		l.connected = true
		l.mu.Unlock()

		l.logger.Info("Notification stream reconnected", "attempt", attempt)
		go l.writeLoop(conn)
		go l.readLoop(conn)
		if l.onReconnect != nil {
			l.onReconnect()
		}
		return
	}

	l.logger.Error("Notification stream reconnect failed after max attempts", "maxAttempts", l.opts.MaxReconnect)
}

// send queues a message for the write loop. Non-blocking; drops if full.
func (l *Listener) send(msgType string, payload any) {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		l.logger.Warn("Failed to encode message", "type", msgType, "error", err)
		return
	}
	select {
	case l.sendCh <- data:
	default:
		l.logger.Warn("WebSocket send channel full, dropping message", "type", msgType)
	}
}

// Close sends a close frame and stops all goroutines.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.connected = false
	close(l.done)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
