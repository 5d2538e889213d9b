package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// WebSocket Log Stream — live logsSubscribe feed for a program
// Reconnects with bounded backoff; emits raw log notifications unfiltered.
// ---------------------------------------------------------------------------

// LogStreamConfig configures the WebSocket log stream.
type LogStreamConfig struct {
	WSEndpoint       string   `yaml:"ws_endpoint"`
	ProgramIDs       []string `yaml:"program_ids"` // programs to watch
	ReconnectDelayMs int      `yaml:"reconnect_delay_ms"`
	PingIntervalS    int      `yaml:"ping_interval_s"`
	MaxReconnects    int      `yaml:"max_reconnects"`
}

// DefaultLogStreamConfig returns defaults for mainnet token monitoring.
func DefaultLogStreamConfig() LogStreamConfig {
	return LogStreamConfig{
		WSEndpoint:       "wss://api.mainnet-beta.solana.com",
		ProgramIDs:       []string{string(TokenProgramID)},
		ReconnectDelayMs: 1000,
		PingIntervalS:    30,
		MaxReconnects:    0, // 0 = unlimited reconnects
	}
}

// LogEvent is a raw logsNotification from the subscription.
type LogEvent struct {
	Signature  Signature `json:"signature"`
	Slot       uint64    `json:"slot"`
	Logs       []string  `json:"logs"`
	DetectedAt time.Time `json:"detected_at"`
}

// LogStream monitors Solana WebSocket logs for the configured programs.
type LogStream struct {
	config LogStreamConfig

	mu   sync.RWMutex
	conn *websocket.Conn

	eventCh chan LogEvent
	closed  atomic.Bool // tracks if eventCh is closed

	nextSubID atomic.Int64

	// Stats.
	messagesRecv atomic.Int64
	eventsOut    atomic.Int64
	drops        atomic.Int64
	reconnects   atomic.Int64
	connected    atomic.Bool
}

// NewLogStream creates a new WebSocket log stream.
func NewLogStream(config LogStreamConfig) *LogStream {
	return &LogStream{
		config:  config,
		eventCh: make(chan LogEvent, 256),
	}
}

// Start connects and begins streaming. Returns the event channel; the
// channel is closed when ctx is cancelled.
func (m *LogStream) Start(ctx context.Context) (<-chan LogEvent, error) {
	go m.runLoop(ctx)
	return m.eventCh, nil
}

func (m *LogStream) runLoop(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("stream: runLoop panic recovered")
		}
		// Acquire write lock to synchronize with handleMessage's channel send.
		m.mu.Lock()
		if m.closed.CompareAndSwap(false, true) {
			close(m.eventCh)
		}
		m.mu.Unlock()
	}()

	reconnectDelay := time.Duration(m.config.ReconnectDelayMs) * time.Millisecond
	reconnectCount := 0

	for {
		select {
		case <-ctx.Done():
			m.disconnect()
			return
		default:
		}

		// Unlimited reconnects when MaxReconnects == 0.
		if m.config.MaxReconnects > 0 && reconnectCount >= m.config.MaxReconnects {
			log.Error().Int("max", m.config.MaxReconnects).Msg("stream: max reconnects reached, restarting counter after cooldown")
			select {
			case <-time.After(60 * time.Second):
				reconnectCount = 0
				continue
			case <-ctx.Done():
				m.disconnect()
				return
			}
		}

		if err := m.connect(ctx); err != nil {
			log.Warn().Err(err).Int("attempt", reconnectCount).Msg("stream: connection failed")
			reconnectCount++
			m.reconnects.Add(1)

			maxDelay := 30 * time.Second
			select {
			case <-time.After(reconnectDelay):
				reconnectDelay = reconnectDelay * 2
				if reconnectDelay > maxDelay {
					reconnectDelay = maxDelay
				}
			case <-ctx.Done():
				return
			}
			continue
		}

		reconnectCount = 0
		reconnectDelay = time.Duration(m.config.ReconnectDelayMs) * time.Millisecond

		for _, programID := range m.config.ProgramIDs {
			if err := m.subscribe(programID); err != nil {
				log.Warn().Err(err).Str("program", shortAddr(programID)).Msg("stream: subscribe failed")
			}
		}

		// Read messages until disconnect.
		m.readLoop(ctx)
	}
}

func (m *LogStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, m.config.WSEndpoint, http.Header{})
	if err != nil {
		return fmt.Errorf("stream: dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.connected.Store(true)

	log.Info().Str("endpoint", m.config.WSEndpoint).Msg("stream: connected")
	return nil
}

func (m *LogStream) disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.connected.Store(false)
}

// subscribe sends a logsSubscribe RPC request for a program.
func (m *LogStream) subscribe(programID string) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("stream: not connected")
	}

	subID := m.nextSubID.Add(1)

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      subID,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{
				"mentions": []string{programID},
			},
			map[string]any{
				"commitment": "confirmed",
			},
		},
	}

	// Write through the captured conn: a concurrent disconnect may have
	// cleared m.conn, and a write to a closed conn just errors.
	m.mu.Lock()
	err := conn.WriteJSON(req)
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("stream: write subscribe: %w", err)
	}

	log.Info().Str("program", shortAddr(programID)).Msg("stream: subscribed to program logs")
	return nil
}

func (m *LogStream) readLoop(ctx context.Context) {
	pingInterval := time.Duration(m.config.PingIntervalS) * time.Second
	if pingInterval == 0 {
		pingInterval = 30 * time.Second
	}
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pingTicker.C:
			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()
			if conn != nil {
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Debug().Err(err).Msg("stream: ping failed")
					return
				}
			}
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()
		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("stream: connection closed normally")
			} else {
				log.Warn().Err(err).Msg("stream: read error, reconnecting")
			}
			m.connected.Store(false)
			return
		}

		m.messagesRecv.Add(1)
		m.handleMessage(message)
	}
}

func (m *LogStream) handleMessage(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("stream: handleMessage panic recovered")
		}
	}()

	var notification struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Value struct {
					Signature string   `json:"signature"`
					Logs      []string `json:"logs"`
				} `json:"value"`
				Context struct {
					Slot uint64 `json:"slot"`
				} `json:"context"`
			} `json:"result"`
			Subscription int `json:"subscription"`
		} `json:"params"`
	}

	if err := json.Unmarshal(data, &notification); err != nil {
		return
	}

	if notification.Method != "logsNotification" {
		// Could be a subscription confirmation response.
		var subResp struct {
			Result int `json:"result"`
		}
		if json.Unmarshal(data, &subResp) == nil && subResp.Result > 0 {
			log.Debug().Int("sub_id", subResp.Result).Msg("stream: subscription confirmed")
		}
		return
	}

	event := LogEvent{
		Signature:  Signature(notification.Params.Result.Value.Signature),
		Slot:       notification.Params.Result.Context.Slot,
		Logs:       notification.Params.Result.Value.Logs,
		DetectedAt: time.Now(),
	}

	// Synchronize channel send with close using the mutex to prevent
	// send-on-closed-channel panic (atomic check alone is racy).
	m.mu.RLock()
	if !m.closed.Load() {
		select {
		case m.eventCh <- event:
			m.eventsOut.Add(1)
		default:
			m.drops.Add(1)
			log.Warn().Msg("stream: event channel full, dropping notification")
		}
	}
	m.mu.RUnlock()
}

func shortAddr(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// StreamStats returns stream statistics.
type StreamStats struct {
	Connected    bool  `json:"connected"`
	MessagesRecv int64 `json:"messages_recv"`
	EventsOut    int64 `json:"events_out"`
	Drops        int64 `json:"drops"`
	Reconnects   int64 `json:"reconnects"`
}

func (m *LogStream) Stats() StreamStats {
	return StreamStats{
		Connected:    m.connected.Load(),
		MessagesRecv: m.messagesRecv.Load(),
		EventsOut:    m.eventsOut.Load(),
		Drops:        m.drops.Load(),
		Reconnects:   m.reconnects.Load(),
	}
}
