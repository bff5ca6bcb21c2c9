// Package stream maintains the client's single WebSocket connection to the
// alert stream. It owns the connection lifecycle state machine, reconnects
// with bounded exponential backoff, and pushes every accepted inbound frame
// through the normalizer into the notification store.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"alert-stream/internal/models"
	"alert-stream/internal/normalize"
)

// Errors reported by the manager.
var (
	ErrNotConnected       = errors.New("connection is not open")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Config holds the manager's tunables; see config.Load for the env names.
type Config struct {
	URL                 string
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	MaxAttempts         int
	AbnormalCloseFactor float64
	DialTimeout         time.Duration
	SurfaceParseErrors  bool
}

// Events are the subscriber callbacks. Any field may be nil. Callbacks run
// on the manager's goroutines, outside its lock, and must not block for
// long.
type Events struct {
	OnOpen  func()
	OnAlert func(models.Alert)
	OnError func(error)
	OnClose func(code int, wasClean bool)
	OnFatal func(error)
}

// AlertSink consumes accepted alerts; the notification store implements it.
type AlertSink interface {
	Enqueue(alert models.Alert) bool
}

// Manager owns at most one live transport. All state transitions happen
// under mu; a generation counter tags each connect cycle so events from a
// torn-down connection are discarded instead of corrupting the current one.
type Manager struct {
	cfg    Config
	norm   *normalize.Normalizer
	sink   AlertSink
	events Events
	logger *logrus.Logger

	mu            sync.Mutex
	phase         Phase
	attempt       int
	nextDelay     time.Duration
	conn          *websocket.Conn
	timer         *time.Timer
	gen           uint64
	parseSurfaced bool

	frames   uint64
	alerts   uint64
	rejected uint64

	writeMu sync.Mutex

	dialFn func(url string, timeout time.Duration) (*websocket.Conn, error)
}

// NewManager builds a Manager in the Idle phase; Connect starts it. events
// must not be modified afterwards.
func NewManager(cfg Config, norm *normalize.Normalizer, sink AlertSink, events Events, logger *logrus.Logger) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		norm:   norm,
		sink:   sink,
		events: events,
		logger: logger,
		phase:  PhaseIdle,
		dialFn: dialWebSocket,
	}
}

func dialWebSocket(url string, timeout time.Duration) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	return conn, err
}

// Connect starts a connection cycle from Idle or Fatal and reports whether
// one began. While Connecting, Open or Reconnecting it is a no-op: the
// hosting environment may invoke setup twice for the same logical session,
// and this guard is what makes that harmless.
func (m *Manager) Connect() bool {
	m.mu.Lock()
	switch m.phase {
	case PhaseConnecting, PhaseOpen, PhaseReconnecting:
		phase := m.phase
		m.mu.Unlock()
		m.logger.Debugf("Connect ignored: phase=%s", phase)
		return false
	}
	m.gen++
	gen := m.gen
	m.phase = PhaseConnecting
	m.attempt = 0
	m.nextDelay = 0
	m.mu.Unlock()

	m.logger.Infof("Connecting to %s", m.cfg.URL)
	go m.dial(gen)
	return true
}

// Disconnect tears the connection down and parks the manager at Idle. Safe
// from any state, any number of times; a pending reconnect timer is
// cancelled before it can fire.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	conn := m.conn
	m.conn = nil
	m.phase = PhaseIdle
	m.attempt = 0
	m.nextDelay = 0
	m.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
		m.logger.Infof("Disconnected from %s", m.cfg.URL)
	}
}

// Send transmits payload over the open connection. Strings and byte slices
// pass through; anything else is JSON-encoded. Returns ErrNotConnected when
// the connection is not open.
func (m *Manager) Send(payload interface{}) error {
	m.mu.Lock()
	conn := m.conn
	open := m.phase == PhaseOpen
	m.mu.Unlock()
	if !open || conn == nil {
		return ErrNotConnected
	}

	var data []byte
	switch v := payload.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		data = encoded
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// Status returns a snapshot of the connection state and frame counters.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Phase:     m.phase,
		Attempt:   m.attempt,
		NextDelay: m.nextDelay,
		Frames:    m.frames,
		Alerts:    m.alerts,
		Rejected:  m.rejected,
	}
}

// dial runs one connection attempt for generation gen.
func (m *Manager) dial(gen uint64) {
	conn, err := m.dialFn(m.cfg.URL, m.cfg.DialTimeout)
	if err != nil {
		m.handleDialError(gen, err)
		return
	}
	m.handleOpen(gen, conn)
}

func (m *Manager) handleOpen(gen uint64, conn *websocket.Conn) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.phase = PhaseOpen
	m.attempt = 0
	m.nextDelay = 0
	m.parseSurfaced = false
	m.mu.Unlock()

	m.logger.Infof("Connection open: %s", m.cfg.URL)
	go m.readLoop(gen, conn)
	if m.events.OnOpen != nil {
		m.events.OnOpen()
	}
}

func (m *Manager) handleDialError(gen uint64, err error) {
	m.mu.Lock()
	stale := gen != m.gen
	m.mu.Unlock()
	if stale {
		return
	}

	m.logger.Errorf("Dial failed: %v", err)
	if m.events.OnError != nil {
		m.events.OnError(fmt.Errorf("dial %s: %w", m.cfg.URL, err))
	}
	// No server answered, which is exactly the case the abnormal penalty
	// exists for.
	m.evaluateReconnect(gen, websocket.CloseAbnormalClosure)
}

// readLoop pumps frames until the connection dies, then routes the close
// into the reconnect evaluation.
func (m *Manager) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClosed(gen, err)
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame normalizes one inbound frame. Rejections never interrupt the
// connection; a parse failure may surface once per connection as a
// synthetic info notification when configured.
func (m *Manager) handleFrame(data []byte) {
	m.mu.Lock()
	m.frames++
	m.mu.Unlock()

	alert, err := m.norm.Normalize(data)
	switch {
	case err == nil:
	case errors.Is(err, normalize.ErrControl):
		m.logger.Debugf("Control frame discarded")
		m.countReject()
		return
	case errors.Is(err, normalize.ErrParse):
		m.logger.Warnf("Unparseable frame dropped (%d bytes)", len(data))
		m.countReject()
		m.maybeSurfaceParseError()
		return
	default:
		m.logger.Debugf("Unclassifiable frame dropped")
		m.countReject()
		return
	}

	m.mu.Lock()
	m.alerts++
	m.mu.Unlock()

	if m.events.OnAlert != nil {
		m.events.OnAlert(alert)
	}
	if m.sink != nil {
		m.sink.Enqueue(alert)
	}
}

func (m *Manager) handleClosed(gen uint64, err error) {
	code, wasClean := closeDetails(err)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()

	m.logger.Warnf("Connection closed: code=%d clean=%v err=%v", code, wasClean, err)
	if !wasClean && m.events.OnError != nil {
		m.events.OnError(fmt.Errorf("transport closed: %w", err))
	}
	if m.events.OnClose != nil {
		m.events.OnClose(code, wasClean)
	}
	m.evaluateReconnect(gen, code)
}

// evaluateReconnect decides what follows a failed dial or a dead
// connection: schedule a redial while attempts remain, otherwise go Fatal
// and stay there until an external Connect.
func (m *Manager) evaluateReconnect(gen uint64, code int) {
	abnormal := code == websocket.CloseAbnormalClosure

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.attempt >= m.cfg.MaxAttempts {
		m.phase = PhaseFatal
		m.nextDelay = 0
		attempts := m.attempt
		m.mu.Unlock()

		m.logger.Errorf("Giving up after %d reconnect attempts", attempts)
		if m.events.OnFatal != nil {
			m.events.OnFatal(fmt.Errorf("%w: %d attempts", ErrReconnectExhausted, attempts))
		}
		return
	}
	m.attempt++
	attempt := m.attempt
	delay := reconnectDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, attempt, abnormal, m.cfg.AbnormalCloseFactor)
	m.phase = PhaseReconnecting
	m.nextDelay = delay
	m.timer = time.AfterFunc(delay, func() { m.redial(gen) })
	m.mu.Unlock()

	m.logger.Infof("Reconnecting: attempt=%d/%d delay=%s", attempt, m.cfg.MaxAttempts, delay)
}

// redial moves Reconnecting back to Connecting when the backoff timer
// fires. A timer that lost the race against Disconnect finds a newer
// generation here and gives up.
func (m *Manager) redial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.phase != PhaseReconnecting {
		m.mu.Unlock()
		return
	}
	m.phase = PhaseConnecting
	m.timer = nil
	m.mu.Unlock()

	m.dial(gen)
}

// maybeSurfaceParseError enqueues one synthetic info notification per
// connection so a corrupted stream is visible without flooding the queue.
func (m *Manager) maybeSurfaceParseError() {
	if !m.cfg.SurfaceParseErrors || m.sink == nil {
		return
	}
	m.mu.Lock()
	if m.parseSurfaced {
		m.mu.Unlock()
		return
	}
	m.parseSurfaced = true
	m.mu.Unlock()

	m.sink.Enqueue(models.Alert{
		ID:        uuid.NewString(),
		Level:     models.LevelInfo,
		Message:   "Malformed data received on alert stream",
		SensorID:  "stream",
		Source:    "client",
		Timestamp: time.Now(),
	})
}

func (m *Manager) countReject() {
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
}

// closeDetails maps a read error onto (code, wasClean): a received close
// frame is clean unless it carries the abnormal-closure code; any other
// error means the peer vanished without a close frame.
func closeDetails(err error) (int, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Code != websocket.CloseAbnormalClosure
	}
	return websocket.CloseAbnormalClosure, false
}
