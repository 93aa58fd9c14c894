package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironcrew/ironcrew-server/internal/id"
	"github.com/ironcrew/ironcrew-server/internal/metrics"
)

const (
	defaultHeartbeat     = 30 * time.Second
	defaultMaxPerUser    = 5
	eventQueueSize       = 1000
	clientBufferSize     = 64
	dropReasonSlowClient = "slow_client"
	dropReasonQueueFull  = "queue_full"
)

var (
	// ErrTooManyStreams is returned by Connect when the user already holds
	// the maximum number of open streams.
	ErrTooManyStreams = errors.New("too many event streams for this user")

	// ErrClosed is returned by Connect after Shutdown.
	ErrClosed = errors.New("event stream manager is shut down")
)

// Client is one open event stream.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records stream gauges and drop counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithMaxStreamsPerUser caps concurrent streams per user. Zero disables the cap.
func WithMaxStreamsPerUser(n int) Option {
	return func(mgr *Manager) { mgr.maxPerUser = n }
}

// WithHeartbeat sets the keepalive interval.
func WithHeartbeat(d time.Duration) Option {
	return func(mgr *Manager) { mgr.heartbeat = d }
}

// Manager fans events out to the streams of the users they address.
// Clients are indexed by user, so a targeted event only touches that user's
// streams; an event without a user goes to everyone.
type Manager struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client
	total  int

	events  chan Event
	closeMu sync.RWMutex
	closed  bool
	started atomic.Bool
	stopped chan struct{}

	heartbeat  time.Duration
	maxPerUser int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewManager creates a Manager. Call Start to begin delivery.
func NewManager(logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		byUser:     make(map[string]map[string]*Client),
		events:     make(chan Event, eventQueueSize),
		stopped:    make(chan struct{}),
		heartbeat:  defaultHeartbeat,
		maxPerUser: defaultMaxPerUser,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = metrics.NewNoop()
	}
	if m.heartbeat <= 0 {
		m.heartbeat = defaultHeartbeat
	}
	return m
}

// Start delivers queued events and heartbeats until ctx is cancelled or
// Shutdown closes the queue. It blocks; run it in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	defer close(m.stopped)

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.logger.Info("event stream manager started", "heartbeat", m.heartbeat)

	for {
		select {
		case evt, ok := <-m.events:
			if !ok {
				return
			}
			m.deliver(evt)
		case <-ticker.C:
			m.deliver(NewHeartbeatEvent())
		case <-ctx.Done():
			m.closeAll()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is still queued and closes
// every stream. Calling it again is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.events)
	m.closeMu.Unlock()

	var err error
	if m.started.Load() {
		select {
		case <-m.stopped:
		case <-ctx.Done():
			err = ctx.Err()
			m.logger.Warn("event stream drain timed out")
		}
	}

	// Start may have exited on cancellation, or never run, with events
	// still queued.
	for evt := range m.events {
		m.deliver(evt)
	}
	m.closeAll()

	m.logger.Info("event stream manager stopped")
	return err
}

// Emit queues evt. Events are dropped when the queue is full or after
// Shutdown.
func (m *Manager) Emit(evt Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}

	select {
	case m.events <- evt:
	default:
		m.metrics.SSEEventsDropped.WithLabelValues(dropReasonQueueFull).Inc()
		m.logger.Error("event queue full, dropping event", "event_type", evt.Type)
	}
}

// EmitToUser queues evt for userID's streams only.
func (m *Manager) EmitToUser(userID string, evt Event) {
	evt.UserID = userID
	m.Emit(evt)
}

// Connect opens a stream for userID.
func (m *Manager) Connect(userID string) (*Client, error) {
	m.closeMu.RLock()
	closed := m.closed
	m.closeMu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}
	c := &Client{
		ID:          clientID,
		UserID:      userID,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientBufferSize),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	streams := m.byUser[userID]
	if m.maxPerUser > 0 && len(streams) >= m.maxPerUser {
		m.mu.Unlock()
		return nil, ErrTooManyStreams
	}
	if streams == nil {
		streams = make(map[string]*Client)
		m.byUser[userID] = streams
	}
	streams[c.ID] = c
	m.total++
	total := m.total
	m.mu.Unlock()

	m.metrics.SSEClients.Set(float64(total))
	m.logger.Debug("event stream opened", "client_id", c.ID, "user_id", userID, "total", total)
	return c, nil
}

// Disconnect closes c. Disconnecting twice is safe.
func (m *Manager) Disconnect(c *Client) {
	m.mu.Lock()
	streams := m.byUser[c.UserID]
	if _, ok := streams[c.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(streams, c.ID)
	if len(streams) == 0 {
		delete(m.byUser, c.UserID)
	}
	m.total--
	total := m.total
	m.mu.Unlock()

	close(c.Done)
	close(c.EventChan)

	m.metrics.SSEClients.Set(float64(total))
	m.logger.Debug("event stream closed",
		"client_id", c.ID,
		"user_id", c.UserID,
		"duration", time.Since(c.ConnectedAt))
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// UserStreamCount returns the number of open streams for userID.
func (m *Manager) UserStreamCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

func (m *Manager) deliver(evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if evt.UserID != "" {
		for _, c := range m.byUser[evt.UserID] {
			m.send(c, evt)
		}
		return
	}
	for _, streams := range m.byUser {
		for _, c := range streams {
			m.send(c, evt)
		}
	}
}

// send never blocks; a full client buffer loses the event.
func (m *Manager) send(c *Client, evt Event) {
	select {
	case c.EventChan <- evt:
	default:
		m.metrics.SSEEventsDropped.WithLabelValues(dropReasonSlowClient).Inc()
		m.logger.Warn("dropped event for slow client", "client_id", c.ID, "event_type", evt.Type)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, streams := range m.byUser {
		for _, c := range streams {
			close(c.Done)
			close(c.EventChan)
		}
	}
	m.byUser = make(map[string]map[string]*Client)
	m.total = 0
	m.metrics.SSEClients.Set(0)
}
