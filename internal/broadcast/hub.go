package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultHeartbeatInterval = 20 * time.Second
	DefaultBufferSize        = 16
)

// ErrHubClosed is returned by Subscribe after Run has returned.
var ErrHubClosed = errors.New("broadcast hub is closed")

// ViewSource builds the snapshot pushed to subscribers.
type ViewSource interface {
	SyncView(connected []string) types.SyncView
}

// EventType distinguishes snapshot pushes from heartbeats.
type EventType string

const (
	EventSync EventType = "sync"
	EventPing EventType = "ping"
)

// Event is one outbound message. Data is the encoded SyncView for sync
// events and empty for pings.
type Event struct {
	Type EventType
	Data []byte
}

// Subscriber is one live connection.
type Subscriber struct {
	ID        string
	DeviceID  string
	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns the outbound queue.
func (s *Subscriber) Events() <-chan Event {
	return s.send
}

// Done is closed when the hub has removed the subscriber.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Hub はサブスクライバーの登録と全体への配信を1つのゴルーチンで行う。
type Hub struct {
	source     ViewSource
	clock      clockwork.Clock
	heartbeat  time.Duration
	bufferSize int

	register   chan *Subscriber
	unregister chan *Subscriber
	notify     chan struct{}
	stopped    chan struct{}

	pendingReset atomic.Bool

	// Run ループだけが触る
	subscribers []*Subscriber

	// 外部参照用のデバイスID一覧（登録順）
	devicesMu sync.RWMutex
	devices   []string
}

type Option func(*Hub)

func WithClock(c clockwork.Clock) Option {
	return func(h *Hub) {
		h.clock = c
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// WithBufferSize sets the per-subscriber queue length. A subscriber whose
// queue is full when a push arrives is dropped.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.bufferSize = n
		}
	}
}

func NewHub(source ViewSource, opts ...Option) *Hub {
	h := &Hub{
		source:     source,
		clock:      clockwork.NewRealClock(),
		heartbeat:  DefaultHeartbeatInterval,
		bufferSize: DefaultBufferSize,
		register:   make(chan *Subscriber),
		unregister: make(chan *Subscriber),
		notify:     make(chan struct{}, 1),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes registrations, pushes and heartbeats until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.heartbeat)
	defer ticker.Stop()
	defer close(h.stopped)

	logger.Info("Broadcast hub started", zap.Duration("heartbeat", h.heartbeat))

	for {
		select {
		case <-ctx.Done():
			for _, sub := range h.subscribers {
				sub.close()
			}
			h.subscribers = nil
			h.updateDevices()
			logger.Info("Broadcast hub stopped")
			return

		case sub := <-h.register:
			h.subscribers = append(h.subscribers, sub)
			h.updateDevices()
			logger.Info("Subscriber connected",
				zap.String("subscriber_id", sub.ID),
				zap.String("device_id", sub.DeviceID),
				zap.Int("total", len(h.subscribers)))
			// 新規接続者にはこの配信が最初のスナップショットになる
			h.broadcast(false)

		case sub := <-h.unregister:
			if h.remove(sub) {
				logger.Info("Subscriber disconnected",
					zap.String("subscriber_id", sub.ID),
					zap.Int("total", len(h.subscribers)))
				h.broadcast(false)
			}

		case <-h.notify:
			h.broadcast(h.pendingReset.Swap(false))

		case <-ticker.Chan():
			h.fanOut(Event{Type: EventPing})
		}
	}
}

// Subscribe registers a new subscriber. The first event it receives is a
// snapshot.
func (h *Hub) Subscribe(ctx context.Context, deviceID string) (*Subscriber, error) {
	sub := &Subscriber{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		send:     make(chan Event, h.bufferSize),
		done:     make(chan struct{}),
	}

	select {
	case h.register <- sub:
		return sub, nil
	case <-h.stopped:
		return nil, ErrHubClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Unsubscribe removes sub. It is safe to call more than once and after the
// hub has stopped.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	select {
	case h.unregister <- sub:
	case <-h.stopped:
		sub.close()
	}
}

// Notify requests a push of the latest view. Requests made while a push is
// pending are coalesced; a reset request is never lost.
func (h *Hub) Notify(c session.Change) {
	if c.Reset {
		h.pendingReset.Store(true)
	}
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// DeviceIDs returns the device ids of the current subscribers in
// registration order. Anonymous subscribers are included as "".
func (h *Hub) DeviceIDs() []string {
	h.devicesMu.RLock()
	defer h.devicesMu.RUnlock()
	return append([]string{}, h.devices...)
}

// HeartbeatInterval returns the ping interval.
func (h *Hub) HeartbeatInterval() time.Duration {
	return h.heartbeat
}

// Count returns the number of current subscribers.
func (h *Hub) Count() int {
	h.devicesMu.RLock()
	defer h.devicesMu.RUnlock()
	return len(h.devices)
}

func (h *Hub) broadcast(reset bool) {
	view := h.source.SyncView(h.currentDevices())
	view.Reset = reset

	data, err := json.Marshal(view)
	if err != nil {
		logger.Error("Failed to encode sync view", zap.Error(err))
		return
	}
	h.fanOut(Event{Type: EventSync, Data: data})
}

// fanOut は全員にキューイングする。キューが満杯のサブスクライバーだけ切断する。
func (h *Hub) fanOut(ev Event) {
	var dropped []*Subscriber
	for _, sub := range h.subscribers {
		select {
		case sub.send <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	if len(dropped) == 0 {
		return
	}

	for _, sub := range dropped {
		h.remove(sub)
		logger.Warn("Dropped slow subscriber",
			zap.String("subscriber_id", sub.ID),
			zap.String("device_id", sub.DeviceID),
			zap.String("event", string(ev.Type)))
	}
	// メンバー変更なので残りに再配信する
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Hub) remove(sub *Subscriber) bool {
	for i, s := range h.subscribers {
		if s == sub {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			sub.close()
			h.updateDevices()
			return true
		}
	}
	sub.close()
	return false
}

func (h *Hub) currentDevices() []string {
	ids := make([]string, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		ids = append(ids, s.DeviceID)
	}
	return ids
}

func (h *Hub) updateDevices() {
	ids := h.currentDevices()
	h.devicesMu.Lock()
	h.devices = ids
	h.devicesMu.Unlock()
}
