package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Config configures the JetStream mirror of session changes.
type Config struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	QueueSize       int
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	DuplicateWindow time.Duration
	PublishTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:             nats.DefaultURL,
		StreamName:      "ROULETTE_EVENTS",
		SubjectPrefix:   "roulette.session",
		QueueSize:       256,
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		DuplicateWindow: 2 * time.Minute,
		PublishTimeout:  5 * time.Second,
	}
}

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// envelope is the message body published for every change.
type envelope struct {
	EventID   string    `json:"eventId"`
	Op        string    `json:"op"`
	Seq       uint64    `json:"seq"`
	Reset     bool      `json:"reset,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// Publisher mirrors session changes to JetStream. Publishing happens on a
// single background goroutine in the order Notify was called, which is commit
// order; a full queue or a failed publish drops the event.
type Publisher struct {
	nc       *nats.Conn
	js       streamPublisher
	cfg      Config
	clock    clockwork.Clock
	instance string

	mu     sync.RWMutex
	closed bool
	queue  chan session.Change
	done   chan struct{}
}

// Connect dials NATS, ensures the stream exists and starts publishing.
func Connect(ctx context.Context, cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("slot-roulette"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS error", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if err := ensureStream(ctx, js, cfg); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}

	p := newPublisher(js, cfg, clockwork.NewRealClock())
	p.nc = nc
	go p.run()

	logger.Info("Event mirror connected",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("stream", cfg.StreamName))
	return p, nil
}

func newPublisher(js streamPublisher, cfg Config, clock clockwork.Clock) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	return &Publisher{
		js:       js,
		cfg:      cfg,
		clock:    clock,
		instance: uuid.NewString(),
		queue:    make(chan session.Change, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg Config) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Roulette session changes",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     -1,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		logger.Info("Created JetStream stream", zap.String("stream", cfg.StreamName))
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if info.Config.MaxAge != sc.MaxAge || info.Config.Duplicates != sc.Duplicates {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		logger.Info("Updated JetStream stream", zap.String("stream", cfg.StreamName))
	}
	return nil
}

// Notify queues c for publishing. It never blocks.
func (p *Publisher) Notify(c session.Change) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- c:
	default:
		logger.Warn("Event mirror queue full, dropping change",
			zap.String("op", string(c.Op)),
			zap.Uint64("seq", c.Seq))
	}
}

// Close stops accepting changes, publishes what is queued and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	<-p.done
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for c := range p.queue {
		if err := p.publish(c); err != nil {
			logger.Warn("Failed to publish session change",
				zap.String("op", string(c.Op)),
				zap.Uint64("seq", c.Seq),
				zap.Error(err))
		}
	}
}

func (p *Publisher) publish(c session.Change) error {
	subject := p.cfg.SubjectPrefix + "." + string(c.Op)
	eventID := p.instance + "-" + strconv.FormatUint(c.Seq, 10)

	data, err := json.Marshal(envelope{
		EventID:   eventID,
		Op:        string(c.Op),
		Seq:       c.Seq,
		Reset:     c.Reset,
		Timestamp: p.clock.Now().UTC(),
		Payload:   c.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PublishTimeout)
	defer cancel()

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Op": []string{string(c.Op)},
			"Event-ID": []string{eventID},
		},
	},
		jetstream.WithMsgID(eventID),
		jetstream.WithExpectStream(p.cfg.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	logger.Debug("Published session change",
		zap.String("subject", subject),
		zap.Uint64("stream_seq", ack.Sequence))
	return nil
}
