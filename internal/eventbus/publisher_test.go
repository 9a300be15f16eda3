package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ichi0g0y/slot-roulette/internal/session"
	"github.com/ichi0g0y/slot-roulette/internal/types"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type fakeStream struct {
	mu       sync.Mutex
	msgs     []*nats.Msg
	failWith error
	block    chan struct{}
}

func (f *fakeStream) PublishMsg(ctx context.Context, msg *nats.Msg, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "ROULETTE_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

func (f *fakeStream) published() []*nats.Msg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*nats.Msg{}, f.msgs...)
}

func newTestPublisher(js streamPublisher, queueSize int) *Publisher {
	cfg := DefaultConfig()
	cfg.QueueSize = queueSize
	p := newPublisher(js, cfg, clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	go p.run()
	return p
}

func TestPublishesChangesInOrder(t *testing.T) {
	js := &fakeStream{}
	p := newTestPublisher(js, 8)

	p.Notify(session.Change{Op: session.OpItemEnqueued, Seq: 1, Data: types.QueueItem{ID: "g1", Name: "Hugo"}})
	p.Notify(session.Change{Op: session.OpSessionReset, Seq: 2, Reset: true})
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	msgs := js.published()
	if len(msgs) != 2 {
		t.Fatalf("unexpected message count: got=%d want=2", len(msgs))
	}
	if msgs[0].Subject != "roulette.session.item.enqueued" {
		t.Fatalf("unexpected subject: got=%s", msgs[0].Subject)
	}
	if msgs[1].Subject != "roulette.session.session.reset" {
		t.Fatalf("unexpected subject: got=%s", msgs[1].Subject)
	}

	var env struct {
		EventID string          `json:"eventId"`
		Op      string          `json:"op"`
		Seq     uint64          `json:"seq"`
		Reset   bool            `json:"reset"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(msgs[0].Data, &env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Seq != 1 || env.Op != "item.enqueued" || env.Reset {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if !strings.HasSuffix(env.EventID, "-1") {
		t.Fatalf("event id should end with the commit sequence: got=%s", env.EventID)
	}
	if got := msgs[0].Header.Get("Event-ID"); got != env.EventID {
		t.Fatalf("unexpected Event-ID header: got=%s want=%s", got, env.EventID)
	}

	var item types.QueueItem
	if err := json.Unmarshal(env.Payload, &item); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if item.Name != "Hugo" {
		t.Fatalf("unexpected payload name: got=%s want=Hugo", item.Name)
	}

	if err := json.Unmarshal(msgs[1].Data, &env); err != nil {
		t.Fatalf("failed to decode reset envelope: %v", err)
	}
	if !env.Reset {
		t.Fatalf("reset flag was not published")
	}
}

func TestPublishFailureIsDropped(t *testing.T) {
	js := &fakeStream{failWith: errors.New("no responders")}
	p := newTestPublisher(js, 4)

	p.Notify(session.Change{Op: session.OpQueueCleared, Seq: 1})
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := len(js.published()); got != 0 {
		t.Fatalf("unexpected message count: got=%d want=0", got)
	}
}

func TestNotifyNeverBlocks(t *testing.T) {
	js := &fakeStream{block: make(chan struct{})}
	p := newTestPublisher(js, 1)

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 10; i++ {
			p.Notify(session.Change{Op: session.OpLockChanged, Seq: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Notify blocked on a full queue")
	}

	close(js.block)
	_ = p.Close()

	if got := len(js.published()); got > 2 {
		t.Fatalf("queue overflow should drop changes: got=%d published", got)
	}

	// Close 後の Notify は無視される
	p.Notify(session.Change{Op: session.OpLockChanged, Seq: 11})
}
