package session

import (
	"context"

	"github.com/ichi0g0y/slot-roulette/internal/lottery"
	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
	"github.com/ichi0g0y/slot-roulette/internal/store"
	"go.uber.org/zap"
)

// Catalog is the read-only category lookup used by the engine.
type Catalog interface {
	Lookup(name string) string
	Categories() []string
}

// Op names a committed state transition.
type Op string

const (
	OpParticipantRegistered Op = "participant.registered"
	OpParticipantCreated    Op = "participant.created"
	OpItemEnqueued          Op = "item.enqueued"
	OpItemRemoved           Op = "item.removed"
	OpQueueCleared          Op = "queue.cleared"
	OpLockChanged           Op = "lock.changed"
	OpResultRecorded        Op = "result.recorded"
	OpBonusDrawn            Op = "bonus.drawn"
	OpSessionReset          Op = "session.reset"
)

// Change describes one successful commit.
type Change struct {
	Op    Op
	Seq   uint64
	Reset bool
	// Data は操作の結果（参加者、キュー項目、結果など）。購読側は読み取りのみ。
	Data any
}

// Notifier receives every Change after it has been committed, in sequence
// order. Notify is called with the store locked: it must not block or read
// the store synchronously.
type Notifier interface {
	Notify(c Change)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(c Change)

func (f NotifierFunc) Notify(c Change) {
	f(c)
}

// Engine validates and applies every state transition through the store.
type Engine struct {
	store     *store.Store
	catalog   Catalog
	policy    lottery.Policy
	notifiers []Notifier
}

type Option func(*Engine)

// WithPolicy overrides the reward policy.
func WithPolicy(p lottery.Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithNotifier adds a receiver of committed changes.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifiers = append(e.notifiers, n)
		}
	}
}

func New(st *store.Store, c Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:   st,
		catalog: c,
		policy:  lottery.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNotifier registers n after construction. Not safe to call concurrently
// with mutations; wire everything before serving.
func (e *Engine) AddNotifier(n Notifier) {
	if n != nil {
		e.notifiers = append(e.notifiers, n)
	}
}

// commit は通知もストアのロック内で行うため、通知先には seq 順に届く
func (e *Engine) commit(ctx context.Context, op Op, m store.Mutator, data func() any) error {
	_, err := e.store.CommitThen(ctx, m, func(seq uint64) {
		change := Change{Op: op, Seq: seq, Reset: op == OpSessionReset}
		if data != nil {
			change.Data = data()
		}

		logger.Debug("Session change committed", zap.String("op", string(op)), zap.Uint64("seq", seq))
		for _, n := range e.notifiers {
			n.Notify(change)
		}
	})
	return err
}
