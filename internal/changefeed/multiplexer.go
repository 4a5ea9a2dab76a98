package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/metrics"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/store"
	"go.uber.org/zap"
)

const eventBuffer = 256

// ProfileLookup resolves profiles that are not yet in the profile store.
type ProfileLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
}

// Multiplexer subscribes to every tracked table and applies incoming events
// to the stores. Events are applied one at a time by a single goroutine.
type Multiplexer struct {
	transport Transport
	stores    *store.Stores
	engine    *aggregate.Engine
	profiles  ProfileLookup
	resync    func(context.Context) error
	onApplied func(Event)
	logger    *zap.Logger
	sink      report.Sink
	tables    map[string]binding

	mu      sync.Mutex
	active  *activation
	enrichM sync.Mutex
	// pending maps a member row to the token of its newest unresolved
	// event. Tokens are never reused, so keys are dropped once settled.
	pending map[string]uint64
	nextSeq uint64
}

type activation struct {
	userID          string
	cancel          context.CancelFunc
	handles         []Handle
	removeReconnect func()
	done            chan struct{}
	enrich          sync.WaitGroup
}

type Option func(*Multiplexer)

// WithProfileLookup sets the fallback used to enrich member rows.
func WithProfileLookup(p ProfileLookup) Option {
	return func(m *Multiplexer) { m.profiles = p }
}

// WithResync sets the hook run after the transport reconnects.
func WithResync(fn func(context.Context) error) Option {
	return func(m *Multiplexer) { m.resync = fn }
}

// WithAppliedHook is called after each event has been fully applied,
// including any engine run and member enrichment.
func WithAppliedHook(fn func(Event)) Option {
	return func(m *Multiplexer) { m.onApplied = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Multiplexer) { m.logger = l }
}

func WithSink(s report.Sink) Option {
	return func(m *Multiplexer) { m.sink = report.OrDiscard(s) }
}

func NewMultiplexer(t Transport, stores *store.Stores, engine *aggregate.Engine, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		transport: t,
		stores:    stores,
		engine:    engine,
		logger:    zap.NewNop(),
		sink:      report.Discard{},
		tables:    bindings(stores),
		pending:   make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Subscriptions returns the subscriptions opened for userID.
func Subscriptions(userID string) []Subscription {
	subs := make([]Subscription, 0, len(Tables)+1)
	for _, t := range Tables {
		if t == TableRequests {
			subs = append(subs,
				Subscription{Table: t, Filter: Eq("requested_to", userID)},
				Subscription{Table: t, Filter: Eq("requested_by", userID)},
			)
			continue
		}
		subs = append(subs, Subscription{Table: t})
	}
	return subs
}

// Active reports whether subscriptions are open.
func (m *Multiplexer) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Activate opens all subscriptions for userID, closing any previous set.
func (m *Multiplexer) Activate(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateLocked()

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a := &activation{userID: userID, cancel: cancel, done: make(chan struct{})}
	events := make(chan Event, eventBuffer)
	handler := func(e Event) {
		select {
		case events <- e:
		case <-loopCtx.Done():
		}
	}

	for _, sub := range Subscriptions(userID) {
		h, err := m.transport.Subscribe(loopCtx, sub, handler)
		if err != nil {
			cancel()
			for _, open := range a.handles {
				_ = open.Unsubscribe()
			}
			return fmt.Errorf("subscribing to %s: %w", sub, err)
		}
		a.handles = append(a.handles, h)
	}
	if rn, ok := m.transport.(ReconnectNotifier); ok {
		a.removeReconnect = rn.OnReconnect(func() { m.reconnected(loopCtx) })
	}

	go m.loop(loopCtx, a, events)
	m.active = a
	m.logger.Info("change feed active", zap.String("user_id", userID), zap.Int("subscriptions", len(a.handles)))
	return nil
}

// Deactivate closes every subscription and waits for in-flight work.
func (m *Multiplexer) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateLocked()
}

func (m *Multiplexer) deactivateLocked() {
	a := m.active
	if a == nil {
		return
	}
	m.active = nil
	if a.removeReconnect != nil {
		a.removeReconnect()
	}
	for _, h := range a.handles {
		if err := h.Unsubscribe(); err != nil {
			m.logger.Warn("unsubscribe failed", zap.Error(err))
		}
	}
	a.cancel()
	<-a.done
	a.enrich.Wait()
	m.enrichM.Lock()
	clear(m.pending)
	m.enrichM.Unlock()
	m.logger.Info("change feed inactive", zap.String("user_id", a.userID))
}

func (m *Multiplexer) loop(ctx context.Context, a *activation, events <-chan Event) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			m.dispatch(ctx, a, e)
		}
	}
}

func (m *Multiplexer) reconnected(ctx context.Context) {
	metrics.FeedReconnects.Inc()
	m.logger.Info("change feed reconnected, resynchronising")
	if m.resync == nil {
		return
	}
	go func() {
		if err := m.resync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.sink.Report(report.Failure{Kind: report.KindFetch, Op: "resync", Entity: "session", Err: err})
		}
	}()
}

func (m *Multiplexer) dispatch(ctx context.Context, a *activation, e Event) {
	metrics.FeedEvents.WithLabelValues(e.Table, string(e.Kind)).Inc()

	if isMemberTable(e.Table) {
		if err := m.applyMember(ctx, a, e); err != nil {
			m.dropped(e, err)
			m.applied(e)
		}
		return
	}

	b, ok := m.tables[e.Table]
	if !ok {
		m.dropped(e, ErrUnknownTable)
		m.applied(e)
		return
	}
	if err := m.apply(b.table, e); err != nil {
		m.dropped(e, err)
	}
	switch b.effect {
	case effectRun:
		m.engine.Run()
	case effectReconcile:
		m.engine.Reconcile()
	}
	m.applied(e)
}

func (m *Multiplexer) apply(t table, e Event) error {
	id, err := e.ID()
	if err != nil {
		return err
	}
	switch e.Kind {
	case KindInsert:
		return t.add(e.Record)
	case KindUpdate:
		return t.update(id, e.Record)
	case KindDelete:
		t.remove(id)
		return nil
	}
	return fmt.Errorf("unknown event kind %q", e.Kind)
}

func (m *Multiplexer) dropped(e Event, err error) {
	m.logger.Debug("change event dropped", zap.String("table", e.Table), zap.String("kind", string(e.Kind)), zap.Error(err))
	m.sink.Report(report.Failure{Kind: report.KindDecode, Op: string(e.Kind), Entity: e.Table, Err: err})
}

func (m *Multiplexer) applied(e Event) {
	if m.onApplied != nil {
		m.onApplied(e)
	}
}
