// Package pgnotify is a change-feed transport over Postgres LISTEN/NOTIFY.
// The server-side trigger installed by db.Migrate publishes every row change
// on one channel; filtering by table and column happens here.
package pgnotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/sitesync/internal/changefeed"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

// Listener holds one LISTEN connection and fans notifications out to
// subscribers. It implements changefeed.Transport and
// changefeed.ReconnectNotifier.
type Listener struct {
	dsn        string
	channel    string
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger

	mu        sync.RWMutex
	next      int
	subs      map[int]subscriber
	reconnect map[int]func()

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

type subscriber struct {
	sub changefeed.Subscription
	h   changefeed.Handler
}

type Option func(*Listener)

func WithChannel(ch string) Option {
	return func(l *Listener) { l.channel = ch }
}

func WithBackoff(floor, ceiling time.Duration) Option {
	return func(l *Listener) {
		l.minBackoff = floor
		l.maxBackoff = ceiling
	}
}

func WithLogger(lg *zap.Logger) Option {
	return func(l *Listener) { l.logger = lg }
}

func New(dsn string, opts ...Option) *Listener {
	l := &Listener{
		dsn:        dsn,
		channel:    db.ChangeFeedChannel,
		minBackoff: defaultMinBackoff,
		maxBackoff: defaultMaxBackoff,
		logger:     zap.NewNop(),
		subs:       make(map[int]subscriber),
		reconnect:  make(map[int]func()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start connects and begins listening. The first connection must succeed;
// later failures are retried with exponential backoff.
func (l *Listener) Start(ctx context.Context) error {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return nil
	}
	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, conn)
	return nil
}

// Close stops listening and waits for the listen loop to exit.
func (l *Listener) Close() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
}

func (l *Listener) Subscribe(_ context.Context, sub changefeed.Subscription, h changefeed.Handler) (changefeed.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.subs[id] = subscriber{sub: sub, h: h}
	return handle{l: l, id: id}, nil
}

func (l *Listener) OnReconnect(fn func()) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	id := l.next
	l.reconnect[id] = fn
	return func() {
		l.mu.Lock()
		delete(l.reconnect, id)
		l.mu.Unlock()
	}
}

type handle struct {
	l  *Listener
	id int
}

func (h handle) Unsubscribe() error {
	h.l.mu.Lock()
	delete(h.l.subs, h.id)
	h.l.mu.Unlock()
	return nil
}

func (l *Listener) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting listener: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("listening on %s: %w", l.channel, err)
	}
	return conn, nil
}

func (l *Listener) run(ctx context.Context, conn *pgx.Conn) {
	defer close(l.done)
	for {
		err := l.listen(ctx, conn)
		conn.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("change feed connection lost", zap.Error(err))

		conn = l.reconnectWithBackoff(ctx)
		if conn == nil {
			return
		}
		l.fireReconnect()
	}
}

func (l *Listener) listen(ctx context.Context, conn *pgx.Conn) error {
	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		e, err := DecodeNotification(n.Payload)
		if err != nil {
			l.logger.Warn("undecodable notification dropped", zap.Error(err))
			continue
		}
		l.deliver(e)
	}
}

func (l *Listener) reconnectWithBackoff(ctx context.Context) *pgx.Conn {
	for attempt := 0; ; attempt++ {
		wait := Backoff(attempt, l.minBackoff, l.maxBackoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		conn, err := l.connect(ctx)
		if err == nil {
			l.logger.Info("change feed reconnected", zap.Int("attempt", attempt+1))
			return conn
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		l.logger.Warn("change feed reconnect failed", zap.Int("attempt", attempt+1), zap.Duration("next_wait", wait), zap.Error(err))
	}
}

func (l *Listener) fireReconnect() {
	l.mu.RLock()
	fns := make([]func(), 0, len(l.reconnect))
	for _, fn := range l.reconnect {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *Listener) deliver(e changefeed.Event) {
	l.mu.RLock()
	var targets []changefeed.Handler
	for _, s := range l.subs {
		if Matches(s.sub, e) {
			targets = append(targets, s.h)
		}
	}
	l.mu.RUnlock()
	for _, h := range targets {
		h(e)
	}
}

// Matches reports whether e belongs to sub.
func Matches(sub changefeed.Subscription, e changefeed.Event) bool {
	return sub.Table == e.Table && sub.Filter.MatchesEvent(e)
}

// DecodeNotification parses the JSON payload published by the trigger.
func DecodeNotification(payload string) (changefeed.Event, error) {
	var raw struct {
		Table     string          `json:"table"`
		Type      string          `json:"type"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return changefeed.Event{}, fmt.Errorf("decoding notification: %w", err)
	}
	if raw.Table == "" {
		return changefeed.Event{}, errors.New("decoding notification: missing table")
	}
	kind, err := changefeed.ParseKind(raw.Type)
	if err != nil {
		return changefeed.Event{}, fmt.Errorf("decoding notification: %w", err)
	}
	return changefeed.Event{Table: raw.Table, Kind: kind, Record: raw.Record, OldRecord: raw.OldRecord}, nil
}

// Backoff returns the wait before reconnect attempt n (0-based), doubling
// from floor and capped at ceiling.
func Backoff(n int, floor, ceiling time.Duration) time.Duration {
	d := floor
	for i := 0; i < n; i++ {
		d *= 2
		if d >= ceiling {
			return ceiling
		}
	}
	return min(d, ceiling)
}
