// Package session owns the lifecycle of a signed-in session: the inactivity
// expiry check, the bulk load that fills the stores after authentication,
// and activation of the change feed once the stores are populated.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/metrics"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/store"
)

// ErrSuperseded is returned by a hydration run that was overtaken by a newer
// run or by sign-out before it could commit.
var ErrSuperseded = errors.New("hydration superseded")

// DefaultExpiry is the inactivity gap after which persisted snapshots are wiped.
const DefaultExpiry = 24 * time.Hour

type State string

const (
	StateIdle        State = "idle"
	StateExpiryCheck State = "expiry-check"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateError       State = "error"
)

// Load paths, also used as metric labels.
const (
	PathAdmin  = "admin"
	PathMember = "member"
	PathDetail = "detail"
)

// Feed is the live-update side of a session. changefeed.Multiplexer
// implements it.
type Feed interface {
	Activate(ctx context.Context, userID string) error
	Deactivate()
}

// Result summarises one hydration run.
type Result struct {
	UserID   string
	Path     string
	Skipped  bool
	Counts   map[string]int
	Stats    aggregate.Stats
	Failures []report.Failure
	Duration time.Duration
}

// OK reports whether every fetch succeeded.
func (r *Result) OK() bool {
	return r != nil && len(r.Failures) == 0
}

// Hydrator loads server state into the stores once per authenticated profile.
type Hydrator struct {
	repos  *repository.Set
	stores *store.Stores
	engine *aggregate.Engine
	kvs    kv.Store
	feed   Feed
	sink   report.Sink
	logger *zap.Logger
	now    func() time.Time

	expiry      time.Duration
	concurrency int

	mu         sync.Mutex
	state      State
	identity   auth.Identity
	generation uint64
	cancel     context.CancelFunc
	details    map[string]bool

	// commitMu serialises writes of fetched batches into the stores.
	commitMu sync.Mutex
}

type Option func(*Hydrator)

func WithFeed(f Feed) Option {
	return func(h *Hydrator) { h.feed = f }
}

func WithSink(s report.Sink) Option {
	return func(h *Hydrator) { h.sink = report.OrDiscard(s) }
}

func WithLogger(l *zap.Logger) Option {
	return func(h *Hydrator) { h.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hydrator) { h.now = now }
}

// WithExpiry sets the inactivity threshold used by CheckExpiry.
func WithExpiry(d time.Duration) Option {
	return func(h *Hydrator) {
		if d > 0 {
			h.expiry = d
		}
	}
}

// WithConcurrency caps the number of in-flight fetches per fan-out level.
func WithConcurrency(n int) Option {
	return func(h *Hydrator) {
		if n > 0 {
			h.concurrency = n
		}
	}
}

func New(repos *repository.Set, stores *store.Stores, engine *aggregate.Engine, kvs kv.Store, opts ...Option) *Hydrator {
	h := &Hydrator{
		repos:       repos,
		stores:      stores,
		engine:      engine,
		kvs:         kvs,
		sink:        report.Discard{},
		logger:      zap.NewNop(),
		now:         time.Now,
		expiry:      DefaultExpiry,
		concurrency: 8,
		state:       StateIdle,
		details:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hydrator) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Identity returns the profile the session is hydrated for.
func (h *Hydrator) Identity() auth.Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

// OnAuth hydrates the stores for id. Repeated calls for the same profile
// while a load is running or finished are no-ops; a run that ended in the
// error state is retried. The feed is activated whether or not every fetch
// succeeded.
func (h *Hydrator) OnAuth(ctx context.Context, id auth.Identity) (*Result, error) {
	if id.IsZero() {
		return nil, errors.New("hydrating session: identity is required")
	}
	return h.run(ctx, id, true)
}

// Resync re-runs the bulk load for the current profile. It leaves the feed
// untouched, so it is safe to call from a reconnect callback.
func (h *Hydrator) Resync(ctx context.Context) error {
	id := h.Identity()
	if id.IsZero() {
		return nil
	}
	res, err := h.run(ctx, id, false)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("resync: %d fetches failed", len(res.Failures))
	}
	return nil
}

// SignOut invalidates any in-flight run, closes the feed and clears the stores.
func (h *Hydrator) SignOut(ctx context.Context) error {
	h.mu.Lock()
	h.generation++
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.identity = auth.Identity{}
	h.state = StateIdle
	h.details = make(map[string]bool)
	h.mu.Unlock()

	if h.feed != nil {
		h.feed.Deactivate()
	}
	h.commitMu.Lock()
	h.stores.Clear()
	h.commitMu.Unlock()
	if err := h.kvs.Remove(ctx, kv.LastActiveKey); err != nil {
		return fmt.Errorf("signing out: %w", err)
	}
	h.logger.Info("session signed out")
	return nil
}

// generation describes one started run.
type generation struct {
	n        uint64
	ctx      context.Context
	switched bool
	details  map[string]bool
}

// begin starts a new generation for id. The context is cancelled when the
// generation is superseded. With dedupe set, begin returns false instead when
// the same profile is already loading or ready; the check and the move to
// loading happen under one lock.
func (h *Hydrator) begin(ctx context.Context, id auth.Identity, dedupe bool) (generation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if dedupe && h.identity.UserID == id.UserID && (h.state == StateLoading || h.state == StateReady) {
		return generation{}, false
	}
	if h.cancel != nil {
		h.cancel()
	}
	h.generation++
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	switched := h.identity.UserID != "" && h.identity.UserID != id.UserID
	if switched {
		h.details = make(map[string]bool)
	}
	h.identity = id
	h.state = StateLoading
	details := make(map[string]bool, len(h.details))
	for k := range h.details {
		details[k] = true
	}
	return generation{n: h.generation, ctx: runCtx, switched: switched, details: details}, true
}

func (h *Hydrator) current(gen uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generation == gen
}

// finish records the outcome of generation gen if it is still current.
func (h *Hydrator) finish(gen uint64, state State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.generation != gen {
		return
	}
	h.state = state
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Hydrator) run(ctx context.Context, id auth.Identity, activate bool) (*Result, error) {
	// Sign-in runs activate the feed and skip a profile already loaded;
	// resyncs always reload.
	g, ok := h.begin(ctx, id, activate)
	if !ok {
		return &Result{UserID: id.UserID, Skipped: true}, nil
	}
	start := h.now()
	gen, runCtx, switched, details := g.n, g.ctx, g.switched, g.details

	path := PathMember
	if id.IsAdmin {
		path = PathAdmin
	}
	res := &Result{UserID: id.UserID, Path: path}
	log := h.logger.With(zap.String("user_id", id.UserID), zap.String("path", path), zap.Uint64("generation", gen))
	log.Info("hydration started")

	b := newBatch()
	l := &loader{h: h, res: res, batch: b}
	rootFailed := l.loadRoot(runCtx, id)
	if id.IsAdmin {
		l.loadAdmin(runCtx, id)
	} else {
		l.loadMember(runCtx, id, details)
	}

	err := h.commit(gen, b, switched, func() {
		res.Stats = h.engine.Run()
	})
	res.Duration = h.now().Sub(start)
	if err != nil {
		metrics.ObserveHydration(path, "superseded", res.Duration)
		log.Info("hydration superseded")
		return nil, err
	}
	res.Counts = h.stores.Counts()

	if activate && h.feed != nil {
		if err := h.feed.Activate(ctx, id.UserID); err != nil {
			l.fail(report.Failure{Kind: report.KindFetch, Op: "activate", Entity: "feed", Err: err})
		}
	}

	outcome := "ok"
	state := StateReady
	switch {
	case rootFailed:
		outcome, state = "error", StateError
	case len(res.Failures) > 0:
		outcome = "partial"
	}
	h.finish(gen, state)
	metrics.ObserveHydration(path, outcome, res.Duration)
	log.Info("hydration finished",
		zap.String("outcome", outcome),
		zap.Int("failures", len(res.Failures)),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// LoadProjectDetail loads the phase/task/material tree of one project. Admin
// sessions already hold it after hydration; member sessions load it on demand
// and keep reloading it on resync.
func (h *Hydrator) LoadProjectDetail(ctx context.Context, projectID string) (*Result, error) {
	h.mu.Lock()
	gen := h.generation
	id := h.identity
	if !id.IsZero() {
		h.details[projectID] = true
	}
	h.mu.Unlock()

	start := h.now()
	res := &Result{UserID: id.UserID, Path: PathDetail}
	b := newBatch()
	l := &loader{h: h, res: res, batch: b}
	l.loadProjectTrees(ctx, []string{projectID})

	err := h.commit(gen, b, false, func() {
		res.Stats = h.engine.Run()
	})
	res.Duration = h.now().Sub(start)
	if err != nil {
		metrics.ObserveHydration(PathDetail, "superseded", res.Duration)
		return nil, err
	}
	res.Counts = h.stores.Counts()
	outcome := "ok"
	if len(res.Failures) > 0 {
		outcome = "partial"
	}
	metrics.ObserveHydration(PathDetail, outcome, res.Duration)
	return res, nil
}

// commit writes b into the stores if generation gen is still current. The
// generation check and the writes happen under the commit lock, so a run
// superseded mid-flight never lands in the stores.
func (h *Hydrator) commit(gen uint64, b *batch, replace bool, after func()) error {
	h.commitMu.Lock()
	defer h.commitMu.Unlock()
	if !h.current(gen) {
		return ErrSuperseded
	}
	if replace {
		h.stores.Clear()
	}
	b.apply(h.stores)
	after()
	return nil
}
