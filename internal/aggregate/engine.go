// Package aggregate derives phase and project figures from the task store.
//
// A run has two passes. Reconcile rebuilds every parent id-list from the
// children's foreign keys, so id-lists are never an independent source of
// truth. Recompute then folds tasks into phases and phases into projects.
package aggregate

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/metrics"
	"github.com/alexanderramin/sitesync/internal/store"
	"go.uber.org/zap"
)

// EmptyPhasePolicy decides what happens to a phase with no resolved tasks.
type EmptyPhasePolicy string

const (
	// KeepEmptyPhase leaves the phase's last-known aggregate in place.
	KeepEmptyPhase EmptyPhasePolicy = "keep"
	// ResetEmptyPhase zeroes the phase's aggregate.
	ResetEmptyPhase EmptyPhasePolicy = "reset"
)

// ParseEmptyPhasePolicy maps a configured value onto a policy.
func ParseEmptyPhasePolicy(s string) (EmptyPhasePolicy, error) {
	switch EmptyPhasePolicy(s) {
	case "", KeepEmptyPhase:
		return KeepEmptyPhase, nil
	case ResetEmptyPhase:
		return ResetEmptyPhase, nil
	}
	return "", fmt.Errorf("unknown empty phase policy %q", s)
}

// Stats summarises one run.
type Stats struct {
	ListsRebuilt    int
	PhasesUpdated   int
	ProjectsUpdated int
	Duration        time.Duration
}

// Engine recomputes derived figures in place. Runs are serialized.
type Engine struct {
	stores *store.Stores
	policy EmptyPhasePolicy
	logger *zap.Logger

	mu sync.Mutex
}

type Option func(*Engine)

func WithEmptyPhasePolicy(p EmptyPhasePolicy) Option {
	return func(e *Engine) { e.policy = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(stores *store.Stores, opts ...Option) *Engine {
	e := &Engine{stores: stores, policy: KeepEmptyPhase, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reconciles id-lists and recomputes aggregates. Running it twice on
// unchanged stores yields identical results.
func (e *Engine) Run() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	st := Stats{ListsRebuilt: e.reconcile()}
	st.PhasesUpdated, st.ProjectsUpdated = e.recompute()
	st.Duration = time.Since(start)

	metrics.ObserveRecompute(st.Duration)
	e.logger.Debug("aggregates recomputed",
		zap.Int("lists_rebuilt", st.ListsRebuilt),
		zap.Int("phases_updated", st.PhasesUpdated),
		zap.Int("projects_updated", st.ProjectsUpdated),
		zap.Duration("duration", st.Duration),
	)
	return st
}

// Reconcile rebuilds the derived id-lists only.
func (e *Engine) Reconcile() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconcile()
}

func (e *Engine) reconcile() int {
	s := e.stores
	n := 0

	for _, ph := range s.Phases.All() {
		ids := taskIDs(s.Tasks.ByForeignKey(ph.ID))
		if !slices.Equal(ph.TaskIDs, ids) {
			s.Phases.Mutate(ph.ID, func(p *domain.Phase) { p.TaskIDs = ids })
			n++
		}
	}

	for _, t := range s.Tasks.All() {
		var ids []string
		for _, m := range s.Materials.ByForeignKey(t.ID) {
			ids = append(ids, m.ID)
		}
		if !slices.Equal(t.MaterialIDs, ids) {
			s.Tasks.Mutate(t.ID, func(t *domain.Task) { t.MaterialIDs = ids })
			n++
		}
	}

	for _, p := range s.Projects.All() {
		phases := s.Phases.ByForeignKey(p.ID)
		domain.SortPhases(phases)
		var phaseIDs []string
		for _, ph := range phases {
			phaseIDs = append(phaseIDs, ph.ID)
		}
		memberIDs := profileIDs(s.ProjectMembers.ByForeignKey(p.ID), func(m domain.ProjectProfile) string { return m.ProfileID })
		if !slices.Equal(p.PhaseIDs, phaseIDs) || !slices.Equal(p.MemberIDs, memberIDs) {
			s.Projects.Mutate(p.ID, func(p *domain.Project) {
				p.PhaseIDs = phaseIDs
				p.MemberIDs = memberIDs
			})
			n++
		}
	}

	for _, o := range s.Organisations.All() {
		var projectIDs []string
		for _, p := range s.Projects.ByForeignKey(o.ID) {
			projectIDs = append(projectIDs, p.ID)
		}
		memberIDs := profileIDs(s.OrganisationMembers.ByForeignKey(o.ID), func(m domain.OrganisationProfile) string { return m.ProfileID })
		if !slices.Equal(o.ProjectIDs, projectIDs) || !slices.Equal(o.MemberIDs, memberIDs) {
			s.Organisations.Mutate(o.ID, func(o *domain.Organisation) {
				o.ProjectIDs = projectIDs
				o.MemberIDs = memberIDs
			})
			n++
		}
	}
	return n
}

// Recompute folds tasks into phases and phases into projects without
// touching id-lists.
func (e *Engine) Recompute() (phases, projects int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recompute()
}

type phaseAggregate struct {
	spent     float64
	duration  int
	status    []domain.Status
	total     int
	completed int
}

func (a phaseAggregate) equal(p domain.Phase) bool {
	return a.spent == p.Spent && a.duration == p.EstimatedDuration &&
		a.total == p.TotalTasks && a.completed == p.CompletedTasks &&
		slices.Equal(a.status, p.Status)
}

func (e *Engine) recompute() (int, int) {
	s := e.stores
	phasesUpdated := 0

	for _, ph := range s.Phases.All() {
		var agg phaseAggregate
		var statuses []domain.Status
		for _, id := range ph.TaskIDs {
			t, ok := s.Tasks.Get(id)
			if !ok {
				continue
			}
			agg.spent += t.Spent
			agg.duration += t.EstimatedDuration
			agg.total++
			if t.IsCompleted() {
				agg.completed++
			}
			statuses = append(statuses, t.Status)
		}
		if agg.total == 0 && e.policy == KeepEmptyPhase {
			continue
		}
		agg.status = domain.StatusSet(statuses)
		if agg.equal(ph) {
			continue
		}
		s.Phases.Mutate(ph.ID, func(p *domain.Phase) {
			p.Spent = agg.spent
			p.EstimatedDuration = agg.duration
			p.Status = agg.status
			p.TotalTasks = agg.total
			p.CompletedTasks = agg.completed
		})
		phasesUpdated++
	}

	projectsUpdated := 0
	for _, p := range s.Projects.All() {
		total, completed := 0, 0
		for _, id := range p.PhaseIDs {
			ph, ok := s.Phases.Get(id)
			if !ok {
				continue
			}
			total += ph.TotalTasks
			completed += ph.CompletedTasks
		}
		progress := domain.ProgressFor(completed, total)
		if p.TotalTasks == total && p.CompletedTasks == completed && p.Progress == progress {
			continue
		}
		s.Projects.Mutate(p.ID, func(p *domain.Project) {
			p.TotalTasks = total
			p.CompletedTasks = completed
			p.Progress = progress
		})
		projectsUpdated++
	}
	return phasesUpdated, projectsUpdated
}

func taskIDs(tasks []domain.Task) []string {
	var ids []string
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func profileIDs[T any](members []T, profile func(T) string) []string {
	seen := make(map[string]bool, len(members))
	var ids []string
	for _, m := range members {
		id := profile(m)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
