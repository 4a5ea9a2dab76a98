package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/store"
)

// Deps are the collaborators shared by every command service.
type Deps struct {
	Repos   *repository.Set
	Stores  *store.Stores
	Engine  *aggregate.Engine
	UoW     db.UnitOfWork
	Dialect db.Dialect
	Sink    report.Sink
}

// Derived JSON fields that a server row never carries. They are stripped
// before a canonical row is merged into the store.
var (
	projectDerived = []string{"progress", "total_tasks", "completed_tasks", "phase_ids", "member_ids"}
	phaseDerived   = []string{"spent", "estimated_duration", "status", "total_tasks", "completed_tasks", "task_ids"}
	taskDerived    = []string{"material_ids"}
)

type core struct {
	Deps
	observer UseCaseObserver
}

func newCore(d Deps, observers []UseCaseObserver) core {
	d.Sink = report.OrDiscard(d.Sink)
	return core{Deps: d, observer: observersWithMetrics(observers)}
}

func (c core) finish(ctx context.Context, name string, startedAt time.Time, fields map[string]any, err error) {
	d := time.Since(startedAt)
	c.observer.ObserveUseCase(ctx, UseCaseEvent{
		Name:      name,
		StartedAt: startedAt,
		Duration:  d,
		Success:   err == nil,
		Err:       err,
		Fields:    fields,
	})
}

// remove deletes on the server and, only if that worked, locally. Failures
// are reported and swallowed.
func (c core) remove(ctx context.Context, name, entity, id string, del func(context.Context, string) error, local func(string)) {
	startedAt := time.Now().UTC()
	err := del(ctx, id)
	c.finish(ctx, name, startedAt, map[string]any{"id": id}, err)
	if err != nil {
		c.Sink.Report(report.Failure{Kind: report.KindCommand, Op: "delete", Entity: entity, ID: id, Err: err})
		return
	}
	local(id)
	c.Engine.Run()
}

// upsert merges the server columns of row into the stored entry, keeping
// derived fields, or adds row when the entry is not present yet.
func upsert[T any](s *store.Store[T], id string, row T, derived ...string) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding %s %s: %w", s.Name(), id, err)
	}
	patch, err := store.PatchFromJSON(raw)
	if err != nil {
		return err
	}
	for _, k := range derived {
		delete(patch, k)
	}
	ok, err := s.Update(id, patch)
	if err != nil {
		return err
	}
	if !ok {
		s.Add(row)
	}
	return nil
}

// effects are store writes deferred until the server transaction commits.
type effects []func(*store.Stores) error

func (fx *effects) add(fn func(*store.Stores) error) {
	*fx = append(*fx, fn)
}

func (fx *effects) task(t *domain.Task) {
	row := *t
	fx.add(func(s *store.Stores) error { return upsert(s.Tasks, row.ID, row, taskDerived...) })
}

func (fx *effects) project(p *domain.Project) {
	row := *p
	fx.add(func(s *store.Stores) error { return upsert(s.Projects, row.ID, row, projectDerived...) })
}

func (fx *effects) material(m *domain.Material) {
	row := *m
	fx.add(func(s *store.Stores) error { return upsert(s.Materials, row.ID, row) })
}

func (fx *effects) request(r *domain.Request) {
	row := *r
	fx.add(func(s *store.Stores) error { return upsert(s.Requests, row.ID, row) })
}

// apply runs the deferred writes and the engine. Store errors are reported
// as consistency failures; the server already holds the data.
func (c core) apply(fx effects, entity, id string) {
	for _, fn := range fx {
		if err := fn(c.Stores); err != nil {
			c.Sink.Report(report.Failure{Kind: report.KindConsistency, Op: "apply", Entity: entity, ID: id, Err: err})
		}
	}
	c.Engine.Run()
}

// The server cascades deletes down the project tree; these mirror that in
// the stores so no orphan survives until the next hydration.

func dropTask(s *store.Stores, id string) {
	for _, m := range s.Materials.ByForeignKey(id) {
		s.Materials.Delete(m.ID)
	}
	s.Tasks.Delete(id)
}

func dropPhase(s *store.Stores, id string) {
	for _, t := range s.Tasks.ByForeignKey(id) {
		dropTask(s, t.ID)
	}
	s.Phases.Delete(id)
}

func dropProject(s *store.Stores, id string) {
	for _, ph := range s.Phases.ByForeignKey(id) {
		dropPhase(s, ph.ID)
	}
	for _, m := range s.ProjectMembers.ByForeignKey(id) {
		s.ProjectMembers.Delete(m.ID)
	}
	s.Projects.Delete(id)
}
