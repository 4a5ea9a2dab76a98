package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

type taskService struct {
	core
}

func NewTaskService(d Deps, observers ...UseCaseObserver) TaskService {
	return &taskService{core: newCore(d, observers)}
}

func (s *taskService) Create(ctx context.Context, t *domain.Task) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "create-task", startedAt, map[string]any{"phase_id": t.PhaseID}, err) }()

	if t.Name == "" || t.PhaseID == "" {
		return fmt.Errorf("%w: task needs a name and a phase", ErrInvalidInput)
	}
	if t.Spent < 0 || t.PlannedBudget < 0 {
		return fmt.Errorf("%w: task amounts must not be negative", ErrInvalidInput)
	}
	if t.ProjectID == "" {
		phase, perr := s.Repos.Phases.GetByID(ctx, t.PhaseID)
		if perr != nil {
			return fmt.Errorf("resolving task phase: %w", perr)
		}
		t.ProjectID = phase.ProjectID
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = domain.StatusInactive
	}
	t.CreatedAt = startedAt
	if err = s.Repos.Tasks.Create(ctx, t); err != nil {
		return err
	}
	return s.mirror(ctx, t.ID)
}

// Update writes everything but spend, which only moves through approved
// payment requests.
func (s *taskService) Update(ctx context.Context, t *domain.Task) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "update-task", startedAt, map[string]any{"id": t.ID}, err) }()

	if err = s.Repos.Tasks.Update(ctx, t); err != nil {
		return err
	}
	return s.mirror(ctx, t.ID)
}

func (s *taskService) mirror(ctx context.Context, id string) error {
	saved, err := s.Repos.Tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var fx effects
	fx.task(saved)
	s.apply(fx, store.NameTask, id)
	return nil
}

func (s *taskService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-task", store.NameTask, id, s.Repos.Tasks.Delete, func(id string) {
		dropTask(s.Stores, id)
	})
}

type materialService struct {
	core
}

func NewMaterialService(d Deps, observers ...UseCaseObserver) MaterialService {
	return &materialService{core: newCore(d, observers)}
}

func (s *materialService) Create(ctx context.Context, m *domain.Material) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "create-material", startedAt, map[string]any{"task_id": m.TaskID}, err) }()

	if m.Name == "" || m.TaskID == "" {
		return fmt.Errorf("%w: material needs a name and a task", ErrInvalidInput)
	}
	if m.PlannedQuantity < 0 || m.UnitCost < 0 {
		return fmt.Errorf("%w: material quantities must not be negative", ErrInvalidInput)
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = startedAt
	if err = s.Repos.Materials.Create(ctx, m); err != nil {
		return err
	}
	return s.mirror(ctx, m.ID)
}

func (s *materialService) Update(ctx context.Context, m *domain.Material) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "update-material", startedAt, map[string]any{"id": m.ID}, err) }()

	if err = s.Repos.Materials.Update(ctx, m); err != nil {
		return err
	}
	return s.mirror(ctx, m.ID)
}

func (s *materialService) mirror(ctx context.Context, id string) error {
	saved, err := s.Repos.Materials.GetByID(ctx, id)
	if err != nil {
		return err
	}
	var fx effects
	fx.material(saved)
	s.apply(fx, store.NameMaterial, id)
	return nil
}

func (s *materialService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-material", store.NameMaterial, id, s.Repos.Materials.Delete, s.Stores.Materials.Delete)
}
