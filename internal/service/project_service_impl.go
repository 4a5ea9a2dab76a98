package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/store"
)

type projectService struct {
	core
}

func NewProjectService(d Deps, observers ...UseCaseObserver) ProjectService {
	return &projectService{core: newCore(d, observers)}
}

func (s *projectService) Create(ctx context.Context, p *domain.Project) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "create-project", startedAt, map[string]any{"name": p.Name}, err) }()

	if p.Name == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	if p.Budget < 0 {
		return fmt.Errorf("%w: project budget must not be negative", ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = domain.StatusInactive
	}
	p.CreatedAt = startedAt
	if err = s.Repos.Projects.Create(ctx, p); err != nil {
		return err
	}
	saved, err := s.Repos.Projects.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	s.apply(effects{func(st *store.Stores) error {
		return upsert(st.Projects, saved.ID, *saved, projectDerived...)
	}}, store.NameProject, p.ID)
	return nil
}

func (s *projectService) Update(ctx context.Context, p *domain.Project) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "update-project", startedAt, map[string]any{"id": p.ID}, err) }()

	if err = s.Repos.Projects.Update(ctx, p); err != nil {
		return err
	}
	saved, err := s.Repos.Projects.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	var fx effects
	fx.project(saved)
	s.apply(fx, store.NameProject, p.ID)
	return nil
}

func (s *projectService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-project", store.NameProject, id, s.Repos.Projects.Delete, func(id string) {
		dropProject(s.Stores, id)
	})
}

type phaseService struct {
	core
}

func NewPhaseService(d Deps, observers ...UseCaseObserver) PhaseService {
	return &phaseService{core: newCore(d, observers)}
}

func (s *phaseService) Create(ctx context.Context, p *domain.Phase) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "create-phase", startedAt, map[string]any{"project_id": p.ProjectID}, err) }()

	if p.Name == "" || p.ProjectID == "" {
		return fmt.Errorf("%w: phase needs a name and a project", ErrInvalidInput)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = startedAt
	if err = s.Repos.Phases.Create(ctx, p); err != nil {
		return err
	}
	return s.mirror(ctx, p.ID)
}

func (s *phaseService) Update(ctx context.Context, p *domain.Phase) (err error) {
	startedAt := time.Now().UTC()
	defer func() { s.finish(ctx, "update-phase", startedAt, map[string]any{"id": p.ID}, err) }()

	if err = s.Repos.Phases.Update(ctx, p); err != nil {
		return err
	}
	return s.mirror(ctx, p.ID)
}

func (s *phaseService) mirror(ctx context.Context, id string) error {
	saved, err := s.Repos.Phases.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.apply(effects{func(st *store.Stores) error {
		return upsert(st.Phases, saved.ID, *saved, phaseDerived...)
	}}, store.NamePhase, id)
	return nil
}

func (s *phaseService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-phase", store.NamePhase, id, s.Repos.Phases.Delete, func(id string) {
		dropPhase(s.Stores, id)
	})
}
