package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/store"
)

type templateService struct {
	core
}

func NewTemplateService(d Deps, observers ...UseCaseObserver) TemplateService {
	return &templateService{core: newCore(d, observers)}
}

func (s *templateService) Create(ctx context.Context, t *domain.ProjectTemplate) (err error) {
	startedAt := time.Now().UTC()
	defer func() {
		s.finish(ctx, "create-template", startedAt, map[string]any{"name": t.Name, "phase_count": len(t.Phases)}, err)
	}()

	if err = validateTemplate(t); err != nil {
		return err
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = startedAt
	if err = s.Repos.Templates.Create(ctx, t); err != nil {
		return err
	}
	row := *t
	s.apply(effects{func(st *store.Stores) error {
		st.Templates.Add(row)
		return nil
	}}, store.NameProjectTemplate, t.ID)
	return nil
}

// Instantiate creates a project with the template's phases and tasks in one
// transaction. The project budget is the sum of the phase budgets.
func (s *templateService) Instantiate(ctx context.Context, templateID, projectName, ownerID string) (project *domain.Project, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"template": templateID,
		"project":  projectName,
	}
	defer func() { s.finish(ctx, "instantiate-template", startedAt, fields, err) }()

	if projectName == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: project name and owner are required", ErrInvalidInput)
	}

	var phases []domain.Phase
	var tasks []domain.Task
	err = s.UoW.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		repos := repository.NewSet(tx, s.Dialect)
		tmpl, err := repos.Templates.GetByID(ctx, templateID)
		if err != nil {
			return err
		}

		project = &domain.Project{
			ID:             uuid.New().String(),
			Name:           projectName,
			Budget:         tmpl.TotalBudget(),
			Status:         domain.StatusInactive,
			OrganisationID: tmpl.OrganisationID,
			OwnerID:        ownerID,
			CreatedAt:      startedAt,
		}
		if err := repos.Projects.Create(ctx, project); err != nil {
			return fmt.Errorf("creating project: %w", err)
		}

		for i, tp := range tmpl.Phases {
			phase := domain.Phase{
				ID:        uuid.New().String(),
				ProjectID: project.ID,
				Name:      tp.Name,
				Budget:    tp.Budget,
				Order:     i + 1,
				CreatedAt: startedAt,
			}
			if err := repos.Phases.Create(ctx, &phase); err != nil {
				return fmt.Errorf("creating phase '%s': %w", tp.Name, err)
			}
			phases = append(phases, phase)

			for _, tt := range tp.Tasks {
				task := domain.Task{
					ID:                uuid.New().String(),
					PhaseID:           phase.ID,
					ProjectID:         project.ID,
					Name:              tt.Name,
					Status:            domain.StatusInactive,
					PlannedBudget:     tt.PlannedBudget,
					EstimatedDuration: tt.EstimatedDuration,
					CreatedAt:         startedAt,
				}
				if err := repos.Tasks.Create(ctx, &task); err != nil {
					return fmt.Errorf("creating task '%s': %w", tt.Name, err)
				}
				tasks = append(tasks, task)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["phase_count"] = len(phases)
	fields["task_count"] = len(tasks)

	row := *project
	s.apply(effects{func(st *store.Stores) error {
		st.Projects.Add(row)
		st.Phases.Set(phases)
		st.Tasks.Set(tasks)
		return nil
	}}, store.NameProject, project.ID)
	return project, nil
}

func (s *templateService) Delete(ctx context.Context, id string) {
	s.remove(ctx, "delete-template", store.NameProjectTemplate, id, s.Repos.Templates.Delete, s.Stores.Templates.Delete)
}

func validateTemplate(t *domain.ProjectTemplate) error {
	if t.Name == "" || t.OrganisationID == "" {
		return fmt.Errorf("%w: template needs a name and an organisation", ErrInvalidInput)
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("%w: template '%s' has no phases", ErrInvalidInput, t.Name)
	}
	for _, p := range t.Phases {
		if p.Name == "" {
			return fmt.Errorf("%w: template '%s' has an unnamed phase", ErrInvalidInput, t.Name)
		}
		if p.Budget < 0 {
			return fmt.Errorf("%w: phase '%s' budget must not be negative", ErrInvalidInput, p.Name)
		}
	}
	return nil
}

// templateFile is the YAML layout accepted by LoadTemplateFile.
type templateFile struct {
	Name   string `yaml:"name"`
	Phases []struct {
		Name   string  `yaml:"name"`
		Budget float64 `yaml:"budget"`
		Tasks  []struct {
			Name     string  `yaml:"name"`
			Budget   float64 `yaml:"budget"`
			Duration int     `yaml:"duration"`
		} `yaml:"tasks"`
	} `yaml:"phases"`
}

// LoadTemplateFile reads a YAML template definition for organisationID.
func LoadTemplateFile(path, organisationID string) (*domain.ProjectTemplate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}
	return ParseTemplate(raw, organisationID)
}

// ParseTemplate decodes a YAML template definition and validates it.
func ParseTemplate(raw []byte, organisationID string) (*domain.ProjectTemplate, error) {
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	t := &domain.ProjectTemplate{OrganisationID: organisationID, Name: f.Name}
	for _, p := range f.Phases {
		tp := domain.TemplatePhase{Name: p.Name, Budget: p.Budget}
		for _, task := range p.Tasks {
			tp.Tasks = append(tp.Tasks, domain.TemplateTask{
				Name:              task.Name,
				PlannedBudget:     task.Budget,
				EstimatedDuration: task.Duration,
			})
		}
		t.Phases = append(t.Phases, tp)
	}
	if err := validateTemplate(t); err != nil {
		return nil, err
	}
	return t, nil
}
