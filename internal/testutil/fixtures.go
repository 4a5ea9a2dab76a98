package testutil

import (
	"time"

	"github.com/alexanderramin/sitesync/internal/domain"
	"github.com/google/uuid"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Profile options
type ProfileOption func(*domain.Profile)

func AsAdmin() ProfileOption {
	return func(p *domain.Profile) { p.IsAdmin = true }
}

func WithEmail(email string) ProfileOption {
	return func(p *domain.Profile) { p.Email = email }
}

func NewTestProfile(name string, opts ...ProfileOption) *domain.Profile {
	p := &domain.Profile{
		ID:        uuid.New().String(),
		FullName:  name,
		CreatedAt: now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func NewTestOrganisation(name, ownerID string) *domain.Organisation {
	return &domain.Organisation{
		ID:        uuid.New().String(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: now(),
	}
}

// Project options
type ProjectOption func(*domain.Project)

func WithBudget(budget, spent float64) ProjectOption {
	return func(p *domain.Project) {
		p.Budget = budget
		p.Spent = spent
	}
}

func WithProjectStatus(s domain.Status) ProjectOption {
	return func(p *domain.Project) { p.Status = s }
}

func WithDates(start, end time.Time) ProjectOption {
	return func(p *domain.Project) {
		p.StartDate = &start
		p.EndDate = &end
	}
}

func NewTestProject(name, organisationID, ownerID string, opts ...ProjectOption) *domain.Project {
	p := &domain.Project{
		ID:             uuid.New().String(),
		Name:           name,
		OrganisationID: organisationID,
		OwnerID:        ownerID,
		Status:         domain.StatusActive,
		CreatedAt:      now(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func NewTestPhase(projectID, name string, order int) *domain.Phase {
	return &domain.Phase{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Name:      name,
		Order:     order,
		CreatedAt: now(),
	}
}

// Task options
type TaskOption func(*domain.Task)

func WithTaskStatus(s domain.Status) TaskOption {
	return func(t *domain.Task) { t.Status = s }
}

func WithSpent(spent float64) TaskOption {
	return func(t *domain.Task) { t.Spent = spent }
}

func WithPlannedBudget(b float64) TaskOption {
	return func(t *domain.Task) { t.PlannedBudget = b }
}

func WithDuration(days int) TaskOption {
	return func(t *domain.Task) { t.EstimatedDuration = days }
}

func AssignedTo(profileID string) TaskOption {
	return func(t *domain.Task) { t.AssignedTo = &profileID }
}

func NewTestTask(phase *domain.Phase, name string, opts ...TaskOption) *domain.Task {
	t := &domain.Task{
		ID:        uuid.New().String(),
		PhaseID:   phase.ID,
		ProjectID: phase.ProjectID,
		Name:      name,
		Status:    domain.StatusInactive,
		CreatedAt: now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func NewTestMaterial(taskID, name string, quantity, unitCost float64) *domain.Material {
	return &domain.Material{
		ID:              uuid.New().String(),
		TaskID:          taskID,
		Name:            name,
		PlannedQuantity: quantity,
		UnitCost:        unitCost,
		Unit:            "unit",
		CreatedAt:       now(),
	}
}

func NewTestOrganisationMember(organisationID, profileID string, role domain.Role) *domain.OrganisationMembership {
	return &domain.OrganisationMembership{
		ID:             uuid.New().String(),
		OrganisationID: organisationID,
		ProfileID:      profileID,
		Role:           role,
		JoinedAt:       now(),
	}
}

func NewTestProjectMember(projectID, profileID string, role domain.Role) *domain.ProjectMembership {
	return &domain.ProjectMembership{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		ProfileID: profileID,
		Role:      role,
		JoinedAt:  now(),
	}
}

// NewTestRequest builds a pending request with data encoded as its payload.
func NewTestRequest(typ domain.RequestType, from, to string, data any) *domain.Request {
	raw, err := domain.EncodeRequestData(data)
	if err != nil {
		panic(err)
	}
	return &domain.Request{
		ID:          uuid.New().String(),
		Type:        typ,
		RequestedBy: from,
		RequestedTo: to,
		Status:      domain.RequestPending,
		RequestData: raw,
		CreatedAt:   now(),
	}
}

func NewTestTemplate(organisationID, name string, phases ...domain.TemplatePhase) *domain.ProjectTemplate {
	return &domain.ProjectTemplate{
		ID:             uuid.New().String(),
		OrganisationID: organisationID,
		Name:           name,
		Phases:         phases,
		CreatedAt:      now(),
	}
}
