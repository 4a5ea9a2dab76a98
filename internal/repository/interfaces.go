package repository

import (
	"context"

	"github.com/alexanderramin/sitesync/internal/domain"
)

type ProfileRepo interface {
	Create(ctx context.Context, p *domain.Profile) error
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context) ([]*domain.Profile, error)
	Update(ctx context.Context, p *domain.Profile) error
}

type OrganisationRepo interface {
	Create(ctx context.Context, o *domain.Organisation) error
	GetByID(ctx context.Context, id string) (*domain.Organisation, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Organisation, error)
	ListForMember(ctx context.Context, profileID string) ([]*domain.Organisation, error)
	Update(ctx context.Context, o *domain.Organisation) error
	Delete(ctx context.Context, id string) error
}

type OrganisationMemberRepo interface {
	Create(ctx context.Context, m *domain.OrganisationMembership) error
	GetByID(ctx context.Context, id string) (*domain.OrganisationMembership, error)
	ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.OrganisationMembership, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	Delete(ctx context.Context, id string) error
}

type ProjectRepo interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error)
	ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.Project, error)
	ListForMember(ctx context.Context, profileID string) ([]*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
}

type ProjectMemberRepo interface {
	Create(ctx context.Context, m *domain.ProjectMembership) error
	GetByID(ctx context.Context, id string) (*domain.ProjectMembership, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.ProjectMembership, error)
	Delete(ctx context.Context, id string) error
}

type PhaseRepo interface {
	Create(ctx context.Context, p *domain.Phase) error
	GetByID(ctx context.Context, id string) (*domain.Phase, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error)
	Update(ctx context.Context, p *domain.Phase) error
	Delete(ctx context.Context, id string) error
}

type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByPhase(ctx context.Context, phaseID string) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	// AddSpend adds amount to the stored spend; concurrent payments accumulate.
	AddSpend(ctx context.Context, id string, amount float64) error
	Delete(ctx context.Context, id string) error
}

type MaterialRepo interface {
	Create(ctx context.Context, m *domain.Material) error
	GetByID(ctx context.Context, id string) (*domain.Material, error)
	ListByTask(ctx context.Context, taskID string) ([]*domain.Material, error)
	Update(ctx context.Context, m *domain.Material) error
	Delete(ctx context.Context, id string) error
}

type RequestRepo interface {
	Create(ctx context.Context, r *domain.Request) error
	GetByID(ctx context.Context, id string) (*domain.Request, error)
	// ListForUser returns requests sent to or by the profile.
	ListForUser(ctx context.Context, profileID string) ([]*domain.Request, error)
	UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, response string) error
	SetPhotoURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

type MaterialPricingRepo interface {
	Create(ctx context.Context, m *domain.MaterialPricing) error
	ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.MaterialPricing, error)
	Delete(ctx context.Context, id string) error
}

type ProjectTemplateRepo interface {
	Create(ctx context.Context, t *domain.ProjectTemplate) error
	GetByID(ctx context.Context, id string) (*domain.ProjectTemplate, error)
	ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.ProjectTemplate, error)
	Delete(ctx context.Context, id string) error
}
