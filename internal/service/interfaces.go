package service

import (
	"context"

	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/domain"
)

// Commands write to the server first, then mirror the canonical row into the
// stores and re-run the aggregate engine. Delete never returns an error:
// failures are reported to the sink and the local copy is kept.

type ProjectService interface {
	Create(ctx context.Context, p *domain.Project) error
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string)
}

type PhaseService interface {
	Create(ctx context.Context, p *domain.Phase) error
	Update(ctx context.Context, p *domain.Phase) error
	Delete(ctx context.Context, id string)
}

type TaskService interface {
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string)
}

type MaterialService interface {
	Create(ctx context.Context, m *domain.Material) error
	Update(ctx context.Context, m *domain.Material) error
	Delete(ctx context.Context, id string)
}

type RequestService interface {
	Submit(ctx context.Context, r *domain.Request) error
	Approve(ctx context.Context, actor auth.Identity, id, response string) (*domain.Request, error)
	Reject(ctx context.Context, actor auth.Identity, id, reason string) (*domain.Request, error)
	// AttachPhoto records the URL of a photo uploaded elsewhere.
	AttachPhoto(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string)
}

type TemplateService interface {
	Create(ctx context.Context, t *domain.ProjectTemplate) error
	Instantiate(ctx context.Context, templateID, projectName, ownerID string) (*domain.Project, error)
	Delete(ctx context.Context, id string)
}
