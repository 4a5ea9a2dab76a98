package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const templateColumns = `id, organisation_id, name, phases, created_at`

// SQLProjectTemplateRepo implements ProjectTemplateRepo. Template phases are
// stored as one JSON document.
type SQLProjectTemplateRepo struct{ base }

func NewProjectTemplateRepo(conn db.DBTX, d db.Dialect) *SQLProjectTemplateRepo {
	return &SQLProjectTemplateRepo{base{conn, d}}
}

func (r *SQLProjectTemplateRepo) Create(ctx context.Context, t *domain.ProjectTemplate) error {
	stampCreated(&t.CreatedAt)
	phases, err := json.Marshal(t.Phases)
	if err != nil {
		return fmt.Errorf("encoding template phases: %w", err)
	}
	_, err = r.exec(ctx, `INSERT INTO project_templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.OrganisationID, t.Name, jsonArg(phases), formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting project template: %w", err)
	}
	return nil
}

func (r *SQLProjectTemplateRepo) GetByID(ctx context.Context, id string) (*domain.ProjectTemplate, error) {
	t, err := scanTemplate(r.queryRow(ctx, `SELECT `+templateColumns+` FROM project_templates WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "project template", id)
	}
	return t, nil
}

func (r *SQLProjectTemplateRepo) ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.ProjectTemplate, error) {
	rows, err := r.query(ctx, `SELECT `+templateColumns+` FROM project_templates WHERE organisation_id = ? ORDER BY name, id`, organisationID)
	if err != nil {
		return nil, fmt.Errorf("listing project templates: %w", err)
	}
	return collect(rows, "project templates", scanTemplate)
}

func (r *SQLProjectTemplateRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM project_templates WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting project template: %w", err)
	}
	return nil
}

func scanTemplate(s scanner) (*domain.ProjectTemplate, error) {
	var t domain.ProjectTemplate
	var createdAt string
	var phases []byte
	err := s.Scan(&t.ID, &t.OrganisationID, &t.Name, &phases, &createdAt)
	if err != nil {
		return nil, err
	}
	if len(phases) > 0 {
		if err := json.Unmarshal(phases, &t.Phases); err != nil {
			return nil, fmt.Errorf("decoding template phases: %w", err)
		}
	}
	if t.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &t, nil
}
