package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const projectColumns = `p.id, p.name, p.description, p.budget, p.spent, p.status, p.organisation_id,
	p.owner_id, p.start_date, p.end_date, p.created_at`

// SQLProjectRepo implements ProjectRepo.
type SQLProjectRepo struct{ base }

func NewProjectRepo(conn db.DBTX, d db.Dialect) *SQLProjectRepo {
	return &SQLProjectRepo{base{conn, d}}
}

func (r *SQLProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	stampCreated(&p.CreatedAt)
	if p.Status == "" {
		p.Status = domain.StatusInactive
	}
	_, err := r.exec(ctx, `INSERT INTO projects (id, name, description, budget, spent, status, organisation_id,
		owner_id, start_date, end_date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Budget, p.Spent, string(p.Status), p.OrganisationID,
		p.OwnerID, nullableTime(p.StartDate), nullableTime(p.EndDate), formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

func (r *SQLProjectRepo) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	p, err := scanProject(r.queryRow(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

func (r *SQLProjectRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error) {
	return r.list(ctx, "projects by owner",
		`SELECT `+projectColumns+` FROM projects p WHERE p.owner_id = ? ORDER BY p.created_at, p.id`, ownerID)
}

func (r *SQLProjectRepo) ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.Project, error) {
	return r.list(ctx, "projects by organisation",
		`SELECT `+projectColumns+` FROM projects p WHERE p.organisation_id = ? ORDER BY p.created_at, p.id`, organisationID)
}

func (r *SQLProjectRepo) ListForMember(ctx context.Context, profileID string) ([]*domain.Project, error) {
	return r.list(ctx, "projects for member",
		`SELECT `+projectColumns+` FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.profile_id = ? ORDER BY p.created_at, p.id`, profileID)
}

func (r *SQLProjectRepo) list(ctx context.Context, what, query string, args ...any) ([]*domain.Project, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", what, err)
	}
	return collect(rows, "projects", scanProject)
}

func (r *SQLProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	_, err := r.exec(ctx, `UPDATE projects SET name = ?, description = ?, budget = ?, spent = ?, status = ?,
		organisation_id = ?, owner_id = ?, start_date = ?, end_date = ? WHERE id = ?`,
		p.Name, p.Description, p.Budget, p.Spent, string(p.Status),
		p.OrganisationID, p.OwnerID, nullableTime(p.StartDate), nullableTime(p.EndDate), p.ID)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

func (r *SQLProjectRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}

func scanProject(s scanner) (*domain.Project, error) {
	var p domain.Project
	var status, createdAt string
	var startDate, endDate sql.NullString
	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Budget, &p.Spent, &status, &p.OrganisationID,
		&p.OwnerID, &startDate, &endDate, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Status = domain.Status(status)
	p.StartDate = parseNullableTime(startDate)
	p.EndDate = parseNullableTime(endDate)
	if p.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &p, nil
}

const projectMemberColumns = `id, project_id, profile_id, role, joined_at`

// SQLProjectMemberRepo implements ProjectMemberRepo.
type SQLProjectMemberRepo struct{ base }

func NewProjectMemberRepo(conn db.DBTX, d db.Dialect) *SQLProjectMemberRepo {
	return &SQLProjectMemberRepo{base{conn, d}}
}

func (r *SQLProjectMemberRepo) Create(ctx context.Context, m *domain.ProjectMembership) error {
	stampCreated(&m.JoinedAt)
	if m.Role == "" {
		m.Role = domain.RoleEmployee
	}
	_, err := r.exec(ctx, `INSERT INTO project_members (`+projectMemberColumns+`) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ProjectID, m.ProfileID, string(m.Role), formatTime(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("inserting project member: %w", err)
	}
	return nil
}

func (r *SQLProjectMemberRepo) GetByID(ctx context.Context, id string) (*domain.ProjectMembership, error) {
	m, err := scanProjectMember(r.queryRow(ctx, `SELECT `+projectMemberColumns+` FROM project_members WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "project member", id)
	}
	return m, nil
}

func (r *SQLProjectMemberRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.ProjectMembership, error) {
	rows, err := r.query(ctx, `SELECT `+projectMemberColumns+` FROM project_members
		WHERE project_id = ? ORDER BY joined_at, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing project members: %w", err)
	}
	return collect(rows, "project members", scanProjectMember)
}

func (r *SQLProjectMemberRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM project_members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting project member: %w", err)
	}
	return nil
}

func scanProjectMember(s scanner) (*domain.ProjectMembership, error) {
	var m domain.ProjectMembership
	var role, joinedAt string
	if err := s.Scan(&m.ID, &m.ProjectID, &m.ProfileID, &role, &joinedAt); err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	var err error
	if m.JoinedAt, err = parseTime(joinedAt, "joined_at"); err != nil {
		return nil, err
	}
	return &m, nil
}
