package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const phaseColumns = `id, project_id, name, budget, "order", created_at`

// SQLPhaseRepo implements PhaseRepo.
type SQLPhaseRepo struct{ base }

func NewPhaseRepo(conn db.DBTX, d db.Dialect) *SQLPhaseRepo {
	return &SQLPhaseRepo{base{conn, d}}
}

func (r *SQLPhaseRepo) Create(ctx context.Context, p *domain.Phase) error {
	stampCreated(&p.CreatedAt)
	_, err := r.exec(ctx, `INSERT INTO phases (`+phaseColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.ProjectID, p.Name, p.Budget, p.Order, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting phase: %w", err)
	}
	return nil
}

func (r *SQLPhaseRepo) GetByID(ctx context.Context, id string) (*domain.Phase, error) {
	p, err := scanPhase(r.queryRow(ctx, `SELECT `+phaseColumns+` FROM phases WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "phase", id)
	}
	return p, nil
}

func (r *SQLPhaseRepo) ListByProject(ctx context.Context, projectID string) ([]*domain.Phase, error) {
	rows, err := r.query(ctx, `SELECT `+phaseColumns+` FROM phases WHERE project_id = ? ORDER BY "order", id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing phases: %w", err)
	}
	return collect(rows, "phases", scanPhase)
}

func (r *SQLPhaseRepo) Update(ctx context.Context, p *domain.Phase) error {
	_, err := r.exec(ctx, `UPDATE phases SET name = ?, budget = ?, "order" = ? WHERE id = ?`,
		p.Name, p.Budget, p.Order, p.ID)
	if err != nil {
		return fmt.Errorf("updating phase: %w", err)
	}
	return nil
}

func (r *SQLPhaseRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM phases WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting phase: %w", err)
	}
	return nil
}

func scanPhase(s scanner) (*domain.Phase, error) {
	var p domain.Phase
	var createdAt string
	if err := s.Scan(&p.ID, &p.ProjectID, &p.Name, &p.Budget, &p.Order, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
