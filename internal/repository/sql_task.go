package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const taskColumns = `id, phase_id, project_id, name, description, assigned_to, status, planned_budget,
	spent, estimated_duration, payment_completed, materials_completed, completion_notes,
	rejection_reason, created_at`

// SQLTaskRepo implements TaskRepo.
type SQLTaskRepo struct{ base }

func NewTaskRepo(conn db.DBTX, d db.Dialect) *SQLTaskRepo {
	return &SQLTaskRepo{base{conn, d}}
}

func (r *SQLTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	stampCreated(&t.CreatedAt)
	if t.Status == "" {
		t.Status = domain.StatusInactive
	}
	_, err := r.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.PhaseID, t.ProjectID, t.Name, t.Description, nullableString(t.AssignedTo), string(t.Status),
		t.PlannedBudget, t.Spent, t.EstimatedDuration, t.PaymentCompleted, t.MaterialsCompleted,
		t.CompletionNotes, t.RejectionReason, formatTime(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (r *SQLTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	t, err := scanTask(r.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (r *SQLTaskRepo) ListByPhase(ctx context.Context, phaseID string) ([]*domain.Task, error) {
	rows, err := r.query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE phase_id = ? ORDER BY created_at, id`, phaseID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return collect(rows, "tasks", scanTask)
}

// Update writes every column except spent, which only AddSpend changes.
func (r *SQLTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	_, err := r.exec(ctx, `UPDATE tasks SET phase_id = ?, name = ?, description = ?, assigned_to = ?, status = ?,
		planned_budget = ?, estimated_duration = ?, payment_completed = ?, materials_completed = ?,
		completion_notes = ?, rejection_reason = ? WHERE id = ?`,
		t.PhaseID, t.Name, t.Description, nullableString(t.AssignedTo), string(t.Status),
		t.PlannedBudget, t.EstimatedDuration, t.PaymentCompleted, t.MaterialsCompleted,
		t.CompletionNotes, t.RejectionReason, t.ID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

func (r *SQLTaskRepo) AddSpend(ctx context.Context, id string, amount float64) error {
	res, err := r.exec(ctx, `UPDATE tasks SET spent = spent + ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("adding task spend: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLTaskRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func scanTask(s scanner) (*domain.Task, error) {
	var t domain.Task
	var status, createdAt string
	var assignedTo sql.NullString
	err := s.Scan(&t.ID, &t.PhaseID, &t.ProjectID, &t.Name, &t.Description, &assignedTo, &status,
		&t.PlannedBudget, &t.Spent, &t.EstimatedDuration, &t.PaymentCompleted, &t.MaterialsCompleted,
		&t.CompletionNotes, &t.RejectionReason, &createdAt)
	if err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	t.AssignedTo = stringPtr(assignedTo)
	if t.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &t, nil
}
