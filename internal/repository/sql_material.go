package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const materialColumns = `id, task_id, name, planned_quantity, used_quantity, unit_cost, unit, requested,
	approved, delivered_quantity, waste_quantity, created_at`

// SQLMaterialRepo implements MaterialRepo.
type SQLMaterialRepo struct{ base }

func NewMaterialRepo(conn db.DBTX, d db.Dialect) *SQLMaterialRepo {
	return &SQLMaterialRepo{base{conn, d}}
}

func (r *SQLMaterialRepo) Create(ctx context.Context, m *domain.Material) error {
	stampCreated(&m.CreatedAt)
	_, err := r.exec(ctx, `INSERT INTO materials (`+materialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TaskID, m.Name, m.PlannedQuantity, m.UsedQuantity, m.UnitCost, m.Unit, m.Requested,
		m.Approved, m.DeliveredQuantity, m.WasteQuantity, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting material: %w", err)
	}
	return nil
}

func (r *SQLMaterialRepo) GetByID(ctx context.Context, id string) (*domain.Material, error) {
	m, err := scanMaterial(r.queryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "material", id)
	}
	return m, nil
}

func (r *SQLMaterialRepo) ListByTask(ctx context.Context, taskID string) ([]*domain.Material, error) {
	rows, err := r.query(ctx, `SELECT `+materialColumns+` FROM materials WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("listing materials: %w", err)
	}
	return collect(rows, "materials", scanMaterial)
}

func (r *SQLMaterialRepo) Update(ctx context.Context, m *domain.Material) error {
	_, err := r.exec(ctx, `UPDATE materials SET name = ?, planned_quantity = ?, used_quantity = ?, unit_cost = ?,
		unit = ?, requested = ?, approved = ?, delivered_quantity = ?, waste_quantity = ? WHERE id = ?`,
		m.Name, m.PlannedQuantity, m.UsedQuantity, m.UnitCost, m.Unit, m.Requested, m.Approved,
		m.DeliveredQuantity, m.WasteQuantity, m.ID)
	if err != nil {
		return fmt.Errorf("updating material: %w", err)
	}
	return nil
}

func (r *SQLMaterialRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM materials WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting material: %w", err)
	}
	return nil
}

func scanMaterial(s scanner) (*domain.Material, error) {
	var m domain.Material
	var createdAt string
	err := s.Scan(&m.ID, &m.TaskID, &m.Name, &m.PlannedQuantity, &m.UsedQuantity, &m.UnitCost, &m.Unit,
		&m.Requested, &m.Approved, &m.DeliveredQuantity, &m.WasteQuantity, &createdAt)
	if err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &m, nil
}

const pricingColumns = `id, organisation_id, name, unit, unit_cost, created_at`

// SQLMaterialPricingRepo implements MaterialPricingRepo.
type SQLMaterialPricingRepo struct{ base }

func NewMaterialPricingRepo(conn db.DBTX, d db.Dialect) *SQLMaterialPricingRepo {
	return &SQLMaterialPricingRepo{base{conn, d}}
}

func (r *SQLMaterialPricingRepo) Create(ctx context.Context, m *domain.MaterialPricing) error {
	stampCreated(&m.CreatedAt)
	_, err := r.exec(ctx, `INSERT INTO material_pricing (`+pricingColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrganisationID, m.Name, m.Unit, m.UnitCost, formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting material pricing: %w", err)
	}
	return nil
}

func (r *SQLMaterialPricingRepo) ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.MaterialPricing, error) {
	rows, err := r.query(ctx, `SELECT `+pricingColumns+` FROM material_pricing WHERE organisation_id = ? ORDER BY name, id`, organisationID)
	if err != nil {
		return nil, fmt.Errorf("listing material pricing: %w", err)
	}
	return collect(rows, "material pricing", scanPricing)
}

func (r *SQLMaterialPricingRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM material_pricing WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting material pricing: %w", err)
	}
	return nil
}

func scanPricing(s scanner) (*domain.MaterialPricing, error) {
	var m domain.MaterialPricing
	var createdAt string
	if err := s.Scan(&m.ID, &m.OrganisationID, &m.Name, &m.Unit, &m.UnitCost, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if m.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &m, nil
}
