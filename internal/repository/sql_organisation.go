package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const organisationColumns = `o.id, o.name, o.owner_id, o.created_at`

// SQLOrganisationRepo implements OrganisationRepo.
type SQLOrganisationRepo struct{ base }

func NewOrganisationRepo(conn db.DBTX, d db.Dialect) *SQLOrganisationRepo {
	return &SQLOrganisationRepo{base{conn, d}}
}

func (r *SQLOrganisationRepo) Create(ctx context.Context, o *domain.Organisation) error {
	stampCreated(&o.CreatedAt)
	_, err := r.exec(ctx, `INSERT INTO organisations (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		o.ID, o.Name, o.OwnerID, formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting organisation: %w", err)
	}
	return nil
}

func (r *SQLOrganisationRepo) GetByID(ctx context.Context, id string) (*domain.Organisation, error) {
	o, err := scanOrganisation(r.queryRow(ctx, `SELECT `+organisationColumns+` FROM organisations o WHERE o.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "organisation", id)
	}
	return o, nil
}

func (r *SQLOrganisationRepo) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Organisation, error) {
	rows, err := r.query(ctx, `SELECT `+organisationColumns+` FROM organisations o WHERE o.owner_id = ? ORDER BY o.created_at, o.id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing organisations by owner: %w", err)
	}
	return collect(rows, "organisations", scanOrganisation)
}

func (r *SQLOrganisationRepo) ListForMember(ctx context.Context, profileID string) ([]*domain.Organisation, error) {
	rows, err := r.query(ctx, `SELECT `+organisationColumns+` FROM organisations o
		JOIN organisation_members m ON m.organisation_id = o.id
		WHERE m.profile_id = ? ORDER BY o.created_at, o.id`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing organisations for member: %w", err)
	}
	return collect(rows, "organisations", scanOrganisation)
}

func (r *SQLOrganisationRepo) Update(ctx context.Context, o *domain.Organisation) error {
	_, err := r.exec(ctx, `UPDATE organisations SET name = ?, owner_id = ? WHERE id = ?`, o.Name, o.OwnerID, o.ID)
	if err != nil {
		return fmt.Errorf("updating organisation: %w", err)
	}
	return nil
}

func (r *SQLOrganisationRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM organisations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting organisation: %w", err)
	}
	return nil
}

func scanOrganisation(s scanner) (*domain.Organisation, error) {
	var o domain.Organisation
	var createdAt string
	if err := s.Scan(&o.ID, &o.Name, &o.OwnerID, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if o.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &o, nil
}

const organisationMemberColumns = `id, organisation_id, profile_id, role, joined_at`

// SQLOrganisationMemberRepo implements OrganisationMemberRepo.
type SQLOrganisationMemberRepo struct{ base }

func NewOrganisationMemberRepo(conn db.DBTX, d db.Dialect) *SQLOrganisationMemberRepo {
	return &SQLOrganisationMemberRepo{base{conn, d}}
}

func (r *SQLOrganisationMemberRepo) Create(ctx context.Context, m *domain.OrganisationMembership) error {
	stampCreated(&m.JoinedAt)
	if m.Role == "" {
		m.Role = domain.RoleEmployee
	}
	_, err := r.exec(ctx, `INSERT INTO organisation_members (`+organisationMemberColumns+`) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.OrganisationID, m.ProfileID, string(m.Role), formatTime(m.JoinedAt))
	if err != nil {
		return fmt.Errorf("inserting organisation member: %w", err)
	}
	return nil
}

func (r *SQLOrganisationMemberRepo) GetByID(ctx context.Context, id string) (*domain.OrganisationMembership, error) {
	m, err := scanOrganisationMember(r.queryRow(ctx, `SELECT `+organisationMemberColumns+` FROM organisation_members WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "organisation member", id)
	}
	return m, nil
}

func (r *SQLOrganisationMemberRepo) ListByOrganisation(ctx context.Context, organisationID string) ([]*domain.OrganisationMembership, error) {
	rows, err := r.query(ctx, `SELECT `+organisationMemberColumns+` FROM organisation_members
		WHERE organisation_id = ? ORDER BY joined_at, id`, organisationID)
	if err != nil {
		return nil, fmt.Errorf("listing organisation members: %w", err)
	}
	return collect(rows, "organisation members", scanOrganisationMember)
}

func (r *SQLOrganisationMemberRepo) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	if _, err := r.exec(ctx, `UPDATE organisation_members SET role = ? WHERE id = ?`, string(role), id); err != nil {
		return fmt.Errorf("updating organisation member role: %w", err)
	}
	return nil
}

func (r *SQLOrganisationMemberRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM organisation_members WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting organisation member: %w", err)
	}
	return nil
}

func scanOrganisationMember(s scanner) (*domain.OrganisationMembership, error) {
	var m domain.OrganisationMembership
	var role, joinedAt string
	if err := s.Scan(&m.ID, &m.OrganisationID, &m.ProfileID, &role, &joinedAt); err != nil {
		return nil, err
	}
	m.Role = domain.Role(role)
	var err error
	if m.JoinedAt, err = parseTime(joinedAt, "joined_at"); err != nil {
		return nil, err
	}
	return &m, nil
}
