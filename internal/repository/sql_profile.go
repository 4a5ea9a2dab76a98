package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const profileColumns = `id, email, full_name, avatar_url, is_admin, created_at`

// SQLProfileRepo implements ProfileRepo.
type SQLProfileRepo struct{ base }

func NewProfileRepo(conn db.DBTX, d db.Dialect) *SQLProfileRepo {
	return &SQLProfileRepo{base{conn, d}}
}

func (r *SQLProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	stampCreated(&p.CreatedAt)
	_, err := r.exec(ctx, `INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.FullName, p.AvatarURL, p.IsAdmin, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (r *SQLProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	p, err := scanProfile(r.queryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "profile", id)
	}
	return p, nil
}

func (r *SQLProfileRepo) List(ctx context.Context) ([]*domain.Profile, error) {
	rows, err := r.query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return collect(rows, "profiles", scanProfile)
}

func (r *SQLProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	_, err := r.exec(ctx, `UPDATE profiles SET email = ?, full_name = ?, avatar_url = ?, is_admin = ? WHERE id = ?`,
		p.Email, p.FullName, p.AvatarURL, p.IsAdmin, p.ID)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

func scanProfile(s scanner) (*domain.Profile, error) {
	var p domain.Profile
	var createdAt string
	if err := s.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.IsAdmin, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &p, nil
}
