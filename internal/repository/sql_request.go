package repository

import (
	"context"
	"fmt"

	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/domain"
)

const requestColumns = `id, type, requested_by, requested_to, status, request_data, photo_url, response, created_at`

// SQLRequestRepo implements RequestRepo.
type SQLRequestRepo struct{ base }

func NewRequestRepo(conn db.DBTX, d db.Dialect) *SQLRequestRepo {
	return &SQLRequestRepo{base{conn, d}}
}

func (r *SQLRequestRepo) Create(ctx context.Context, req *domain.Request) error {
	stampCreated(&req.CreatedAt)
	if req.Status == "" {
		req.Status = domain.RequestPending
	}
	_, err := r.exec(ctx, `INSERT INTO requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, string(req.Type), req.RequestedBy, req.RequestedTo, string(req.Status),
		jsonArg(req.RequestData), req.PhotoURL, req.Response, formatTime(req.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting request: %w", err)
	}
	return nil
}

func (r *SQLRequestRepo) GetByID(ctx context.Context, id string) (*domain.Request, error) {
	req, err := scanRequest(r.queryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "request", id)
	}
	return req, nil
}

func (r *SQLRequestRepo) ListForUser(ctx context.Context, profileID string) ([]*domain.Request, error) {
	rows, err := r.query(ctx, `SELECT `+requestColumns+` FROM requests
		WHERE requested_to = ? OR requested_by = ? ORDER BY created_at DESC, id`, profileID, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	return collect(rows, "requests", scanRequest)
}

func (r *SQLRequestRepo) UpdateStatus(ctx context.Context, id string, status domain.RequestStatus, response string) error {
	_, err := r.exec(ctx, `UPDATE requests SET status = ?, response = ? WHERE id = ?`, string(status), response, id)
	if err != nil {
		return fmt.Errorf("updating request status: %w", err)
	}
	return nil
}

func (r *SQLRequestRepo) SetPhotoURL(ctx context.Context, id, url string) error {
	res, err := r.exec(ctx, `UPDATE requests SET photo_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return fmt.Errorf("setting request photo: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLRequestRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.exec(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting request: %w", err)
	}
	return nil
}

func scanRequest(s scanner) (*domain.Request, error) {
	var req domain.Request
	var typ, status, createdAt string
	var data []byte
	err := s.Scan(&req.ID, &typ, &req.RequestedBy, &req.RequestedTo, &status, &data,
		&req.PhotoURL, &req.Response, &createdAt)
	if err != nil {
		return nil, err
	}
	req.Type = domain.RequestType(typ)
	req.Status = domain.RequestStatus(status)
	req.RequestData = jsonOrNull(data)
	if req.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &req, nil
}
