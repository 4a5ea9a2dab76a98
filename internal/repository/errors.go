package repository

import "errors"

// ErrNotFound is returned by GetByID lookups that match no row.
var ErrNotFound = errors.New("not found")
