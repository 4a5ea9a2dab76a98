package service

import "errors"

var (
	ErrRequestClosed = errors.New("request already decided")
	ErrNotPermitted  = errors.New("not permitted to decide this request")
	ErrInvalidInput  = errors.New("invalid input")
)
