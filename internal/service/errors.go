package service

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrVersionConflict  = errors.New("version conflict")
	ErrNotEditable      = errors.New("contract is not editable")
)
