package apperr

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrViolations = errors.New("ledger violations found")
	ErrDisabled   = errors.New("disabled")
)
