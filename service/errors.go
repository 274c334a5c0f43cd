package service

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrPackageNotFound = errors.New("package not found")
	ErrInvalidAmount   = errors.New("package price out of range")
	ErrInvalidPoints   = errors.New("package points must be positive")
	ErrOrderNotPending = errors.New("order is not pending")
	ErrOrderConflict   = errors.New("order state conflict")
	ErrAmountMismatch  = errors.New("amount mismatch")
)
