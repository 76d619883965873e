package model

import "errors"

// Errors returned by store adapters.
var (
	ErrNotFound          = errors.New("document not found")
	ErrActiveShiftExists = errors.New("user already has an active shift")
	ErrCorruptDocument   = errors.New("corrupt document")
)
