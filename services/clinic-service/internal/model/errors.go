package model

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
	// ErrSlotTaken is returned when the storage uniqueness guard rejects a second
	// live appointment for the same professional and instant.
	ErrSlotTaken = errors.New("slot already taken")
	ErrForbidden = errors.New("forbidden")
	// ErrConflict reports a write refused because of the record's current state.
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid input")
)
