package types

import "errors"

// Store errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidID        = errors.New("invalid entity ID")
	ErrInvalidKind      = errors.New("invalid metadata kind")
	ErrInvalidKey       = errors.New("invalid metadata key")
	ErrStoreDetached    = errors.New("store is detached")
	ErrAlreadyAttached  = errors.New("store is already attached")
	ErrInvalidPartition = errors.New("invalid row partition record")
)

// Schema errors.
var (
	ErrInvalidName   = errors.New("invalid name")
	ErrDuplicateName = errors.New("duplicate name")
	ErrInvalidInput  = errors.New("invalid field input")
)
