package domain

import "errors"

var (
	ErrItemNotFound    = errors.New("item not found")
	ErrItemExists      = errors.New("item already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrInvalidPrice    = errors.New("invalid price")
)
