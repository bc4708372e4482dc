package storage

import "errors"

var (
	// ErrUsageStatNotFound is returned when no usage record exists for a shop
	ErrUsageStatNotFound = errors.New("usage stat not found")
)
