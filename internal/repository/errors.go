package repository

import "errors"

var (
	// ErrInvalidLocation indicates a model location that cannot be fetched
	ErrInvalidLocation = errors.New("invalid artifact location")

	// ErrRepositoryUnavailable indicates the cache directory cannot be used
	ErrRepositoryUnavailable = errors.New("artifact repository unavailable")
)
