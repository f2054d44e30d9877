package domain

import "errors"

// Session errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Storage errors
var (
	ErrStorageKeyNotFound = errors.New("storage key not found")
)

// History errors
var (
	ErrSuperseded = errors.New("result superseded by a newer request")
)
