package services

import "errors"

var (
	ErrInvalidState  = errors.New("worker is not in a valid state for this operation")
	ErrInstallFailed = errors.New("install failed")
	// ErrNoResponse means neither the network nor the cache could answer the request.
	ErrNoResponse = errors.New("no response available")
)
