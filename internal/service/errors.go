package service

import "errors"

var (
	// ErrServiceNotFound is returned when calling a service that has not
	// been registered.
	ErrServiceNotFound = errors.New("service: not found")

	// ErrInvalidCall is returned for calls with missing or malformed
	// fields.
	ErrInvalidCall = errors.New("service: invalid call")
)
