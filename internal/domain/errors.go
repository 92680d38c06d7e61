package domain

import "errors"

var (
	ErrInvalidCapability = errors.New("invalid capability")
	ErrInvalidNeed       = errors.New("invalid need")
	ErrInvalidTransition = errors.New("invalid match status transition")
)
