package service

import "errors"

var (
	ErrMissingEmbedding = errors.New("missing embedding")
	ErrInvalidWeights   = errors.New("invalid score weights")
	ErrMatchNotFound    = errors.New("match not found")
	ErrMatchNotOpen     = errors.New("match does not accept an outcome in its current status")
)
