package domain

import "errors"

// Domain errors
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeClosed   = errors.New("challenge already ended")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrScoreNotFound     = errors.New("score entry not found")
	ErrInvalidScore      = errors.New("invalid score value")
	ErrInvalidGridSize   = errors.New("unsupported grid size")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInternalError     = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrScoreNotFound)
}
