package domain

import (
	"errors"
	"fmt"
)

// ─── Error Kinds ────────────────────────────────────────────────────────────
// Every engine error wraps exactly one kind so callers can branch with
// errors.Is instead of matching strings.

var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ─── Concrete Errors ────────────────────────────────────────────────────────

var (
	// Argument errors
	ErrMissingUserID      = fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	ErrMissingPairID      = fmt.Errorf("%w: pair id is required", ErrInvalidArgument)
	ErrMissingChallengeID = fmt.Errorf("%w: challenge id is required", ErrInvalidArgument)
	ErrInvalidCategory    = fmt.Errorf("%w: unknown category", ErrInvalidArgument)
	ErrMissingRewardID    = fmt.Errorf("%w: reward id is required", ErrInvalidArgument)
	ErrInvalidTarget      = fmt.Errorf("%w: weekly target must be positive", ErrInvalidArgument)
	ErrInvalidWeekID      = fmt.Errorf("%w: week id must look like 2025-W07", ErrInvalidArgument)

	// Lookup errors
	ErrWeekNotFound     = fmt.Errorf("%w: weekly record does not exist", ErrNotFound)
	ErrUnknownChallenge = fmt.Errorf("%w: challenge is not in this week's plan", ErrNotFound)

	// State errors
	ErrTargetNotMet     = fmt.Errorf("%w: target not yet met", ErrPreconditionFailed)
	ErrAlreadyClaimed   = fmt.Errorf("%w: weekly reward already claimed", ErrPreconditionFailed)
	ErrCatchupConsumed  = fmt.Errorf("%w: catch-up already used this week", ErrPreconditionFailed)
	ErrChallengeLocked  = fmt.Errorf("%w: not enough weekly points to unlock", ErrPreconditionFailed)
	ErrChallengeNotOpen = fmt.Errorf("%w: challenge is locked", ErrPreconditionFailed)
)

// Kind identifies an error class.
type Kind string

const (
	KindNone               Kind = ""
	KindNotFound           Kind = "not_found"
	KindPreconditionFailed Kind = "precondition_failed"
	KindInvalidArgument    Kind = "invalid_argument"
	KindInternal           Kind = "internal"
)

// KindOf classifies err. Errors that wrap none of the kinds are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}
