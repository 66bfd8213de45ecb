package engine

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrForbidden            = errors.New("forbidden")
	ErrBadRequest           = errors.New("bad request")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrAllocationFailed     = errors.New("server allocation failed")
	ErrConfigurationAnomaly = errors.New("configuration anomaly")
	ErrUnavailable          = errors.New("store unavailable")
)

var (
	ErrQueueNotFound     = fmt.Errorf("queue %w", ErrNotFound)
	ErrDraftNotFound     = fmt.Errorf("draft %w", ErrNotFound)
	ErrVetoNotFound      = fmt.Errorf("veto %w", ErrNotFound)
	ErrQueueNotWaiting   = fmt.Errorf("queue is not accepting changes: %w", ErrConflict)
	ErrQueueFull         = fmt.Errorf("queue is full: %w", ErrConflict)
	ErrNotMember         = fmt.Errorf("player is not in the queue: %w", ErrConflict)
	ErrOwnerMustDelete   = fmt.Errorf("owner is the last member, delete the queue instead: %w", ErrConflict)
	ErrDraftFinished     = fmt.Errorf("draft already completed: %w", ErrConflict)
	ErrVetoNotAwaiting   = fmt.Errorf("veto already started: %w", ErrConflict)
	ErrVetoNotInProgress = fmt.Errorf("veto is not in progress: %w", ErrConflict)
	ErrNotAnomalous      = fmt.Errorf("veto does not need resolution: %w", ErrConflict)
	ErrNoPendingServer   = fmt.Errorf("queue is not waiting for a server: %w", ErrConflict)
	ErrNotReady          = fmt.Errorf("queue has no server yet: %w", ErrConflict)
	ErrNotCaptain        = fmt.Errorf("requester is not a captain: %w", ErrForbidden)
	ErrWrongTurn         = fmt.Errorf("invalid turn: %w", ErrForbidden)
	ErrNotOwner          = fmt.Errorf("requester is not the owner: %w", ErrForbidden)
	ErrAdminOnly         = fmt.Errorf("admin role required: %w", ErrForbidden)
	ErrPlayerUnavailable = fmt.Errorf("player cannot be picked: %w", ErrBadRequest)
	ErrMapUnavailable    = fmt.Errorf("map cannot be banned: %w", ErrBadRequest)
	ErrVetoAnomaly       = fmt.Errorf("veto ended with more than one map left: %w", ErrConfigurationAnomaly)
)

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool         { return errors.Is(err, ErrConflict) }
func IsForbidden(err error) bool        { return errors.Is(err, ErrForbidden) }
func IsBadRequest(err error) bool       { return errors.Is(err, ErrBadRequest) }
func IsQuotaExceeded(err error) bool    { return errors.Is(err, ErrQuotaExceeded) }
func IsAllocationFailed(err error) bool { return errors.Is(err, ErrAllocationFailed) }
func IsUnavailable(err error) bool      { return errors.Is(err, ErrUnavailable) }
