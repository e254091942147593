package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, the projection engine and the
// dispatcher return these (usually wrapped) so callers can classify failures with
// errors.Is without depending on driver packages.
//
// - ErrNotFound: the case has no ledger rows
// - ErrConflict: a uniqueness constraint rejected the write
// - ErrUnavailable: storage or bus temporarily unreachable (transient I/O)
// - ErrInvariantViolation: stored data breaks a structural invariant (upstream bug)
// - ErrPublishFailed: the bus rejected a publication
// - ErrInvalidState: component in wrong state for the requested operation
// - ErrQueueFull: bounded queue rejected an enqueue
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnavailable        = errors.New("unavailable")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrPublishFailed      = errors.New("publish failed")
	ErrInvalidState       = errors.New("invalid state")
	ErrQueueFull          = errors.New("queue full")
)
