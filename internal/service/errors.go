package service

import "errors"

// The failure taxonomy of the lifecycle state machine. Handlers match these
// with errors.Is and translate them to HTTP statuses; anything else is an
// infrastructure failure and the caller should retry the whole request.
var (
	// ErrNotFound means the referenced item or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyClaimed means a claim was attempted on an item that is not
	// in the claimable source state.
	ErrAlreadyClaimed = errors.New("item already claimed")

	// ErrInvalidCode means the presented code does not resolve to an active,
	// unexpired, unused record. Deliberately indistinguishable from "never
	// existed" for unauthenticated callers.
	ErrInvalidCode = errors.New("invalid pickup code")

	// ErrAlreadyPickedUp means pickup was attempted on an item already found.
	ErrAlreadyPickedUp = errors.New("item already picked up")

	// ErrNotReserved means the operation requires a reserved item.
	ErrNotReserved = errors.New("item not reserved")

	// ErrForbidden means an owner-only operation was attempted by a
	// non-owning identity.
	ErrForbidden = errors.New("forbidden")

	// ErrNotReservedByCaller means the cancelling user is not the one who
	// reserved the item.
	ErrNotReservedByCaller = errors.New("item not reserved by caller")

	// ErrAlreadyUsed means the reservation's code was already consumed by a
	// pickup.
	ErrAlreadyUsed = errors.New("pickup code already used")

	// ErrAlreadyCancelled means the reservation was already cancelled.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")

	// ErrCodeNotFound means a reserved or found item has no resolvable code
	// row. That is a data-integrity violation from a prior bug, not a user
	// error; it is surfaced as a server error and never retried.
	ErrCodeNotFound = errors.New("no pickup code recorded for item")
)
