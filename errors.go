package brokerage

import (
	"errors"
	"fmt"
)

// Failure classes. Every error returned by the engine matches one of them
// with errors.Is, so callers can tell a position problem from a system
// failure.
var (
	ErrInsufficientPosition  = errors.New("insufficient position")
	ErrInvalidReference      = errors.New("invalid reference")
	ErrMalformedTransaction  = errors.New("malformed transaction")
	ErrRecomputationConflict = errors.New("recomputation conflict")
	ErrNotFound              = errors.New("not found")
	// ErrDuplicateID is returned by stores asked to insert an id they hold.
	ErrDuplicateID = errors.New("id already recorded")
)

// InsufficientPositionError is returned when a sell asks for more lots than
// are open in its bucket.
type InsufficientPositionError struct {
	Bucket    Bucket
	Sell      string
	Requested Quantity
	Available Quantity
}

func (e *InsufficientPositionError) Error() string {
	return fmt.Sprintf("cannot sell %s lots in %s, only %s open (sell %s)", e.Requested, e.Bucket, e.Available, e.Sell)
}

func (e *InsufficientPositionError) Unwrap() error { return ErrInsufficientPosition }

// InvalidReferenceError is returned when a sell references a buy that is
// unknown to its bucket or too small to serve it.
type InvalidReferenceError struct {
	Sell   string
	Buy    string
	Reason string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("sell %s references buy %s: %s", e.Sell, e.Buy, e.Reason)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// MalformedTransactionError lists every validation failure of a transaction.
type MalformedTransactionError struct {
	ID  string
	Err error
}

func (e *MalformedTransactionError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("malformed transaction: %v", e.Err)
	}
	return fmt.Sprintf("malformed transaction %s: %v", e.ID, e.Err)
}

func (e *MalformedTransactionError) Unwrap() []error { return []error{ErrMalformedTransaction, e.Err} }

// RecomputationConflictError is returned to a writer that reached a bucket
// while it was being recomputed. The caller must re-read the bucket before
// retrying.
type RecomputationConflictError struct {
	Bucket Bucket
}

func (e *RecomputationConflictError) Error() string {
	return fmt.Sprintf("bucket %s is being recomputed, retry later", e.Bucket)
}

func (e *RecomputationConflictError) Unwrap() error { return ErrRecomputationConflict }
