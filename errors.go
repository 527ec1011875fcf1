package warp

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes engine failures.
type ErrorKind int

const (
	// AllocationFailure indicates device memory could not be allocated
	// or released.
	AllocationFailure ErrorKind = iota
	// DimensionMismatch indicates operand shapes violate an operation's
	// precondition.
	DimensionMismatch
	// LaunchFailure indicates an invalid kernel launch configuration.
	LaunchFailure
	// TransferFailure indicates a host/device copy could not be
	// performed.
	TransferFailure
	// NumericInstability indicates a numerically unsafe condition such
	// as a zero normalization sum.
	NumericInstability
	// NotImplemented indicates an internal guard was hit.
	NotImplemented
)

// String returns the error kind as a string.
func (k ErrorKind) String() string {
	switch k {
	case AllocationFailure:
		return "AllocationFailure"
	case DimensionMismatch:
		return "DimensionMismatch"
	case LaunchFailure:
		return "LaunchFailure"
	case TransferFailure:
		return "TransferFailure"
	case NumericInstability:
		return "NumericInstability"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "Unknown"
	}
}

// EngineError is a structured error carrying the failure category, the
// operation that failed, and optional context.
type EngineError struct {
	Kind    ErrorKind
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
	Context interface{}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("warp %s in %s: %s (caused by: %v)",
			e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("warp %s in %s: %s", e.Kind, e.Op, e.Message)
}

// Unwrap allows error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Error constructors

// NewAllocationError creates an allocation failure.
func NewAllocationError(op, message string, err error) error {
	return &EngineError{Kind: AllocationFailure, Op: op, Message: message, Err: err}
}

// NewDimensionError creates a dimension mismatch error.
func NewDimensionError(op, message string) error {
	return &EngineError{Kind: DimensionMismatch, Op: op, Message: message}
}

// NewLaunchError creates a launch failure.
func NewLaunchError(op, message string, err error) error {
	return &EngineError{Kind: LaunchFailure, Op: op, Message: message, Err: err}
}

// NewTransferError creates a transfer failure.
func NewTransferError(op, message string, err error) error {
	return &EngineError{Kind: TransferFailure, Op: op, Message: message, Err: err}
}

// NewNumericError creates a numeric instability error.
func NewNumericError(op, message string, context interface{}) error {
	return &EngineError{Kind: NumericInstability, Op: op, Message: message, Context: context}
}

// Common pre-defined errors

var (
	// ErrOutOfMemory indicates memory allocation failure.
	ErrOutOfMemory = NewAllocationError("Malloc", "out of memory", nil)

	// ErrInvalidSize indicates a non-positive allocation size.
	ErrInvalidSize = NewAllocationError("Malloc", "size must be positive", nil)

	// ErrDoubleFree indicates a double free attempt.
	ErrDoubleFree = NewAllocationError("Free", "double free detected", nil)

	// ErrUnknownPointer indicates a Free of memory the pool never
	// allocated.
	ErrUnknownPointer = NewAllocationError("Free", "pointer not found in allocation pool", nil)

	// ErrZeroSum indicates a softmax normalization sum of zero.
	ErrZeroSum = NewNumericError("SoftmaxSample", "probability mass sums to zero", nil)
)

// IsKind reports whether err is an EngineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsAllocationFailure reports whether err is an allocation failure.
func IsAllocationFailure(err error) bool { return IsKind(err, AllocationFailure) }

// IsDimensionMismatch reports whether err is a dimension mismatch.
func IsDimensionMismatch(err error) bool { return IsKind(err, DimensionMismatch) }

// IsLaunchFailure reports whether err is a launch failure.
func IsLaunchFailure(err error) bool { return IsKind(err, LaunchFailure) }

// IsTransferFailure reports whether err is a transfer failure.
func IsTransferFailure(err error) bool { return IsKind(err, TransferFailure) }

// IsNumericInstability reports whether err is a numeric instability.
func IsNumericInstability(err error) bool { return IsKind(err, NumericInstability) }
