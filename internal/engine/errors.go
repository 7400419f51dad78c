package engine

import (
	"fmt"

	"imaged/pkg/types"
)

// validationError signals a bad request shape. Validation failures are
// resolved before any cache interaction, so nothing needs cleanup.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validationError for 400 mapping.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err indicates an invalid request.
func IsValidation(err error) bool {
	_, ok := err.(validationError)
	return ok
}

// resourceExhaustedError signals that the guard denied admission after a
// full reclaim. The residual size is reported so operators can distinguish
// a leak from ordinary contention.
type resourceExhaustedError struct{ residualBytes uint64 }

func (e resourceExhaustedError) Error() string {
	return fmt.Sprintf("accelerator memory not freed: %d bytes still allocated after reclaim", e.residualBytes)
}

// ErrResourceExhausted constructs a resourceExhaustedError for 503 mapping.
func ErrResourceExhausted(residualBytes uint64) error {
	return resourceExhaustedError{residualBytes: residualBytes}
}

// IsResourceExhausted reports whether err indicates denied memory admission.
func IsResourceExhausted(err error) bool {
	_, ok := err.(resourceExhaustedError)
	return ok
}

// ResidualBytes extracts the residual allocation from a resource-exhausted
// error, or 0.
func ResidualBytes(err error) uint64 {
	if e, ok := err.(resourceExhaustedError); ok {
		return e.residualBytes
	}
	return 0
}

// tooBusyError signals queue timeout/overflow for 429 mapping.
type tooBusyError struct{}

func (tooBusyError) Error() string { return "too busy: generation queue full" }

// ErrTooBusy constructs a tooBusyError for 429 mapping.
func ErrTooBusy() error { return tooBusyError{} }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}

// generationFailureError aborts the remaining batch iterations. Artifacts
// persisted before the failure are carried along: persistence is not
// transactional across a batch, so the caller is told exactly how far the
// batch got.
type generationFailureError struct {
	cause   error
	partial []types.Artifact
}

func (e generationFailureError) Error() string {
	return fmt.Sprintf("generation failed after %d image(s): %v", len(e.partial), e.cause)
}

func (e generationFailureError) Unwrap() error { return e.cause }

// ErrGenerationFailure constructs a generationFailureError carrying the
// artifacts persisted before the failure.
func ErrGenerationFailure(cause error, partial []types.Artifact) error {
	return generationFailureError{cause: cause, partial: partial}
}

// IsGenerationFailure reports whether err indicates a mid-batch failure.
func IsGenerationFailure(err error) bool {
	_, ok := err.(generationFailureError)
	return ok
}

// PartialArtifacts returns the artifacts persisted before a mid-batch
// failure. ok is false when err is not a generation failure.
func PartialArtifacts(err error) (arts []types.Artifact, ok bool) {
	if e, isGen := err.(generationFailureError); isGen {
		return e.partial, true
	}
	return nil, false
}
