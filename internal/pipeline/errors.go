package pipeline

import "fmt"

// componentMissingError signals a manifest component absent from disk, which
// the HTTP layer maps to 404 (family unavailable).
type componentMissingError struct {
	component string
	path      string
}

func (e componentMissingError) Error() string {
	return fmt.Sprintf("weight component %q not found at %s", e.component, e.path)
}

// ErrComponentMissing constructs a componentMissingError.
func ErrComponentMissing(component, path string) error {
	return componentMissingError{component: component, path: path}
}

// IsComponentMissing reports whether err indicates a missing weight file.
func IsComponentMissing(err error) bool {
	_, ok := err.(componentMissingError)
	return ok
}

// overlayError signals overlay weights incompatible with the target
// pipeline's module shape.
type overlayError struct {
	path  string
	cause error
}

func (e overlayError) Error() string {
	return fmt.Sprintf("overlay weights %s could not be applied: %v", e.path, e.cause)
}

func (e overlayError) Unwrap() error { return e.cause }

// IsOverlayFailure reports whether err indicates an overlay application failure.
func IsOverlayFailure(err error) bool {
	_, ok := err.(overlayError)
	return ok
}

// buildError wraps any other construction failure, including device
// out-of-memory during load.
type buildError struct {
	cause error
}

func (e buildError) Error() string { return "pipeline build failed: " + e.cause.Error() }

func (e buildError) Unwrap() error { return e.cause }

// IsBuildFailure reports whether err indicates a failed pipeline construction.
func IsBuildFailure(err error) bool {
	_, ok := err.(buildError)
	return ok
}
