package pipeline

import "context"

// backendUnavailableError signals that no generation library is linked into
// this binary, so the HTTP layer can return 503 instead of 500.
type backendUnavailableError struct{ msg string }

func (e backendUnavailableError) Error() string { return e.msg }

// ErrBackendUnavailable constructs a backendUnavailableError.
func ErrBackendUnavailable(msg string) error { return backendUnavailableError{msg: msg} }

// IsBackendUnavailable reports whether err indicates a missing generation runtime.
func IsBackendUnavailable(err error) bool {
	_, ok := err.(backendUnavailableError)
	return ok
}

// UnavailableBackend fails every build fast. It is installed when the binary
// is built without an accelerator generation library, keeping default builds
// CGO-free while the rest of the daemon (registry, status, text endpoints)
// stays functional.
type UnavailableBackend struct{}

func (UnavailableBackend) Build(ctx context.Context, manifest WeightManifest, opts BuildOptions) (Pipeline, error) {
	return nil, ErrBackendUnavailable("image generation backend not built into this binary")
}

var _ Backend = UnavailableBackend{}
