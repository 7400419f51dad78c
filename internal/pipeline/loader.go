package pipeline

import (
	"context"
	"os"
)

// Loader constructs resident pipelines from weight manifests. Loading is
// never partial: any failure aborts the whole operation and leaves no
// half-built handle behind.
type Loader struct {
	backend Backend
}

// NewLoader returns a Loader over the given backend.
func NewLoader(backend Backend) *Loader {
	return &Loader{backend: backend}
}

// Load resolves every manifest component, builds the pipeline, applies
// overlay weights when present on disk, and enables offload if requested.
func (l *Loader) Load(ctx context.Context, manifest WeightManifest, offload bool) (Pipeline, error) {
	// Resolve components before touching the backend so a missing file
	// fails without any accelerator allocation.
	for _, c := range manifest.Components {
		if _, err := os.Stat(c.Path); err != nil {
			return nil, componentMissingError{component: c.Name, path: c.Path}
		}
	}
	overlay := manifest.OverlayPath
	if overlay != "" {
		if _, err := os.Stat(overlay); err != nil {
			// Overlay weights are applied only if present.
			overlay = ""
		}
	}
	p, err := l.backend.Build(ctx, manifest, BuildOptions{Offload: offload, OverlayPath: overlay})
	if err != nil {
		if IsOverlayFailure(err) || IsBackendUnavailable(err) {
			return nil, err
		}
		return nil, buildError{cause: err}
	}
	return p, nil
}

// NewOverlayError lets backends report a name-matched injection failure so
// callers can distinguish it from a plain build failure.
func NewOverlayError(path string, cause error) error {
	return overlayError{path: path, cause: cause}
}
