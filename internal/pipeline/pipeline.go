package pipeline

import (
	"context"
	"image"

	"imaged/pkg/types"
)

// WeightComponent is one named weight file (or directory) a pipeline needs.
type WeightComponent struct {
	// Name identifies the sub-module the weights belong to, e.g.
	// "text_encoder", "vae", "denoiser".
	Name string
	// Path on disk. Directories are allowed for sharded components.
	Path string
}

// WeightManifest is the ordered set of weight components required to
// construct a pipeline of one family, plus an optional overlay weight file.
type WeightManifest struct {
	Family     types.Family
	Components []WeightComponent
	// OverlayPath points at supplementary fine-tune weights applied on top
	// of the base pipeline. Empty means no overlay.
	OverlayPath string
}

// ImageParams carries everything the backend needs for one image.
type ImageParams struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	Guidance       float64
	Seed           int64
	// InitImage, when non-nil, selects image-to-image mode. It has already
	// been resized to Width x Height.
	InitImage       image.Image
	DenoiseStrength float64
	Tiled           bool
}

// Pipeline is a resident generative pipeline holding accelerator memory.
// It is exclusively owned by the cache slot; Close releases the memory.
type Pipeline interface {
	Family() types.Family
	// Generate produces a single image. Implementations must seed their
	// sampler from params.Seed so results are reproducible.
	Generate(ctx context.Context, params ImageParams) (image.Image, error)
	Close() error
}

// Backend is the boundary to the external generation library. It constructs
// pipeline objects from resolved weight manifests; the numerical internals
// stay on the other side of this interface.
type Backend interface {
	Build(ctx context.Context, manifest WeightManifest, opts BuildOptions) (Pipeline, error)
}

// BuildOptions tune pipeline construction.
type BuildOptions struct {
	// Offload keeps the bulk of the weights in host memory and streams
	// layers to the accelerator on demand.
	Offload bool
	// OverlayPath, when set, is injected into the matching sub-module after
	// the base pipeline is built.
	OverlayPath string
}
