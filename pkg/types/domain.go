package types

// Family identifies an interchangeable generative-pipeline family.
type Family string

const (
	// FamilySDXL is the Stable Diffusion XL base pipeline.
	FamilySDXL Family = "sdxl"
	// FamilyFlux is the FLUX.1-dev pipeline.
	FamilyFlux Family = "flux"
)

// FamilySpec describes the parameter envelope for one pipeline family.
// Dimension, step and guidance bounds are validated before any accelerator
// allocation happens.
type FamilySpec struct {
	// Stable identifier for the family.
	// example: flux
	ID Family `json:"id" example:"flux"`
	// Human-friendly name.
	// example: FLUX.1-dev
	Name string `json:"name" example:"FLUX.1-dev"`
	// Short description shown in capability listings.
	Description string `json:"description,omitempty"`
	// Width and height must be divisible by DimStep.
	// example: 16
	DimStep int `json:"dim_step" example:"16"`
	// Minimum width/height in pixels.
	// example: 512
	MinDim int `json:"min_dim" example:"512"`
	// Maximum width/height in pixels.
	// example: 2048
	MaxDim int `json:"max_dim" example:"2048"`
	// Inference step bounds and default.
	MinSteps     int `json:"min_steps" example:"10"`
	MaxSteps     int `json:"max_steps" example:"50"`
	DefaultSteps int `json:"default_steps" example:"28"`
	// Guidance (CFG) bounds and default.
	MinGuidance     float64 `json:"min_guidance" example:"1.0"`
	MaxGuidance     float64 `json:"max_guidance" example:"5.0"`
	DefaultGuidance float64 `json:"default_guidance" example:"3.5"`
	// Maximum images per request.
	// example: 4
	MaxImages int `json:"max_images" example:"4"`
	// Whether the family honors a negative prompt.
	SupportsNegativePrompt bool `json:"supports_negative_prompt"`
	// Whether the family supports tiled generation for large images.
	SupportsTiled bool `json:"supports_tiled"`
	// Whether overlay (fine-tune) weights may be applied on top of the base.
	SupportsOverlay bool `json:"supports_overlay"`
}

// Artifact is one persisted generated image with its dual representations:
// a durable file on disk and an inline-encoded payload.
type Artifact struct {
	// Collision-resistant unique identifier.
	// example: 3b1f8a4e-9c2d-4f0a-b1e7-2d5c9a8f6e01
	ID string `json:"id" example:"3b1f8a4e-9c2d-4f0a-b1e7-2d5c9a8f6e01"`
	// Filename under the output directory.
	// example: flux_txt2img_3b1f8a4e.png
	Filename string `json:"filename"`
	// Absolute path of the persisted file.
	Path string `json:"path"`
	// Public-facing retrieval path.
	// example: /images/flux_txt2img_3b1f8a4e.png
	URL string `json:"url"`
	// Inline base64 data URL of the same bytes.
	DataURL string `json:"data_url,omitempty"`
	// Per-image seed used to produce this artifact.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
}
