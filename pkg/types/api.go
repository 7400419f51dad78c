package types

// GenerateRequest is the payload for POST /api/generate.
// Supplying init_image switches the request to image-to-image mode.
type GenerateRequest struct {
	// Family to generate with. If empty, the server default is used.
	// example: flux
	Family string `json:"family,omitempty" example:"flux"`
	// Required prompt text.
	// example: A mountain lake at sunset, volumetric light.
	Prompt string `json:"prompt" example:"A mountain lake at sunset, volumetric light."`
	// Optional negative prompt. Only applied when guidance > 1.0.
	NegativePrompt string `json:"negative_prompt,omitempty"`
	// Image width in pixels. Must satisfy the family's divisibility rule.
	// example: 1024
	Width int `json:"width,omitempty" example:"1024"`
	// Image height in pixels. Must satisfy the family's divisibility rule.
	// example: 1024
	Height int `json:"height,omitempty" example:"1024"`
	// Number of images to generate (1-4).
	// example: 2
	NumImages int `json:"num_images,omitempty" example:"2"`
	// Inference steps, bounded per family.
	// example: 28
	Steps int `json:"steps,omitempty" example:"28"`
	// Guidance / CFG scale, bounded per family.
	// example: 3.5
	Guidance float64 `json:"guidance,omitempty" example:"3.5"`
	// Explicit base seed. Image i of the batch uses seed+i. When omitted a
	// base seed is drawn once and reported back in the response.
	Seed *int64 `json:"seed,omitempty"`
	// Base64-encoded source image (PNG or JPEG). Presence selects
	// image-to-image mode.
	InitImage string `json:"init_image,omitempty"`
	// Fraction of the process allowed to deviate from the source image
	// (image-to-image only, 0-1).
	// example: 0.75
	DenoiseStrength float64 `json:"denoise_strength,omitempty" example:"0.75"`
	// Tiled generation for large images (families that support it).
	Tiled bool `json:"tiled,omitempty"`
}

// GenerateResponse is returned by POST /api/generate.
type GenerateResponse struct {
	// Ordered artifacts, one per generated image.
	Images []Artifact `json:"images"`
	// Resolved base seed for the batch.
	// example: 42
	Seed int64 `json:"seed" example:"42"`
	// Family that served the request.
	// example: flux
	Family string `json:"family" example:"flux"`
	// Generation mode: txt2img or img2img.
	// example: txt2img
	Mode string `json:"mode" example:"txt2img"`
	// Wall-clock generation time in seconds.
	// example: 12.8
	GenerationTime float64 `json:"generation_time" example:"12.8"`
}

// FamilyInfo combines a family's parameter envelope with its current
// availability (manifest files present on disk).
type FamilyInfo struct {
	FamilySpec
	// Whether the family's weight manifest is present on disk.
	Available bool `json:"available"`
	// Supported generation modes.
	// example: ["txt2img","img2img"]
	Features []string `json:"features"`
	// Default negative prompt suggested to clients, if any.
	DefaultNegativePrompt string `json:"default_negative_prompt,omitempty"`
}

// FamiliesResponse wraps GET /api/models/config.
type FamiliesResponse struct {
	Models []FamilyInfo `json:"models"`
	// Suggested default family id.
	// example: flux
	DefaultModel string `json:"default_model,omitempty" example:"flux"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: width must be divisible by 16
	Error string `json:"error" example:"width must be divisible by 16"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Number of images already produced and persisted when a batch failed
	// partway. Omitted for non-generation errors.
	Completed int `json:"completed,omitempty"`
	// Artifacts persisted before the failure, if any.
	Partial []Artifact `json:"partial,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Slot lifecycle state (empty, loading, resident, draining, error).
	// example: resident
	SlotState string `json:"slot_state" example:"resident"`
	// Family currently holding accelerator memory, if any.
	// example: flux
	ResidentFamily string `json:"resident_family,omitempty" example:"flux"`
	// Monotonic counter incremented on every eviction.
	// example: 3
	SlotGeneration uint64 `json:"slot_generation" example:"3"`
	// Total evictions since start.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Total pipeline loads since start.
	LoadsTotal uint64 `json:"loads_total"`
	// Total images generated since start.
	ImagesTotal uint64 `json:"images_total"`
	// Requests queued for the critical section.
	QueueLen int `json:"queue_len"`
	// Requests currently generating (0 or 1).
	Inflight int `json:"inflight"`
	// Queue capacity before backpressure triggers.
	MaxQueueDepth int `json:"max_queue_depth"`
	// Last error observed by the slot, if any.
	LastError string `json:"last_error,omitempty"`
	// Accelerator bytes currently allocated, as reported by the device.
	DeviceAllocatedBytes uint64 `json:"device_allocated_bytes"`
	// Admission headroom threshold in bytes.
	HeadroomBytes uint64 `json:"headroom_bytes"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// Message is one turn of a text chat conversation.
type Message struct {
	// Role: user or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message content.
	Content string `json:"content"`
}

// TextGenerateRequest is the payload for POST /api/text/generate.
type TextGenerateRequest struct {
	// Required prompt text.
	Prompt string `json:"prompt"`
	// Maximum number of new tokens (50-2048).
	// example: 512
	MaxLength int `json:"max_length,omitempty" example:"512"`
	// Sampling temperature (0.1-2.0).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability (0.1-1.0).
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling (1-100).
	// example: 50
	TopK int `json:"top_k,omitempty" example:"50"`
	// Repetition penalty (1.0-2.0).
	// example: 1.1
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty" example:"1.1"`
}

// TextGenerateResponse is returned by POST /api/text/generate.
type TextGenerateResponse struct {
	// Generated text.
	Text string `json:"text"`
	// Original prompt.
	Prompt string `json:"prompt"`
}

// ChatRequest is the payload for POST /api/text/chat.
type ChatRequest struct {
	// Conversation history, oldest first.
	Messages          []Message `json:"messages"`
	MaxLength         int       `json:"max_length,omitempty"`
	Temperature       float64   `json:"temperature,omitempty"`
	TopP              float64   `json:"top_p,omitempty"`
	TopK              int       `json:"top_k,omitempty"`
	RepetitionPenalty float64   `json:"repetition_penalty,omitempty"`
}

// ChatResponse is returned by POST /api/text/chat.
type ChatResponse struct {
	// Assistant's reply.
	Message Message `json:"message"`
	// Full conversation including the reply.
	Messages []Message `json:"messages"`
}
