package engine

import (
	"fmt"
	"strings"

	"imaged/pkg/types"
)

// applyDefaults fills unset request fields from the family envelope.
func applyDefaults(spec types.FamilySpec, req *types.GenerateRequest) {
	if req.Width == 0 {
		req.Width = 1024
	}
	if req.Height == 0 {
		req.Height = 1024
	}
	if req.NumImages == 0 {
		req.NumImages = 1
	}
	if req.Steps == 0 {
		req.Steps = spec.DefaultSteps
	}
	if req.Guidance == 0 {
		req.Guidance = spec.DefaultGuidance
	}
	if req.InitImage != "" && req.DenoiseStrength == 0 {
		req.DenoiseStrength = 0.75
	}
}

// validateRequest checks the request against the family envelope. It is
// pure: any violation returns before the cache or device is touched. It
// also normalizes the negative prompt, which only applies when guidance
// exceeds 1.0.
func validateRequest(spec types.FamilySpec, req *types.GenerateRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return ErrValidation("prompt is required")
	}
	if req.Width < spec.MinDim || req.Width > spec.MaxDim {
		return ErrValidation(fmt.Sprintf("width must be between %d and %d", spec.MinDim, spec.MaxDim))
	}
	if req.Height < spec.MinDim || req.Height > spec.MaxDim {
		return ErrValidation(fmt.Sprintf("height must be between %d and %d", spec.MinDim, spec.MaxDim))
	}
	if req.Width%spec.DimStep != 0 || req.Height%spec.DimStep != 0 {
		return ErrValidation(fmt.Sprintf("width and height must be divisible by %d for %s", spec.DimStep, spec.ID))
	}
	if req.NumImages < 1 || req.NumImages > spec.MaxImages {
		return ErrValidation(fmt.Sprintf("num_images must be between 1 and %d", spec.MaxImages))
	}
	if req.Steps < spec.MinSteps || req.Steps > spec.MaxSteps {
		return ErrValidation(fmt.Sprintf("steps must be between %d and %d", spec.MinSteps, spec.MaxSteps))
	}
	if req.Guidance < spec.MinGuidance || req.Guidance > spec.MaxGuidance {
		return ErrValidation(fmt.Sprintf("guidance must be between %g and %g", spec.MinGuidance, spec.MaxGuidance))
	}
	if req.Tiled && !spec.SupportsTiled {
		return ErrValidation(fmt.Sprintf("tiled generation is not supported by %s", spec.ID))
	}
	if req.InitImage != "" {
		if req.DenoiseStrength <= 0 || req.DenoiseStrength > 1 {
			return ErrValidation("denoise_strength must be in (0, 1]")
		}
	} else if req.DenoiseStrength != 0 {
		return ErrValidation("denoise_strength requires init_image")
	}
	if req.Seed != nil && *req.Seed < 0 {
		return ErrValidation("seed must be non-negative")
	}
	if req.NegativePrompt != "" && (!spec.SupportsNegativePrompt || req.Guidance <= 1.0) {
		req.NegativePrompt = ""
	}
	return nil
}
