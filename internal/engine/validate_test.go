package engine

import (
	"testing"

	"imaged/internal/registry"
	"imaged/pkg/types"
)

func fluxSpec(t *testing.T) types.FamilySpec {
	t.Helper()
	s, ok := registry.Spec(types.FamilyFlux)
	if !ok {
		t.Fatalf("flux spec missing")
	}
	return s
}

func sdxlSpec(t *testing.T) types.FamilySpec {
	t.Helper()
	s, ok := registry.Spec(types.FamilySDXL)
	if !ok {
		t.Fatalf("sdxl spec missing")
	}
	return s
}

func TestApplyDefaults(t *testing.T) {
	spec := fluxSpec(t)
	req := types.GenerateRequest{Prompt: "p"}
	applyDefaults(spec, &req)
	if req.Width != 1024 || req.Height != 1024 {
		t.Fatalf("dims %dx%d", req.Width, req.Height)
	}
	if req.NumImages != 1 || req.Steps != 28 || req.Guidance != 3.5 {
		t.Fatalf("defaults: %+v", req)
	}
	if req.DenoiseStrength != 0 {
		t.Fatalf("denoise defaulted without init image")
	}

	req = types.GenerateRequest{Prompt: "p", InitImage: "aGk="}
	applyDefaults(spec, &req)
	if req.DenoiseStrength != 0.75 {
		t.Fatalf("denoise=%v", req.DenoiseStrength)
	}
}

func TestValidateRequestBounds(t *testing.T) {
	spec := fluxSpec(t)
	base := func() types.GenerateRequest {
		r := types.GenerateRequest{Family: "flux", Prompt: "p"}
		applyDefaults(spec, &r)
		return r
	}
	cases := []struct {
		name   string
		mutate func(*types.GenerateRequest)
		valid  bool
	}{
		{"defaults ok", func(r *types.GenerateRequest) {}, true},
		{"blank prompt", func(r *types.GenerateRequest) { r.Prompt = "  " }, false},
		{"width not divisible", func(r *types.GenerateRequest) { r.Width = 1000 }, false},
		{"height not divisible", func(r *types.GenerateRequest) { r.Height = 1000 }, false},
		{"width too small", func(r *types.GenerateRequest) { r.Width = 256 }, false},
		{"height too large", func(r *types.GenerateRequest) { r.Height = 4096 }, false},
		{"too many images", func(r *types.GenerateRequest) { r.NumImages = 5 }, false},
		{"steps below range", func(r *types.GenerateRequest) { r.Steps = 5 }, false},
		{"steps above range", func(r *types.GenerateRequest) { r.Steps = 60 }, false},
		{"guidance above range", func(r *types.GenerateRequest) { r.Guidance = 9 }, false},
		{"tiled allowed for flux", func(r *types.GenerateRequest) { r.Tiled = true }, true},
		{"denoise without init image", func(r *types.GenerateRequest) { r.DenoiseStrength = 0.5 }, false},
		{"denoise out of range", func(r *types.GenerateRequest) {
			r.InitImage = "aGk="
			r.DenoiseStrength = 1.5
		}, false},
		{"negative seed", func(r *types.GenerateRequest) { s := int64(-1); r.Seed = &s }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(&req)
			err := validateRequest(spec, &req)
			if tc.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatalf("expected validation error")
				}
				if !IsValidation(err) {
					t.Fatalf("wrong kind: %v", err)
				}
			}
		})
	}
}

func TestValidateTiledRejectedForSDXL(t *testing.T) {
	spec := sdxlSpec(t)
	req := types.GenerateRequest{Family: "sdxl", Prompt: "p", Tiled: true}
	applyDefaults(spec, &req)
	if err := validateRequest(spec, &req); !IsValidation(err) {
		t.Fatalf("got %v", err)
	}
}

func TestNegativePromptNormalization(t *testing.T) {
	sdxl := sdxlSpec(t)
	flux := fluxSpec(t)

	// Kept when the family supports it and guidance exceeds 1.0.
	req := types.GenerateRequest{Family: "sdxl", Prompt: "p", NegativePrompt: "blurry"}
	applyDefaults(sdxl, &req)
	if err := validateRequest(sdxl, &req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.NegativePrompt != "blurry" {
		t.Fatalf("negative prompt dropped: %q", req.NegativePrompt)
	}

	// Cleared at guidance <= 1.0: classifier-free guidance never combines
	// the negative embedding there.
	req = types.GenerateRequest{Family: "sdxl", Prompt: "p", NegativePrompt: "blurry", Guidance: 1.0}
	applyDefaults(sdxl, &req)
	if err := validateRequest(sdxl, &req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.NegativePrompt != "" {
		t.Fatalf("negative prompt kept at guidance 1.0")
	}

	// Cleared for families that do not support it.
	req = types.GenerateRequest{Family: "flux", Prompt: "p", NegativePrompt: "blurry"}
	applyDefaults(flux, &req)
	if err := validateRequest(flux, &req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.NegativePrompt != "" {
		t.Fatalf("negative prompt kept for flux")
	}
}
