package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"imaged/internal/common/fsutil"
	"imaged/internal/pipeline"
	"imaged/pkg/types"
)

// DefaultNegativePrompt is suggested to clients of families that honor a
// negative prompt.
const DefaultNegativePrompt = "nsfw, lowres, bad anatomy, bad hands, text, error, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality, normal quality, jpeg artifacts, signature, watermark, username, blurry"

// familySpecs is the static parameter envelope table.
var familySpecs = []types.FamilySpec{
	{
		ID:                     types.FamilySDXL,
		Name:                   "Stable Diffusion XL",
		Description:            "High-quality image generation, 7GB VRAM",
		DimStep:                8,
		MinDim:                 512,
		MaxDim:                 2048,
		MinSteps:               10,
		MaxSteps:               50,
		DefaultSteps:           20,
		MinGuidance:            1.0,
		MaxGuidance:            15.0,
		DefaultGuidance:        7.5,
		MaxImages:              4,
		SupportsNegativePrompt: true,
	},
	{
		ID:              types.FamilyFlux,
		Name:            "FLUX.1-dev",
		Description:     "State-of-the-art quality, 24GB VRAM (or 8GB with offload)",
		DimStep:         16,
		MinDim:          512,
		MaxDim:          2048,
		MinSteps:        10,
		MaxSteps:        50,
		DefaultSteps:    28,
		MinGuidance:     1.0,
		MaxGuidance:     5.0,
		DefaultGuidance: 3.5,
		MaxImages:       4,
		SupportsTiled:   true,
		SupportsOverlay: true,
	},
}

// Specs returns the parameter envelopes for all known families.
func Specs() []types.FamilySpec {
	out := make([]types.FamilySpec, len(familySpecs))
	copy(out, familySpecs)
	return out
}

// Spec looks up the envelope for one family.
func Spec(f types.Family) (types.FamilySpec, bool) {
	for _, s := range familySpecs {
		if s.ID == f {
			return s, true
		}
	}
	return types.FamilySpec{}, false
}

// unknownFamilyError signals a family id outside the catalog.
type unknownFamilyError struct{ id string }

func (e unknownFamilyError) Error() string { return "unknown model family: " + e.id }

// IsUnknownFamily reports whether err indicates an unrecognized family id.
func IsUnknownFamily(err error) bool {
	_, ok := err.(unknownFamilyError)
	return ok
}

// Registry resolves weight manifests from the filesystem layout under a
// models root directory:
//
//	stable_diffusion_xl/sd_xl_base_1.0.safetensors
//	FLUX/FLUX.1-dev/{text_encoder/model.safetensors, text_encoder_2,
//	                 ae.safetensors, flux1-dev.safetensors}
//	lora/<family>/*.safetensors          (optional overlay weights)
type Registry struct {
	root            string
	defaultOverride types.Family
}

// New builds a Registry rooted at dir. A leading '~' is expanded.
func New(dir string) (*Registry, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	return &Registry{root: abs}, nil
}

// Root returns the absolute models root directory.
func (r *Registry) Root() string { return r.root }

// Spec looks up the parameter envelope for one family.
func (r *Registry) Spec(f types.Family) (types.FamilySpec, bool) { return Spec(f) }

// Manifest resolves the weight manifest for a family. It does not verify
// component presence; the loader stats each component before any build.
func (r *Registry) Manifest(f types.Family) (pipeline.WeightManifest, error) {
	switch f {
	case types.FamilySDXL:
		return pipeline.WeightManifest{
			Family: f,
			Components: []pipeline.WeightComponent{
				{Name: "base", Path: filepath.Join(r.root, "stable_diffusion_xl", "sd_xl_base_1.0.safetensors")},
			},
		}, nil
	case types.FamilyFlux:
		base := filepath.Join(r.root, "FLUX", "FLUX.1-dev")
		return pipeline.WeightManifest{
			Family: f,
			Components: []pipeline.WeightComponent{
				{Name: "text_encoder", Path: filepath.Join(base, "text_encoder", "model.safetensors")},
				{Name: "text_encoder_2", Path: filepath.Join(base, "text_encoder_2")},
				{Name: "vae", Path: filepath.Join(base, "ae.safetensors")},
				{Name: "denoiser", Path: filepath.Join(base, "flux1-dev.safetensors")},
			},
			OverlayPath: r.overlayPath(f),
		}, nil
	default:
		return pipeline.WeightManifest{}, unknownFamilyError{id: string(f)}
	}
}

// overlayPath returns the first overlay weight file for a family, or "".
func (r *Registry) overlayPath(f types.Family) string {
	dir := filepath.Join(r.root, "lora", string(f))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".safetensors") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0])
}

// Available reports whether every manifest component for a family is present.
func (r *Registry) Available(f types.Family) bool {
	m, err := r.Manifest(f)
	if err != nil {
		return false
	}
	for _, c := range m.Components {
		if !fsutil.PathExists(c.Path) {
			return false
		}
	}
	return true
}

// Families lists all known families with availability and capability info
// for the capability listing endpoint.
func (r *Registry) Families() []types.FamilyInfo {
	out := make([]types.FamilyInfo, 0, len(familySpecs))
	for _, s := range familySpecs {
		info := types.FamilyInfo{
			FamilySpec: s,
			Available:  r.Available(s.ID),
			Features:   []string{"txt2img", "img2img"},
		}
		if s.SupportsNegativePrompt {
			info.DefaultNegativePrompt = DefaultNegativePrompt
		}
		out = append(out, info)
	}
	return out
}

// SetDefaultFamily pins the family used when requests omit one.
func (r *Registry) SetDefaultFamily(f types.Family) error {
	if _, ok := Spec(f); !ok {
		return unknownFamilyError{id: string(f)}
	}
	r.defaultOverride = f
	return nil
}

// DefaultFamily prefers the configured override, then flux when present,
// falling back to sdxl.
func (r *Registry) DefaultFamily() types.Family {
	if r.defaultOverride != "" {
		return r.defaultOverride
	}
	if r.Available(types.FamilyFlux) {
		return types.FamilyFlux
	}
	return types.FamilySDXL
}
