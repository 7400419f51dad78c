package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/image/draw"

	"imaged/internal/pipeline"
	"imaged/pkg/types"
)

// seedSpace matches the base-seed range drawn when a request omits the seed.
const seedSpace = 1_000_000_000

// Generate validates the request, acquires the resident pipeline (evicting
// another family if needed), and runs the sequential per-image loop. Image i
// of the batch always uses baseSeed+i, so results are reproducible given an
// explicit seed.
func (e *Engine) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	start := time.Now()

	family := types.Family(req.Family)
	if family == "" {
		family = e.catalog.DefaultFamily()
	}
	spec, ok := e.catalog.Spec(family)
	if !ok {
		return types.GenerateResponse{}, ErrValidation(fmt.Sprintf("unknown model family: %s", family))
	}
	applyDefaults(spec, &req)
	if err := validateRequest(spec, &req); err != nil {
		return types.GenerateResponse{}, err
	}

	mode := "txt2img"
	var initImg image.Image
	if req.InitImage != "" {
		mode = "img2img"
		decoded, err := decodeInitImage(req.InitImage)
		if err != nil {
			return types.GenerateResponse{}, ErrValidation("init_image: " + err.Error())
		}
		initImg = resizeTo(decoded, req.Width, req.Height)
	}

	release, err := e.beginGeneration(ctx)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	defer release()

	p, done, err := e.slot.Acquire(ctx, family)
	if err != nil {
		return types.GenerateResponse{}, err
	}
	defer done()

	var baseSeed int64
	if req.Seed != nil {
		baseSeed = *req.Seed
	} else {
		baseSeed = rand.Int64N(seedSpace)
	}

	e.log.Info().
		Str("family", string(family)).
		Str("mode", mode).
		Int("count", req.NumImages).
		Int64("seed", baseSeed).
		Msg("generation start")

	artifacts := make([]types.Artifact, 0, req.NumImages)
	for i := 0; i < req.NumImages; i++ {
		// Cancellation is honored between images, never mid-image.
		if err := ctx.Err(); err != nil {
			return types.GenerateResponse{}, generationFailureError{cause: err, partial: artifacts}
		}
		params := pipeline.ImageParams{
			Prompt:          req.Prompt,
			NegativePrompt:  req.NegativePrompt,
			Width:           req.Width,
			Height:          req.Height,
			Steps:           req.Steps,
			Guidance:        req.Guidance,
			Seed:            baseSeed + int64(i),
			InitImage:       initImg,
			DenoiseStrength: req.DenoiseStrength,
			Tiled:           req.Tiled,
		}
		img, err := p.Generate(ctx, params)
		if err != nil {
			e.log.Error().Err(err).Int("image", i).Msg("generation failed")
			return types.GenerateResponse{}, generationFailureError{cause: err, partial: artifacts}
		}
		art, err := e.store.Save(ctx, img, family, mode, params.Seed)
		if err != nil {
			return types.GenerateResponse{}, generationFailureError{cause: fmt.Errorf("persist image %d: %w", i, err), partial: artifacts}
		}
		artifacts = append(artifacts, art)
		imagesTotal.WithLabelValues(string(family), mode).Inc()
		e.images.Add(1)
	}

	elapsed := time.Since(start)
	generationDuration.WithLabelValues(string(family), mode).Observe(elapsed.Seconds())
	e.log.Info().
		Str("family", string(family)).
		Int("count", len(artifacts)).
		Dur("dur", elapsed).
		Msg("generation done")

	return types.GenerateResponse{
		Images:         artifacts,
		Seed:           baseSeed,
		Family:         string(family),
		Mode:           mode,
		GenerationTime: elapsed.Seconds(),
	}, nil
}

// decodeInitImage decodes a base64 source image, accepting an optional
// data-URL prefix.
func decodeInitImage(s string) (image.Image, error) {
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		s = s[idx+len(";base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("undecodable image: %w", err)
	}
	return img, nil
}

// resizeTo scales the source image to the target generation dimensions.
func resizeTo(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
