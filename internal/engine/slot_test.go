package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestSlotLoadErrorForcesEmptyAndRetriesCleanly(t *testing.T) {
	rig := newTestRig(t, nil)
	// Break the flux manifest: remove the denoiser weights after seeding.
	denoiser := filepath.Join(rig.modelsRoot, "FLUX", "FLUX.1-dev", "flux1-dev.safetensors")
	if err := os.Remove(denoiser); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err := rig.engine.Generate(context.Background(), validRequest("flux"))
	if err == nil {
		t.Fatalf("expected load failure")
	}
	snap := rig.engine.slot.Snapshot()
	if snap.State != SlotEmpty {
		t.Fatalf("state=%s", snap.State)
	}
	if snap.LastErr == "" {
		t.Fatalf("last error not recorded")
	}
	if n := rig.events.Count("load_error"); n != 1 {
		t.Fatalf("load_error events=%d", n)
	}

	// Restore the weights: the next request must load fresh.
	if err := os.WriteFile(denoiser, []byte("w"), 0o644); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := rig.engine.Generate(context.Background(), validRequest("flux")); err != nil {
		t.Fatalf("retry: %v", err)
	}
	snap = rig.engine.slot.Snapshot()
	if snap.State != SlotResident || snap.LastErr != "" {
		t.Fatalf("snapshot after retry=%+v", snap)
	}
}

func TestSlotCloseReleasesResidentPipeline(t *testing.T) {
	rig := newTestRig(t, nil)
	if _, err := rig.engine.Generate(context.Background(), validRequest("flux")); err != nil {
		t.Fatalf("generate: %v", err)
	}
	p := rig.backend.lastPipeline()
	if err := rig.engine.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !p.closed {
		t.Fatalf("pipeline not closed on shutdown")
	}
	if snap := rig.engine.slot.Snapshot(); snap.State != SlotEmpty {
		t.Fatalf("state=%s", snap.State)
	}
}

func TestStatusReflectsSlotAndCounters(t *testing.T) {
	rig := newTestRig(t, nil)
	req := validRequest("flux")
	req.NumImages = 2
	if _, err := rig.engine.Generate(context.Background(), req); err != nil {
		t.Fatalf("generate: %v", err)
	}
	st := rig.engine.Status()
	if st.SlotState != string(SlotResident) || st.ResidentFamily != "flux" {
		t.Fatalf("status=%+v", st)
	}
	if st.LoadsTotal != 1 || st.EvictionsTotal != 0 || st.ImagesTotal != 2 {
		t.Fatalf("counters=%+v", st)
	}
	if st.MaxQueueDepth != defaultMaxQueueDepth {
		t.Fatalf("queue depth=%d", st.MaxQueueDepth)
	}
	if st.HeadroomBytes != 1<<30 {
		t.Fatalf("headroom=%d", st.HeadroomBytes)
	}
}

func TestFamiliesListsAvailability(t *testing.T) {
	rig := newTestRig(t, nil)
	resp := rig.engine.Families()
	if len(resp.Models) != 2 {
		t.Fatalf("models=%d", len(resp.Models))
	}
	if resp.DefaultModel != "flux" {
		t.Fatalf("default=%s", resp.DefaultModel)
	}
	if !rig.engine.Ready() {
		t.Fatalf("engine should be ready with seeded models")
	}
}

func TestDecodeInitImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	for _, s := range []string{b64, "data:image/png;base64," + b64} {
		img, err := decodeInitImage(s)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if img.Bounds().Dx() != 8 {
			t.Fatalf("bounds=%v", img.Bounds())
		}
	}

	if _, err := decodeInitImage("%%%not-base64%%%"); err == nil {
		t.Fatalf("expected base64 error")
	}
	if _, err := decodeInitImage(base64.StdEncoding.EncodeToString([]byte("not an image"))); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestResizeToTargetDims(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	out := resizeTo(src, 16, 32)
	if out.Bounds().Dx() != 16 || out.Bounds().Dy() != 32 {
		t.Fatalf("bounds=%v", out.Bounds())
	}
	// Same-size input is returned as-is.
	if resizeTo(src, 8, 8) != image.Image(src) {
		t.Fatalf("expected identity for matching dims")
	}
}

func TestGenerateImg2ImgPassesResizedSource(t *testing.T) {
	rig := newTestRig(t, nil)
	src := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	req := validRequest("flux")
	req.InitImage = base64.StdEncoding.EncodeToString(buf.Bytes())
	req.DenoiseStrength = 0.6

	resp, err := rig.engine.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Mode != "img2img" {
		t.Fatalf("mode=%s", resp.Mode)
	}
	params := rig.backend.lastPipeline().params[0]
	if params.InitImage == nil {
		t.Fatalf("init image not passed")
	}
	if b := params.InitImage.Bounds(); b.Dx() != 1024 || b.Dy() != 1024 {
		t.Fatalf("init image bounds=%v", b)
	}
	if params.DenoiseStrength != 0.6 {
		t.Fatalf("denoise=%v", params.DenoiseStrength)
	}
}
