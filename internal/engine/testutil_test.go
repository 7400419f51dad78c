package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/gpu"
	"imaged/internal/pipeline"
	"imaged/internal/registry"
	"imaged/pkg/types"
)

// testDevice simulates the accelerator. Reclaim resets the allocation to
// afterReclaim, so tests can model both healthy and leaky devices.
type testDevice struct {
	mu           sync.Mutex
	allocated    uint64
	afterReclaim uint64
}

func (d *testDevice) Name() string    { return "testdev" }
func (d *testDevice) Available() bool { return true }
func (d *testDevice) AllocatedBytes() (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocated, nil
}
func (d *testDevice) Synchronize() error { return nil }
func (d *testDevice) ReclaimCache() error {
	d.mu.Lock()
	d.allocated = d.afterReclaim
	d.mu.Unlock()
	return nil
}

// testPipeline records the params of every Generate call.
type testPipeline struct {
	backend *testBackend
	family  types.Family
	mu      sync.Mutex
	params  []pipeline.ImageParams
	closed  bool
}

func (p *testPipeline) Family() types.Family { return p.family }

func (p *testPipeline) Generate(ctx context.Context, params pipeline.ImageParams) (image.Image, error) {
	p.mu.Lock()
	p.params = append(p.params, params)
	n := len(p.params)
	p.mu.Unlock()
	if p.backend.blockGen != nil {
		<-p.backend.blockGen
	}
	if p.backend.onGenerate != nil {
		p.backend.onGenerate(n)
	}
	if p.backend.failOnImage > 0 && n >= p.backend.failOnImage {
		return nil, fmt.Errorf("sampler diverged")
	}
	return image.NewRGBA(image.Rect(0, 0, params.Width, params.Height)), nil
}

func (p *testPipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *testPipeline) seeds() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, len(p.params))
	for i, params := range p.params {
		out[i] = params.Seed
	}
	return out
}

// testBackend counts builds and hands out testPipelines.
type testBackend struct {
	mu          sync.Mutex
	builds      int
	pipelines   []*testPipeline
	failOnImage int         // >0: Generate fails on the nth call of a pipeline
	blockGen    chan struct{} // non-nil: Generate blocks until the channel closes
	onGenerate  func(n int)
}

func (b *testBackend) Build(ctx context.Context, manifest pipeline.WeightManifest, opts pipeline.BuildOptions) (pipeline.Pipeline, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.builds++
	p := &testPipeline{backend: b, family: manifest.Family}
	b.pipelines = append(b.pipelines, p)
	return p, nil
}

func (b *testBackend) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

func (b *testBackend) lastPipeline() *testPipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pipelines) == 0 {
		return nil
	}
	return b.pipelines[len(b.pipelines)-1]
}

// testStore records saves in order.
type testStore struct {
	mu    sync.Mutex
	saves []types.Artifact
	fail  bool
}

func (s *testStore) Save(ctx context.Context, img image.Image, family types.Family, mode string, seed int64) (types.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return types.Artifact{}, fmt.Errorf("disk full")
	}
	a := types.Artifact{
		ID:       fmt.Sprintf("art-%d", len(s.saves)),
		Filename: fmt.Sprintf("%s_%s_%d.png", family, mode, len(s.saves)),
		Seed:     seed,
	}
	s.saves = append(s.saves, a)
	return a, nil
}

// seedModelsDir lays out flux and sdxl weight trees under a temp root.
func seedModelsDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		filepath.Join(root, "FLUX", "FLUX.1-dev", "text_encoder", "model.safetensors"),
		filepath.Join(root, "FLUX", "FLUX.1-dev", "ae.safetensors"),
		filepath.Join(root, "FLUX", "FLUX.1-dev", "flux1-dev.safetensors"),
		filepath.Join(root, "stable_diffusion_xl", "sd_xl_base_1.0.safetensors"),
	}
	for _, p := range files {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte("w"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "FLUX", "FLUX.1-dev", "text_encoder_2"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	return root
}

type testRig struct {
	engine     *Engine
	backend    *testBackend
	store      *testStore
	events     *MemoryPublisher
	device     *testDevice
	modelsRoot string
}

func newTestRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()
	root := seedModelsDir(t)
	reg, err := registry.New(root)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	backend := &testBackend{}
	store := &testStore{}
	events := NewMemoryPublisher()
	device := &testDevice{}
	cfg := Config{
		Catalog:   reg,
		Guard:     gpu.NewGuard(device, 1<<30),
		Loader:    pipeline.NewLoader(backend),
		Store:     store,
		MaxWait:   2 * time.Second,
		Publisher: events,
		Logger:    zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &testRig{
		engine:     New(cfg),
		backend:    backend,
		store:      store,
		events:     events,
		device:     device,
		modelsRoot: root,
	}
}

func validRequest(family string) types.GenerateRequest {
	return types.GenerateRequest{
		Family: family,
		Prompt: "a mountain lake at sunset",
		Width:  1024,
		Height: 1024,
	}
}
