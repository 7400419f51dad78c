package engine

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"imaged/internal/gpu"
	"imaged/internal/pipeline"
	"imaged/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
)

// ArtifactSaver persists one generated image and returns its artifact.
type ArtifactSaver interface {
	Save(ctx context.Context, img image.Image, family types.Family, mode string, seed int64) (types.Artifact, error)
}

// FamilyCatalog is what the engine needs from the model registry.
type FamilyCatalog interface {
	ManifestProvider
	Spec(f types.Family) (types.FamilySpec, bool)
	Families() []types.FamilyInfo
	DefaultFamily() types.Family
	Available(f types.Family) bool
}

// Config encapsulates all tunables for Engine construction.
type Config struct {
	Catalog FamilyCatalog
	Guard   *gpu.Guard
	Loader  *pipeline.Loader
	Store   ArtifactSaver
	// Offload keeps pipeline weights in host memory, streamed on demand.
	Offload       bool
	MaxQueueDepth int
	MaxWait       time.Duration
	Publisher     EventPublisher
	Logger        zerolog.Logger
}

// Engine validates generation requests, serializes access to the single
// pipeline slot, drives the per-image loop, and persists artifacts.
type Engine struct {
	catalog   FamilyCatalog
	guard     *gpu.Guard
	slot      *Slot
	store     ArtifactSaver
	publisher EventPublisher
	log       zerolog.Logger

	maxWait time.Duration
	queueCh chan struct{} // buffered: queue slots
	genCh   chan struct{} // size 1: single in-flight batch

	startTime time.Time
	images    atomic.Uint64
}

// New constructs an Engine from Config, applying package defaults.
func New(cfg Config) *Engine {
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = defaultMaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return &Engine{
		catalog:   cfg.Catalog,
		guard:     cfg.Guard,
		slot:      NewSlot(cfg.Guard, cfg.Loader, cfg.Catalog, cfg.Offload, cfg.Publisher, cfg.Logger),
		store:     cfg.Store,
		publisher: cfg.Publisher,
		log:       cfg.Logger,
		maxWait:   cfg.MaxWait,
		queueCh:   make(chan struct{}, cfg.MaxQueueDepth),
		genCh:     make(chan struct{}, 1),
		startTime: time.Now(),
	}
}

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func to be deferred.
func (e *Engine) beginGeneration(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(e.maxWait)
	defer timer.Stop()
	select {
	case e.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, tooBusyError{}
	}

	acquired := false
	defer func() {
		if !acquired {
			<-e.queueCh
		}
	}()
	timer2 := time.NewTimer(e.maxWait)
	defer timer2.Stop()
	select {
	case e.genCh <- struct{}{}:
		acquired = true
		return func() { <-e.genCh; <-e.queueCh }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer2.C:
		return nil, tooBusyError{}
	}
}

// Close releases the resident pipeline on shutdown.
func (e *Engine) Close() error {
	return e.slot.Close()
}
