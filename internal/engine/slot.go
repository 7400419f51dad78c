package engine

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"imaged/internal/gpu"
	"imaged/internal/pipeline"
	"imaged/pkg/types"
)

// SlotState is the lifecycle state of the single pipeline cache slot.
type SlotState string

const (
	SlotEmpty    SlotState = "empty"
	SlotLoading  SlotState = "loading"
	SlotResident SlotState = "resident"
	SlotDraining SlotState = "draining"
	SlotError    SlotState = "error"
)

// ManifestProvider resolves the weight manifest for a family.
type ManifestProvider interface {
	Manifest(f types.Family) (pipeline.WeightManifest, error)
}

// Slot owns at most one resident pipeline process-wide. Family switches
// fully drain (close handle, reclaim device memory, confirm admission)
// before the next load; there is no dual-residency state even transiently.
type Slot struct {
	// mu is the exclusive critical section. Acquire returns with it held
	// and the caller keeps it until end of batch, so no second request can
	// use the pipeline or trigger an eviction mid-generation.
	mu sync.Mutex

	guard     *gpu.Guard
	loader    *pipeline.Loader
	manifests ManifestProvider
	offload   bool
	publisher EventPublisher
	log       zerolog.Logger

	// handle is only touched under mu.
	handle pipeline.Pipeline

	// statMu guards the observable fields below so /status never blocks on
	// a long-running generation.
	statMu     sync.Mutex
	state      SlotState
	family     types.Family
	generation uint64
	evictions  uint64
	loads      uint64
	lastErr    string
}

// NewSlot builds an empty Slot.
func NewSlot(guard *gpu.Guard, loader *pipeline.Loader, manifests ManifestProvider, offload bool, publisher EventPublisher, log zerolog.Logger) *Slot {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &Slot{
		guard:     guard,
		loader:    loader,
		manifests: manifests,
		offload:   offload,
		publisher: publisher,
		log:       log,
		state:     SlotEmpty,
	}
}

// SlotSnapshot is a read-only projection of the slot state.
type SlotSnapshot struct {
	State      SlotState
	Family     types.Family
	Generation uint64
	Evictions  uint64
	Loads      uint64
	LastErr    string
}

// Snapshot returns the observable slot state without taking the slot lock.
func (s *Slot) Snapshot() SlotSnapshot {
	s.statMu.Lock()
	defer s.statMu.Unlock()
	return SlotSnapshot{
		State:      s.state,
		Family:     s.family,
		Generation: s.generation,
		Evictions:  s.evictions,
		Loads:      s.loads,
		LastErr:    s.lastErr,
	}
}

func (s *Slot) setState(st SlotState) {
	s.statMu.Lock()
	s.state = st
	s.statMu.Unlock()
}

// Acquire returns a resident pipeline of the requested family, evicting any
// other family first. It returns with the slot lock held; the release func
// must be called once the whole batch is done.
func (s *Slot) Acquire(ctx context.Context, family types.Family) (pipeline.Pipeline, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	p, err := s.acquireLocked(ctx, family)
	if err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	return p, s.mu.Unlock, nil
}

func (s *Slot) acquireLocked(ctx context.Context, family types.Family) (pipeline.Pipeline, error) {
	if s.handle != nil {
		if s.handle.Family() == family {
			return s.handle, nil
		}
		if err := s.evictLocked(); err != nil {
			return nil, err
		}
	}
	return s.loadLocked(ctx, family)
}

// evictLocked drains the resident handle and reclaims its device memory.
// The slot always ends empty, even when admission is denied afterwards.
func (s *Slot) evictLocked() error {
	evicted := s.handle.Family()
	s.setState(SlotDraining)
	s.log.Info().Str("family", string(evicted)).Msg("evicting resident pipeline")
	if err := s.handle.Close(); err != nil {
		s.log.Warn().Err(err).Str("family", string(evicted)).Msg("pipeline close reported error")
	}
	s.handle = nil

	s.statMu.Lock()
	s.family = ""
	s.generation++
	s.evictions++
	s.state = SlotEmpty
	s.statMu.Unlock()
	evictionsTotal.WithLabelValues(string(evicted)).Inc()
	s.publisher.Publish(Event{Name: "slot_evict", Family: string(evicted), Fields: map[string]any{}})

	if err := s.guard.ForceReclaim(); err != nil {
		return err
	}
	adm, err := s.guard.CheckAdmission()
	if err != nil {
		return err
	}
	if !adm.Allowed {
		admissionDenials.Inc()
		s.publisher.Publish(Event{Name: "admission_denied", Family: string(evicted), Fields: map[string]any{"residual_bytes": adm.ResidualBytes}})
		return resourceExhaustedError{residualBytes: adm.ResidualBytes}
	}
	return nil
}

// loadLocked runs the guard then constructs the pipeline. A load failure
// forces the slot back to empty so the next request can retry cleanly.
func (s *Slot) loadLocked(ctx context.Context, family types.Family) (pipeline.Pipeline, error) {
	if err := s.guard.ForceReclaim(); err != nil {
		return nil, err
	}
	adm, err := s.guard.CheckAdmission()
	if err != nil {
		return nil, err
	}
	if !adm.Allowed {
		admissionDenials.Inc()
		s.publisher.Publish(Event{Name: "admission_denied", Family: string(family), Fields: map[string]any{"residual_bytes": adm.ResidualBytes}})
		return nil, resourceExhaustedError{residualBytes: adm.ResidualBytes}
	}

	manifest, err := s.manifests.Manifest(family)
	if err != nil {
		return nil, err
	}

	s.setState(SlotLoading)
	s.publisher.Publish(Event{Name: "load_start", Family: string(family), Fields: map[string]any{}})
	s.log.Info().Str("family", string(family)).Bool("offload", s.offload).Msg("loading pipeline")

	p, err := s.loader.Load(ctx, manifest, s.offload)
	if err != nil {
		// Error is transient: record it and force the slot empty so the
		// guard re-runs on the next attempt.
		s.statMu.Lock()
		s.lastErr = err.Error()
		s.state = SlotEmpty
		s.statMu.Unlock()
		s.publisher.Publish(Event{Name: "load_error", Family: string(family), Fields: map[string]any{"error": err.Error()}})
		s.log.Error().Err(err).Str("family", string(family)).Msg("pipeline load failed")
		return nil, err
	}

	s.handle = p
	s.statMu.Lock()
	s.family = family
	s.loads++
	s.lastErr = ""
	s.state = SlotResident
	s.statMu.Unlock()
	loadsTotal.WithLabelValues(string(family)).Inc()
	s.publisher.Publish(Event{Name: "load_ready", Family: string(family), Fields: map[string]any{}})
	s.log.Info().Str("family", string(family)).Msg("pipeline resident")
	return p, nil
}

// Close releases the resident pipeline on process shutdown.
func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	s.statMu.Lock()
	s.family = ""
	s.generation++
	s.state = SlotEmpty
	s.statMu.Unlock()
	if rerr := s.guard.ForceReclaim(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
