package gpu

import "fmt"

// DefaultHeadroomBytes is the residual allocation tolerated after a reclaim.
// Anything above it means a previous pipeline did not fully release its
// memory, and admission is denied rather than risking an allocation failure
// mid-load.
const DefaultHeadroomBytes = 1 << 30 // 1 GiB of bookkeeping structures

// Admission is the outcome of an admission check.
type Admission struct {
	Allowed       bool
	ResidualBytes uint64
}

// Guard enforces accelerator-memory admission before a pipeline load.
// It never retries: some allocators do not guarantee full release on leaked
// references, so "memory would not free" is reported as a denial and the
// request fails fast.
type Guard struct {
	dev      Device
	headroom uint64
}

// NewGuard builds a Guard over dev. A zero headroomBytes selects the default.
func NewGuard(dev Device, headroomBytes uint64) *Guard {
	if headroomBytes == 0 {
		headroomBytes = DefaultHeadroomBytes
	}
	return &Guard{dev: dev, headroom: headroomBytes}
}

// ForceReclaim triggers a best-effort release of device memory: a
// synchronous device barrier followed by an allocator cache clear. It must
// run to completion before any load begins.
func (g *Guard) ForceReclaim() error {
	if !g.dev.Available() {
		return nil
	}
	if err := g.dev.Synchronize(); err != nil {
		return fmt.Errorf("device synchronize: %w", err)
	}
	if err := g.dev.ReclaimCache(); err != nil {
		return fmt.Errorf("device cache reclaim: %w", err)
	}
	return nil
}

// CheckAdmission re-measures allocated memory and compares it against the
// headroom threshold.
func (g *Guard) CheckAdmission() (Admission, error) {
	if !g.dev.Available() {
		return Admission{Allowed: true}, nil
	}
	allocated, err := g.dev.AllocatedBytes()
	if err != nil {
		return Admission{}, fmt.Errorf("device allocation query: %w", err)
	}
	if allocated > g.headroom {
		return Admission{Allowed: false, ResidualBytes: allocated}, nil
	}
	return Admission{Allowed: true, ResidualBytes: allocated}, nil
}

// AllocatedBytes reports current device allocation for status endpoints.
// Returns 0 when the device cannot be queried.
func (g *Guard) AllocatedBytes() uint64 {
	if !g.dev.Available() {
		return 0
	}
	n, err := g.dev.AllocatedBytes()
	if err != nil {
		return 0
	}
	return n
}

// HeadroomBytes returns the configured admission threshold.
func (g *Guard) HeadroomBytes() uint64 { return g.headroom }
