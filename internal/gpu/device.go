package gpu

// Device abstracts the accelerator runtime the guard measures and reclaims.
// Implementations wrap the generation library's device handle; tests use
// fakes.
type Device interface {
	// Name returns a human-readable device name.
	Name() string
	// Available reports whether an accelerator is present.
	Available() bool
	// AllocatedBytes returns the bytes currently allocated on the device.
	AllocatedBytes() (uint64, error)
	// Synchronize blocks until all queued device work has completed.
	Synchronize() error
	// ReclaimCache releases allocator-cached blocks back to the device.
	ReclaimCache() error
}

// hostDevice is the device used in accelerator-less builds. It reports no
// allocation so admission always succeeds and reclaim is a no-op.
type hostDevice struct{}

// NewHostDevice returns a Device for hosts without an accelerator.
func NewHostDevice() Device { return hostDevice{} }

func (hostDevice) Name() string                    { return "host" }
func (hostDevice) Available() bool                 { return false }
func (hostDevice) AllocatedBytes() (uint64, error) { return 0, nil }
func (hostDevice) Synchronize() error              { return nil }
func (hostDevice) ReclaimCache() error             { return nil }
