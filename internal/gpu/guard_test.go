package gpu

import (
	"errors"
	"testing"
)

// fakeDevice simulates an accelerator for guard tests.
type fakeDevice struct {
	available   bool
	allocated   uint64
	afterReclam uint64
	syncCalls   int
	reclaims    int
	syncErr     error
}

func (d *fakeDevice) Name() string    { return "fake" }
func (d *fakeDevice) Available() bool { return d.available }
func (d *fakeDevice) AllocatedBytes() (uint64, error) {
	return d.allocated, nil
}
func (d *fakeDevice) Synchronize() error {
	d.syncCalls++
	return d.syncErr
}
func (d *fakeDevice) ReclaimCache() error {
	d.reclaims++
	d.allocated = d.afterReclam
	return nil
}

func TestGuardAdmissionAllowedUnderHeadroom(t *testing.T) {
	dev := &fakeDevice{available: true, allocated: 512 << 20}
	g := NewGuard(dev, 1<<30)
	adm, err := g.CheckAdmission()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !adm.Allowed {
		t.Fatalf("expected allowed, residual=%d", adm.ResidualBytes)
	}
}

func TestGuardAdmissionDeniedReportsResidual(t *testing.T) {
	dev := &fakeDevice{available: true, allocated: 3 << 30}
	g := NewGuard(dev, 1<<30)
	adm, err := g.CheckAdmission()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if adm.Allowed {
		t.Fatalf("expected denial")
	}
	if adm.ResidualBytes != 3<<30 {
		t.Fatalf("residual=%d", adm.ResidualBytes)
	}
}

func TestGuardForceReclaimSynchronizesThenClears(t *testing.T) {
	dev := &fakeDevice{available: true, allocated: 3 << 30, afterReclam: 100 << 20}
	g := NewGuard(dev, 0)
	if err := g.ForceReclaim(); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if dev.syncCalls != 1 || dev.reclaims != 1 {
		t.Fatalf("sync=%d reclaims=%d", dev.syncCalls, dev.reclaims)
	}
	adm, err := g.CheckAdmission()
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !adm.Allowed {
		t.Fatalf("expected allowed after reclaim, residual=%d", adm.ResidualBytes)
	}
}

func TestGuardForceReclaimPropagatesSyncError(t *testing.T) {
	dev := &fakeDevice{available: true, syncErr: errors.New("barrier stuck")}
	g := NewGuard(dev, 0)
	if err := g.ForceReclaim(); err == nil {
		t.Fatalf("expected error")
	}
	if dev.reclaims != 0 {
		t.Fatalf("reclaim must not run after a failed barrier")
	}
}

func TestGuardHostDeviceAlwaysAdmits(t *testing.T) {
	g := NewGuard(NewHostDevice(), 0)
	if err := g.ForceReclaim(); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	adm, err := g.CheckAdmission()
	if err != nil || !adm.Allowed {
		t.Fatalf("adm=%+v err=%v", adm, err)
	}
	if g.HeadroomBytes() != DefaultHeadroomBytes {
		t.Fatalf("headroom=%d", g.HeadroomBytes())
	}
}
