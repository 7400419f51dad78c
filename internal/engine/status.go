package engine

import (
	"time"

	"imaged/pkg/types"
)

// Families builds the capability listing for the route layer.
func (e *Engine) Families() types.FamiliesResponse {
	resp := types.FamiliesResponse{Models: e.catalog.Families()}
	def := e.catalog.DefaultFamily()
	if e.catalog.Available(def) {
		resp.DefaultModel = string(def)
	}
	return resp
}

// Ready reports whether at least one family can currently be served.
func (e *Engine) Ready() bool {
	for _, f := range e.catalog.Families() {
		if f.Available {
			return true
		}
	}
	return false
}

// Status builds a detailed status response for GET /status.
func (e *Engine) Status() types.StatusResponse {
	snap := e.slot.Snapshot()
	return types.StatusResponse{
		SlotState:            string(snap.State),
		ResidentFamily:       string(snap.Family),
		SlotGeneration:       snap.Generation,
		EvictionsTotal:       snap.Evictions,
		LoadsTotal:           snap.Loads,
		ImagesTotal:          e.images.Load(),
		QueueLen:             len(e.queueCh),
		Inflight:             len(e.genCh),
		MaxQueueDepth:        cap(e.queueCh),
		LastError:            snap.LastErr,
		DeviceAllocatedBytes: e.guard.AllocatedBytes(),
		HeadroomBytes:        e.guard.HeadroomBytes(),
		UptimeSeconds:        int64(time.Since(e.startTime) / time.Second),
		ServerTimeUnix:       time.Now().Unix(),
	}
}
