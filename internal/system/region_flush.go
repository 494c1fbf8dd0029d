package system

import (
	"time"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/region"
)

// RegionFlushSystem drains deferred region spawn queues and then flushes
// every player's send queue. This is the only place per-region broadcast
// batching happens, so all region traffic coalesces per tick.
type RegionFlushSystem struct {
	regions *region.Manager
	bridge  *net.Bridge
}

func NewRegionFlushSystem(regions *region.Manager, bridge *net.Bridge) *RegionFlushSystem {
	return &RegionFlushSystem{regions: regions, bridge: bridge}
}

func (s *RegionFlushSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *RegionFlushSystem) Update(time.Duration) {
	s.regions.FlushIncoming()
	s.bridge.Flush()
}
