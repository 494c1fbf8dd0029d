package region

import (
	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/net"
)

// Manager tracks per-region entity and observer sets and keeps each player's
// client aware of exactly the entities in its 3x3 interest block.
//
// All methods run on the game-loop goroutine.
type Manager struct {
	part   *Partition
	grid   *data.MapGrid
	bridge *net.Bridge
	log    *zap.Logger

	regions map[Key]*record

	// loaded tracks which regions each player has received static map data
	// for, so SendRegion never re-sends tiles.
	loaded map[int32]map[ID]struct{}

	// Invisible is the external visibility predicate. Nil means everything
	// is visible.
	Invisible func(observer, entity Entity) bool
}

func NewManager(part *Partition, grid *data.MapGrid, bridge *net.Bridge, log *zap.Logger) *Manager {
	m := &Manager{
		part:    part,
		grid:    grid,
		bridge:  bridge,
		log:     log,
		regions: make(map[Key]*record),
		loaded:  make(map[int32]map[ID]struct{}),
	}
	part.ForEachRegion(func(id ID) {
		key := Key{Region: id}
		m.regions[key] = newRecord(key)
	})
	return m
}

func (m *Manager) ensure(key Key) *record {
	r, ok := m.regions[key]
	if !ok {
		r = newRecord(key)
		m.regions[key] = r
	}
	return r
}

// keyFor computes the region key an entity belongs in at its current
// position, honoring its instance owner.
func (m *Manager) keyFor(e Entity) Key {
	x, y := e.Position()
	return Key{Region: m.part.FromPosition(x, y), Owner: e.InstanceOwner()}
}

// Handle re-evaluates an entity's region placement. Called on first
// registration and on every position update. Re-placement into the same
// region is a no-op.
func (m *Manager) Handle(e Entity) {
	newKey := m.keyFor(e)
	if old, placed := e.RegionKey(); placed && old == newKey {
		return
	}

	oldRegions := m.removeFromAdjacency(e)
	newRegions := m.addToAdjacency(e, newKey)

	// Regions that fell out of the adjacency union must be told to despawn
	// the entity even though it never stood in them.
	recent := diffKeys(oldRegions, newRegions)
	e.SetRecentRegions(recent)
	e.SetRegionKey(newKey)
}

// Remove deletes the entity from every region in its last-known adjacency
// set. Safe to call for an entity that was never placed.
func (m *Manager) Remove(e Entity) {
	old := m.removeFromAdjacency(e)
	e.SetRecentRegions(old)
	e.ClearRegion()
}

// RemovePlayer performs full disconnect cleanup: region membership, the
// loaded-region memo, and any pending incoming references.
func (m *Manager) RemovePlayer(e Entity) {
	m.Remove(e)
	delete(m.loaded, e.Instance())
	// A region crossed twice in one tick holds two incoming entries for the
	// player; scrub them all or the flush spawns a ghost.
	for _, r := range m.regions {
		kept := r.incoming[:0]
		for _, inc := range r.incoming {
			if inc.Instance() != e.Instance() {
				kept = append(kept, inc)
			}
		}
		r.incoming = kept
	}
}

func (m *Manager) removeFromAdjacency(e Entity) []Key {
	old, placed := e.RegionKey()
	if !placed {
		return nil
	}
	removed := make([]Key, 0, 9)
	m.part.ForEachAdjacent(old.Region, func(id ID) {
		key := Key{Region: id, Owner: old.Owner}
		if r, ok := m.regions[key]; ok && r.remove(e.Instance()) {
			removed = append(removed, key)
		}
	})
	return removed
}

func (m *Manager) addToAdjacency(e Entity, newKey Key) []Key {
	added := make([]Key, 0, 9)
	m.part.ForEachAdjacent(newKey.Region, func(id ID) {
		key := Key{Region: id, Owner: newKey.Owner}
		r := m.ensure(key)
		r.add(e)
		r.incoming = append(r.incoming, e)
		added = append(added, key)
	})
	return added
}

func diffKeys(old, new []Key) []Key {
	out := make([]Key, 0, len(old))
	for _, o := range old {
		found := false
		for _, n := range new {
			if o == n {
				found = true
				break
			}
		}
		if !found {
			out = append(out, o)
		}
	}
	return out
}

// FlushIncoming drains every region's deferred spawn queue, sending one
// Spawn per (player, entity) pair. An entity never receives its own spawn.
// Duplicate sends from overlapping adjacency blocks are coalesced per flush.
func (m *Manager) FlushIncoming() {
	type pair struct{ player, entity int32 }
	sent := make(map[pair]struct{})

	for _, r := range m.regions {
		if len(r.incoming) == 0 {
			continue
		}
		for _, e := range r.incoming {
			msg := net.Message{Kind: net.KindSpawn, Data: e.SpawnData()}
			for pid, observer := range r.players {
				if pid == e.Instance() {
					continue
				}
				if m.Invisible != nil && m.Invisible(observer, e) {
					continue
				}
				p := pair{player: pid, entity: e.Instance()}
				if _, dup := sent[p]; dup {
					continue
				}
				sent[p] = struct{}{}
				m.bridge.PushToPlayer(pid, msg)
			}
		}
		r.incoming = r.incoming[:0]
	}
}

// PushToRegion queues a message for every player observing one region.
func (m *Manager) PushToRegion(key Key, msg net.Message, ignore int32) {
	r, ok := m.regions[key]
	if !ok {
		return
	}
	for pid := range r.players {
		if pid != ignore {
			m.bridge.PushToPlayer(pid, msg)
		}
	}
}

// PushToAdjacent queues a message for every player observing any region in
// the 3x3 block. Each player receives the message once.
func (m *Manager) PushToAdjacent(key Key, msg net.Message, ignore int32) {
	seen := make(map[int32]struct{}, 16)
	m.part.ForEachAdjacent(key.Region, func(id ID) {
		r, ok := m.regions[Key{Region: id, Owner: key.Owner}]
		if !ok {
			return
		}
		for pid := range r.players {
			if pid == ignore {
				continue
			}
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			m.bridge.PushToPlayer(pid, msg)
		}
	})
}

// EntityList returns the instance ids present in the player's own region,
// excluding the player itself. Sent once after a region change so the client
// can request anything the incremental spawn queue missed.
func (m *Manager) EntityList(p Entity) []int32 {
	key, placed := p.RegionKey()
	if !placed {
		return nil
	}
	r, ok := m.regions[key]
	if !ok {
		return nil
	}
	out := make([]int32, 0, len(r.entities))
	for id, e := range r.entities {
		if id == p.Instance() {
			continue
		}
		if m.Invisible != nil && m.Invisible(p, e) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Push sends the player its own region's entity id list.
func (m *Manager) Push(p Entity) {
	ids := m.EntityList(p)
	if len(ids) == 0 {
		return
	}
	m.bridge.PushToPlayer(p.Instance(), net.Message{Kind: net.KindRegion, Data: ids})
}

// TilePatch is one static tile or door override inside a region payload.
type TilePatch struct {
	Index int32 `json:"index"`
	Tile  int32 `json:"tile"`
}

// RegionPayload carries the static map data for one region.
type RegionPayload struct {
	Region     ID          `json:"region"`
	Collisions []int32     `json:"collisions"`
	Tiles      []TilePatch `json:"tiles"`
}

// SendRegion sends the player the map payload for every region in the
// adjacency block it has not already loaded. Door tiles are merged in as
// dynamic overrides. Empty payloads are skipped but still marked loaded.
func (m *Manager) SendRegion(p Entity, key Key) {
	memo, ok := m.loaded[p.Instance()]
	if !ok {
		memo = make(map[ID]struct{})
		m.loaded[p.Instance()] = memo
	}
	m.part.ForEachAdjacent(key.Region, func(id ID) {
		if _, done := memo[id]; done {
			return
		}
		memo[id] = struct{}{}
		payload := m.buildPayload(id)
		if len(payload.Collisions) == 0 && len(payload.Tiles) == 0 {
			return
		}
		m.bridge.PushToPlayer(p.Instance(), net.Message{Kind: net.KindRegion, Data: payload})
	})
}

func (m *Manager) buildPayload(id ID) RegionPayload {
	payload := RegionPayload{Region: id}
	x0, y0, x1, y1 := m.part.Bounds(id)
	if x1 > m.grid.Width() {
		x1 = m.grid.Width()
	}
	if y1 > m.grid.Height() {
		y1 = m.grid.Height()
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if m.grid.IsColliding(x, y) {
				payload.Collisions = append(payload.Collisions, m.grid.TileIndex(x, y))
			}
			if t := m.grid.TileAt(x, y); t != 0 {
				payload.Tiles = append(payload.Tiles, TilePatch{Index: m.grid.TileIndex(x, y), Tile: t})
			}
		}
	}
	for _, d := range m.grid.Doors() {
		if d.X >= x0 && d.X < x1 && d.Y >= y0 && d.Y < y1 && d.Tile != 0 {
			payload.Tiles = append(payload.Tiles, TilePatch{Index: m.grid.TileIndex(d.X, d.Y), Tile: d.Tile})
		}
	}
	return payload
}

// CreateInstance moves a player onto a private copy of its current region
// block. The shared grid is notified to despawn the player; instanced
// records are created lazily as the player moves.
func (m *Manager) CreateInstance(p Entity) {
	if p.InstanceOwner() != 0 {
		return
	}
	if key, placed := p.RegionKey(); placed {
		m.PushToAdjacent(key, despawnMsg(p.Instance()), p.Instance())
	}
	m.Remove(p)
	p.SetInstanceOwner(p.Instance())
	m.Handle(p)
	m.log.Debug("region instance created", zap.Int32("owner", p.Instance()))
}

// DeleteInstance tears down a player's private region copy and returns the
// entities that were local to it (for the caller to destroy). The player is
// re-placed on the shared grid.
func (m *Manager) DeleteInstance(p Entity) []Entity {
	owner := p.InstanceOwner()
	if owner == 0 {
		return nil
	}

	orphans := make([]Entity, 0, 8)
	seen := make(map[int32]struct{})
	for key, r := range m.regions {
		if key.Owner != owner {
			continue
		}
		for id, e := range r.entities {
			if id == p.Instance() {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			orphans = append(orphans, e)
			m.bridge.PushToPlayer(p.Instance(), despawnMsg(id))
		}
		delete(m.regions, key)
	}

	p.ClearRegion()
	p.SetInstanceOwner(0)
	m.Handle(p)
	m.log.Debug("region instance deleted",
		zap.Int32("owner", owner), zap.Int("orphans", len(orphans)))
	return orphans
}

func despawnMsg(instance int32) net.Message {
	return net.Message{Kind: net.KindDespawn, Data: instance}
}
