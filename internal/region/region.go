package region

// Entity is the minimal view the region layer needs of a world entity. The
// world package implements it; the region layer mutates only the region
// bookkeeping fields behind SetRegionKey/ClearRegion/SetRecentRegions.
type Entity interface {
	Instance() int32
	IsPlayer() bool
	Position() (x, y int32)

	RegionKey() (Key, bool) // false until first placement
	SetRegionKey(Key)
	ClearRegion()

	RecentRegions() []Key
	SetRecentRegions([]Key)

	// InstanceOwner is 0 on the shared grid, or the owning player's
	// instance id while inside a private region instance.
	InstanceOwner() int32
	SetInstanceOwner(int32)

	// SpawnData is the opaque payload carried by this entity's Spawn
	// message; the region layer never inspects it.
	SpawnData() any
}

// record holds per-region membership. entities is the union over every
// entity whose adjacency block includes this region; players is the same for
// player entities. incoming defers spawn broadcasts to the tick flush.
type record struct {
	key      Key
	entities map[int32]Entity
	players  map[int32]Entity
	incoming []Entity
}

func newRecord(key Key) *record {
	return &record{
		key:      key,
		entities: make(map[int32]Entity),
		players:  make(map[int32]Entity),
	}
}

func (r *record) add(e Entity) {
	r.entities[e.Instance()] = e
	if e.IsPlayer() {
		r.players[e.Instance()] = e
	}
}

func (r *record) remove(instance int32) bool {
	if _, ok := r.entities[instance]; !ok {
		return false
	}
	delete(r.entities, instance)
	delete(r.players, instance)
	return true
}
