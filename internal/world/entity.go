// Package world owns every live entity: creation, destruction, damage,
// death resolution, and drops. All other layers hold non-owning references
// by instance id.
package world

import (
	"sync/atomic"

	"github.com/tilerealm/server/internal/region"
)

// Type classifies an entity.
type Type int

const (
	TypePlayer Type = iota
	TypeMob
	TypeNPC
	TypeItem
	TypeChest
	TypeProjectile
)

func (t Type) String() string {
	switch t {
	case TypePlayer:
		return "player"
	case TypeMob:
		return "mob"
	case TypeNPC:
		return "npc"
	case TypeItem:
		return "item"
	case TypeChest:
		return "chest"
	case TypeProjectile:
		return "projectile"
	}
	return "unknown"
}

// Instance id ranges per entity class. Players get low ids straight off the
// counter; everything dynamic starts high so ranges never collide.
const (
	mobInstanceBase        = 200_000_000
	itemInstanceBase       = 700_000_000
	projectileInstanceBase = 800_000_000
)

var (
	playerInstanceSeq     atomic.Int32
	mobInstanceSeq        = seqAt(mobInstanceBase)
	itemInstanceSeq       = seqAt(itemInstanceBase)
	projectileInstanceSeq = seqAt(projectileInstanceBase)
)

func seqAt(base int32) *atomic.Int32 {
	var s atomic.Int32
	s.Store(base)
	return &s
}

// NextPlayerInstance allocates a player instance id.
func NextPlayerInstance() int32 { return playerInstanceSeq.Add(1) }

func nextMobInstance() int32        { return mobInstanceSeq.Add(1) }
func nextItemInstance() int32       { return itemInstanceSeq.Add(1) }
func nextProjectileInstance() int32 { return projectileInstanceSeq.Add(1) }

// Entity is the world-level view of any live object.
type Entity interface {
	region.Entity
	Template() int32
	Kind() Type
	SetPosition(x, y int32)
}

// SpawnInfo is the payload carried by an entity's Spawn message.
type SpawnInfo struct {
	Instance int32  `json:"instance"`
	Template int32  `json:"template"`
	Kind     string `json:"kind"`
	X        int32  `json:"x"`
	Y        int32  `json:"y"`
	HP       int32  `json:"hp,omitempty"`
	MaxHP    int32  `json:"max_hp,omitempty"`
	Count    int32  `json:"count,omitempty"`
}

// baseEntity carries the fields common to every entity type. The region
// layer mutates only the region bookkeeping here.
type baseEntity struct {
	template int32
	instance int32
	kind     Type
	x, y     int32

	regionKey region.Key
	placed    bool
	recent    []region.Key
	owner     int32
}

func (e *baseEntity) Template() int32       { return e.template }
func (e *baseEntity) Instance() int32       { return e.instance }
func (e *baseEntity) Kind() Type            { return e.kind }
func (e *baseEntity) IsPlayer() bool        { return e.kind == TypePlayer }
func (e *baseEntity) Position() (int32, int32) { return e.x, e.y }
func (e *baseEntity) SetPosition(x, y int32) {
	e.x, e.y = x, y
}

func (e *baseEntity) RegionKey() (region.Key, bool) { return e.regionKey, e.placed }
func (e *baseEntity) SetRegionKey(k region.Key) {
	e.regionKey = k
	e.placed = true
}
func (e *baseEntity) ClearRegion() {
	e.regionKey = region.Key{}
	e.placed = false
}
func (e *baseEntity) RecentRegions() []region.Key     { return e.recent }
func (e *baseEntity) SetRecentRegions(r []region.Key) { e.recent = r }
func (e *baseEntity) InstanceOwner() int32            { return e.owner }
func (e *baseEntity) SetInstanceOwner(o int32)        { e.owner = o }

func (e *baseEntity) SpawnData() any {
	return SpawnInfo{
		Instance: e.instance,
		Template: e.template,
		Kind:     e.kind.String(),
		X:        e.x,
		Y:        e.y,
	}
}
