package net

// Kind tags an outbound message. The set is open: the bridge produces these
// values but never interprets them on the way out.
type Kind string

const (
	KindSpawn      Kind = "spawn"
	KindDespawn    Kind = "despawn"
	KindCombat     Kind = "combat"
	KindPoints     Kind = "points"
	KindMovement   Kind = "movement"
	KindProjectile Kind = "projectile"
	KindRegion     Kind = "region"
	KindDestroy    Kind = "destroy"
	KindBlink      Kind = "blink"
)

// Message is a tagged outbound payload. Data is opaque to the bridge; the
// transport layer owns serialization.
type Message struct {
	Kind   Kind
	Opcode int
	Data   any
}
