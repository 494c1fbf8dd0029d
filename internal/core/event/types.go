package event

// EntityKilled is emitted when a character's hit points reach zero and it is
// resolved as dead. Readable the tick after the kill.
type EntityKilled struct {
	KillerInstance int32
	VictimInstance int32
	VictimTemplate int32
	VictimIsPlayer bool
	X, Y           int32
}

// EntitySpawned is emitted when an entity is registered in the world.
type EntitySpawned struct {
	Instance int32
	Template int32
	X, Y     int32
}

// RegionChanged is emitted when an entity's region assignment changes.
type RegionChanged struct {
	Instance int32
	FromX    int32
	FromY    int32
	ToX      int32
	ToY      int32
}
