package world

// Item is a ground item waiting to be collected. Uncollected items blink
// and then despawn on registry-owned timers.
type Item struct {
	baseEntity

	count int32
}

func NewItem(itemID, count, x, y int32) *Item {
	if count < 1 {
		count = 1
	}
	return &Item{
		baseEntity: baseEntity{
			template: itemID,
			instance: nextItemInstance(),
			kind:     TypeItem,
			x:        x,
			y:        y,
		},
		count: count,
	}
}

func (it *Item) Count() int32 { return it.count }

func (it *Item) SpawnData() any {
	info := it.baseEntity.SpawnData().(SpawnInfo)
	info.Count = it.count
	return info
}

// Chest holds a fixed item list revealed when opened. Static chests respawn
// after their delay.
type Chest struct {
	baseEntity

	items  []int32
	static bool
}

func NewChest(items []int32, x, y int32, static bool) *Chest {
	return &Chest{
		baseEntity: baseEntity{
			instance: nextItemInstance(),
			kind:     TypeChest,
			x:        x,
			y:        y,
		},
		items:  append([]int32(nil), items...),
		static: static,
	}
}

func (c *Chest) Items() []int32 { return c.items }
func (c *Chest) IsStatic() bool { return c.static }

// Projectile is an in-flight ranged attack. Damage lands when the client
// reports impact, or the projectile times out.
type Projectile struct {
	baseEntity

	ownerInstance  int32
	targetInstance int32
	damage         int32
}

func NewProjectile(owner, target, damage, x, y int32) *Projectile {
	return &Projectile{
		baseEntity: baseEntity{
			instance: nextProjectileInstance(),
			kind:     TypeProjectile,
			x:        x,
			y:        y,
		},
		ownerInstance:  owner,
		targetInstance: target,
		damage:         damage,
	}
}

func (p *Projectile) Owner() int32  { return p.ownerInstance }
func (p *Projectile) Target() int32 { return p.targetInstance }
func (p *Projectile) Damage() int32 { return p.damage }
