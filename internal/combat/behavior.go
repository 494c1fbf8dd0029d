package combat

// Behavior customizes a character's combat reactions. Mob species plug in
// script-backed behaviors; the zero value of combat runs DefaultBehavior.
type Behavior interface {
	// OnEngage fires when the controller transitions Idle -> Engaged.
	OnEngage(c *Controller, attacker Actor)
	// OnHurt fires after damage is applied to the controller's owner.
	OnHurt(c *Controller, attacker Actor, damage int32)
	// OnDeath fires when the owner dies, before removal from the world.
	OnDeath(c *Controller, killer Actor)
}

// DefaultBehavior does nothing on every hook.
type DefaultBehavior struct{}

func (DefaultBehavior) OnEngage(*Controller, Actor)      {}
func (DefaultBehavior) OnHurt(*Controller, Actor, int32) {}
func (DefaultBehavior) OnDeath(*Controller, Actor)       {}
