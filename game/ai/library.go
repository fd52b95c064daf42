package ai

import (
	"time"

	"github.com/lastlight-game/server/game/sim"
)

// Stock leaf library shared by all archetype trees. Conditions read entity
// state and never mutate it; every side effect lives in an action body.

// StaggerDuration is how long a heavy hit locks an entity in place. The
// simulation arms the stagger deadline when a hit lands; trees only react.
const StaggerDuration = 700 * time.Millisecond

const (
	specialDamageMult = 2.0
	roamRadius        = 8.0
	hoverLeash        = 3.0
)

// ---- Conditions ----

func condHasTarget() *Condition {
	return &Condition{Name: "has_target", Fn: func(ctx *Context) bool {
		return ctx.E.Target != nil && ctx.E.Target.Alive()
	}}
}

func condTargetInAttackRange() *Condition {
	return &Condition{Name: "target_in_attack_range", Fn: func(ctx *Context) bool {
		e := ctx.E
		if e.Target == nil {
			return false
		}
		return e.Combatant.Position().Dist(e.Target.Position()) <= e.Archetype.AttackRange
	}}
}

func condLowHealth() *Condition {
	return &Condition{Name: "low_health", Fn: func(ctx *Context) bool {
		fb := ctx.E.Archetype.FleeBelow
		return fb > 0 && ctx.E.HealthFraction() < fb
	}}
}

func condStaggered() *Condition {
	return &Condition{Name: "staggered", Fn: func(ctx *Context) bool {
		return ctx.Now.Before(ctx.E.Blackboard.Time(KeyStaggerUntil))
	}}
}

func condAttackReady() *Condition {
	return &Condition{Name: "attack_ready", Fn: func(ctx *Context) bool {
		return !ctx.Now.Before(ctx.E.Blackboard.Time(KeyAttackReadyAt))
	}}
}

func condSpecialReady() *Condition {
	return &Condition{Name: "special_ready", Fn: func(ctx *Context) bool {
		if ctx.E.Archetype.SpecialCooldownMs <= 0 {
			return false
		}
		return !ctx.Now.Before(ctx.E.Blackboard.Time(KeySpecialReadyAt))
	}}
}

// ---- Actions ----

// actStagger holds the entity in place until the stagger deadline passes.
func actStagger() *Action {
	return &Action{Name: "stagger", Fn: func(ctx *Context) Status {
		ctx.SetState(StateStagger)
		ctx.Move.Stop(ctx.E)
		return StatusRunning
	}}
}

// actAttack lands one melee hit and arms the attack cooldown. The damage
// travels through the shared combat resolver, same path as player damage.
func actAttack() *Action {
	return &Action{Name: "attack", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateAttack)
		ctx.Move.Stop(e)
		if ctx.Combat != nil {
			ctx.Combat.RequestDamage(e.ID, e.Target.ID, e.Archetype.Damage, ctx.Now)
		}
		e.Blackboard.SetTime(KeyAttackReadyAt,
			ctx.Now.Add(time.Duration(e.Archetype.AttackIntervalMs)*time.Millisecond))
		return StatusSuccess
	}}
}

// actSpecial is the heavy attack: boosted damage on a long cooldown.
func actSpecial() *Action {
	return &Action{Name: "special", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateAttack)
		ctx.Move.Stop(e)
		if ctx.Combat != nil {
			ctx.Combat.RequestDamage(e.ID, e.Target.ID, e.Archetype.Damage*specialDamageMult, ctx.Now)
		}
		e.Blackboard.SetTime(KeySpecialReadyAt,
			ctx.Now.Add(time.Duration(e.Archetype.SpecialCooldownMs)*time.Millisecond))
		e.Blackboard.SetTime(KeyAttackReadyAt,
			ctx.Now.Add(time.Duration(e.Archetype.AttackIntervalMs)*time.Millisecond))
		return StatusSuccess
	}}
}

// actChase closes on the target's last known position.
func actChase() *Action {
	return &Action{Name: "chase", Fn: func(ctx *Context) Status {
		ctx.SetState(StateChase)
		ctx.Move.RequestMove(ctx.E, ctx.E.LastKnownTargetPos)
		return StatusRunning
	}}
}

// actHoldRange backs off when the target is closer than keep, otherwise
// closes in. Used by ranged archetypes that fight at a standoff distance.
func actHoldRange(keep float64) *Action {
	return &Action{Name: "hold_range", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateChase)
		away := e.Combatant.Position().Sub(e.Target.Position())
		d := away.Length()
		if d >= keep {
			ctx.Move.RequestMove(e, e.LastKnownTargetPos)
			return StatusRunning
		}
		if d == 0 {
			away = sim.Vec3{X: 1}
			d = 1
		}
		retreat := e.Combatant.Position().Add(away.Scale((keep - d + 1) / d))
		ctx.Move.RequestMove(e, retreat)
		return StatusRunning
	}}
}

// actFlee runs directly away from the target.
func actFlee() *Action {
	return &Action{Name: "flee", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateFlee)
		away := e.Combatant.Position().Sub(e.LastKnownTargetPos)
		if away.IsZero() {
			away = sim.Vec3{X: 1}
		}
		dest := e.Combatant.Position().Add(away.Normalize().Scale(e.Archetype.DetectionRange))
		ctx.Move.RequestMove(e, dest)
		return StatusRunning
	}}
}

// ---- Idle actions ----

// actRoam wanders to random points around the spawn anchor. Destination
// choice is the one place this tree consumes randomness.
func actRoam() *Action {
	return &Action{Name: "roam", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateRoam)
		if ctx.Move.Moving(e) {
			return StatusRunning
		}
		dest := e.Anchor
		if ctx.Rand != nil {
			dest = e.Anchor.Add(sim.Vec3{
				X: (ctx.Rand.Float64()*2 - 1) * roamRadius,
				Y: (ctx.Rand.Float64()*2 - 1) * roamRadius,
			})
		}
		ctx.Move.RequestMove(e, dest)
		return StatusRunning
	}}
}

// actPatrol cycles through fixed waypoints offset from the spawn anchor.
func actPatrol() *Action {
	offsets := []sim.Vec3{
		{X: roamRadius}, {Y: roamRadius}, {X: -roamRadius}, {Y: -roamRadius},
	}
	return &Action{Name: "patrol", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StatePatrol)
		if ctx.Move.Moving(e) {
			return StatusRunning
		}
		i := int(e.Blackboard.Float(KeyPatrolIndex))
		ctx.Move.RequestMove(e, e.Anchor.Add(offsets[i%len(offsets)]))
		e.Blackboard.SetFloat(KeyPatrolIndex, float64((i+1)%len(offsets)))
		return StatusRunning
	}}
}

// actHover stays put, drifting back toward the anchor when pushed past the
// leash distance.
func actHover() *Action {
	return &Action{Name: "hover", Fn: func(ctx *Context) Status {
		e := ctx.E
		ctx.SetState(StateHover)
		if e.Combatant.Position().Dist(e.Anchor) > hoverLeash {
			ctx.Move.RequestMove(e, e.Anchor)
			return StatusRunning
		}
		ctx.Move.Stop(e)
		return StatusSuccess
	}}
}
