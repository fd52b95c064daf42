package ai

import (
	"math/rand"
	"time"

	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/resource"
)

// Lifecycle is the scheduler-facing state of an AI entity.
type Lifecycle int

const (
	LifecycleSpawned Lifecycle = iota
	LifecycleActive
	LifecycleDying
	LifecycleRemoved
)

// State names the high-level behavior an entity is currently in. Archetype
// trees may use additional states; these cover the stock leaf library.
type State string

const (
	StateIdle    State = "idle"
	StatePatrol  State = "patrol"
	StateRoam    State = "roam"
	StateHover   State = "hover"
	StateChase   State = "chase"
	StateAttack  State = "attack"
	StateFlee    State = "flee"
	StateStagger State = "stagger"
	StateDead    State = "dead"
)

// Entity is the mutable per-instance state of one AI combatant. The
// archetype supplies everything static; the entity carries targeting,
// blackboard, and movement-in-progress data.
type Entity struct {
	ID        string
	Combatant *sim.Combatant
	Archetype *resource.Archetype

	Lifecycle Lifecycle
	DiedAt    time.Time

	state               State
	Target              *sim.Combatant
	LastKnownTargetPos  sim.Vec3
	AlertLevel          float64
	Blackboard          *Blackboard

	// Movement-in-progress; absent when idle.
	Destination *sim.Vec3
	Path        []sim.Vec3
	PathCursor  int

	// Spawn anchor for patrol/roam idle behavior.
	Anchor sim.Vec3

	stuckFor    time.Duration
	lastPos     sim.Vec3
	forceReplan bool
}

// NewEntity creates an Active entity at pos for the given archetype.
func NewEntity(id string, arch *resource.Archetype, pos sim.Vec3) *Entity {
	c := sim.NewCombatant(id, sim.KindNPC, arch.MaxHealth, arch.Armor, pos, arch.Radius)
	return &Entity{
		ID:         id,
		Combatant:  c,
		Archetype:  arch,
		Lifecycle:  LifecycleSpawned,
		state:      StateIdle,
		Blackboard: NewBlackboard(),
		Anchor:     pos,
		lastPos:    pos,
	}
}

// State returns the current named state.
func (e *Entity) State() State { return e.state }

// ClearTarget drops the current target and its last-known position.
func (e *Entity) ClearTarget() {
	e.Target = nil
}

// HealthFraction returns health / maxHealth in [0,1].
func (e *Entity) HealthFraction() float64 {
	return e.Combatant.Health() / e.Combatant.MaxHealth()
}

// CombatRequester submits an AI attack into the combat resolver. Declared
// here as an interface to avoid an import cycle with the world package;
// attacks resolve through the exact same path as player-submitted damage.
type CombatRequester interface {
	RequestDamage(attackerID, victimID string, rawDamage float64, now time.Time)
}

// StateObserver is notified of named state transitions (debug/analytics).
type StateObserver func(e *Entity, previous, next State)

// Context is passed to every behavior tree node during a tick.
type Context struct {
	E     *Entity
	Now   time.Time
	Delta time.Duration

	Combat  CombatRequester
	Move    *Controller
	Rand    *rand.Rand // randomness is confined to action bodies
	Observe StateObserver

	lastAction string
}

// SetState transitions the entity's named state, notifying the observer on
// a real change.
func (ctx *Context) SetState(next State) {
	prev := ctx.E.state
	if prev == next {
		return
	}
	ctx.E.state = next
	if ctx.Observe != nil {
		ctx.Observe(ctx.E, prev, next)
	}
}

// LastAction returns the name of the last action node reached this tick.
func (ctx *Context) LastAction() string { return ctx.lastAction }
