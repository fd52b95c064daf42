package ai

import "github.com/lastlight-game/server/resource"

// Behavior tree ids referenced by archetypes.yaml.
const (
	BehaviorStalker = "stalker"
	BehaviorBrute   = "brute"
	BehaviorLurker  = "lurker"
)

// BuildTree assembles the behavior tree for an archetype. Trees are
// stateless and safe to share between every entity of the archetype.
func BuildTree(arch *resource.Archetype) *BehaviorTree {
	idle := idleBranch(arch.Idle)
	var combat Node
	switch arch.Behavior {
	case BehaviorBrute:
		combat = bruteCombat()
	case BehaviorLurker:
		combat = lurkerCombat(arch)
	default:
		combat = stalkerCombat()
	}

	// Priority order: stagger interrupts everything, fleeing beats fighting,
	// fighting beats idling.
	return &BehaviorTree{Root: &Selector{Children: []Node{
		&Sequence{Children: []Node{condStaggered(), actStagger()}},
		&Sequence{Children: []Node{condLowHealth(), condHasTarget(), actFlee()}},
		&Sequence{Children: []Node{condHasTarget(), combat}},
		idle,
	}}}
}

// stalkerCombat is the baseline melee loop: attack in range when the swing
// is ready, otherwise close the distance.
func stalkerCombat() Node {
	return &Selector{Children: []Node{
		&Sequence{Children: []Node{condTargetInAttackRange(), condAttackReady(), actAttack()}},
		&Sequence{Children: []Node{condTargetInAttackRange(), &Action{Name: "wind_up", Fn: func(ctx *Context) Status {
			ctx.SetState(StateAttack)
			ctx.Move.Stop(ctx.E)
			return StatusRunning
		}}}},
		actChase(),
	}}
}

// bruteCombat prefers the slam whenever its cooldown is up.
func bruteCombat() Node {
	return &Selector{Children: []Node{
		&Sequence{Children: []Node{condTargetInAttackRange(), condSpecialReady(), actSpecial()}},
		stalkerCombat(),
	}}
}

// lurkerCombat fights at a standoff distance: shoot when in range and off
// cooldown, otherwise maneuver to hold the gap.
func lurkerCombat(arch *resource.Archetype) Node {
	keep := arch.AttackRange * 0.6
	return &Selector{Children: []Node{
		&Sequence{Children: []Node{condTargetInAttackRange(), condAttackReady(), actAttack()}},
		actHoldRange(keep),
	}}
}

func idleBranch(kind string) Node {
	switch kind {
	case "patrol":
		return actPatrol()
	case "hover":
		return actHover()
	default:
		return actRoam()
	}
}
