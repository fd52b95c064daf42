package ai

import (
	"time"

	"github.com/lastlight-game/server/game/sim"
)

// Target-loss hysteresis: an acquired target is kept until it moves past
// lossFactor × detectionRange, so entities at the edge of the detection
// radius do not flicker between acquired and lost.
const lossFactor = 1.5

// Alert level slew rates, per second.
const (
	alertRiseRate  = 2.0
	alertDecayRate = 0.5
)

// Tracker maintains each entity's target and alert level.
type Tracker struct{}

func NewTracker() *Tracker { return &Tracker{} }

// Update scans the candidate pool for the entity's nearest living target
// within detection range, applies loss hysteresis to the current target, and
// slews the alert level. Exact distance ties break on candidate id order so
// two runs over the same state pick the same target.
func (t *Tracker) Update(e *Entity, candidates []*sim.Combatant, now time.Time, delta time.Duration) {
	detect := e.Archetype.DetectionRange
	pos := e.Combatant.Position()

	// Current target: drop on death or once it escapes the loss radius.
	if e.Target != nil {
		if !e.Target.Alive() || pos.Dist(e.Target.Position()) > detect*lossFactor {
			e.ClearTarget()
		}
	}

	// Acquire (or switch to) the nearest candidate inside detection range.
	var nearest *sim.Combatant
	nearestDist := 0.0
	for _, c := range candidates {
		if !c.Alive() || c.ID == e.ID {
			continue
		}
		d := pos.Dist(c.Position())
		if d > detect {
			continue
		}
		if nearest == nil || d < nearestDist || (d == nearestDist && c.ID < nearest.ID) {
			nearest = c
			nearestDist = d
		}
	}
	if nearest != nil {
		e.Target = nearest
	}

	if e.Target != nil {
		e.LastKnownTargetPos = e.Target.Position()
		e.AlertLevel += alertRiseRate * delta.Seconds()
		if e.AlertLevel > 1 {
			e.AlertLevel = 1
		}
	} else {
		e.AlertLevel -= alertDecayRate * delta.Seconds()
		if e.AlertLevel < 0 {
			e.AlertLevel = 0
		}
	}
}
