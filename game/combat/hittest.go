package combat

import (
	"sort"

	"github.com/lastlight-game/server/game/sim"
)

// hit describes one ray/combatant intersection.
type hit struct {
	target *sim.Combatant
	dist   float64 // distance along the ray to the closest approach
	perp   float64 // perpendicular distance from the ray to the center
}

// rayHit finds the nearest living combatant whose bounding sphere the ray
// crosses within maxRange. Candidates are scanned in id order so exact ties
// resolve deterministically.
func rayHit(origin, direction sim.Vec3, maxRange float64, candidates []*sim.Combatant) (hit, bool) {
	dir := direction.Normalize()
	if dir.IsZero() || maxRange <= 0 {
		return hit{}, false
	}

	sorted := make([]*sim.Combatant, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	best := hit{}
	found := false
	for _, c := range sorted {
		if !c.Alive() {
			continue
		}
		toCenter := c.Position().Sub(origin)
		t := toCenter.Dot(dir)
		if t < 0 || t > maxRange {
			continue
		}
		closest := origin.Add(dir.Scale(t))
		perp := closest.Dist(c.Position())
		if perp > c.Radius() {
			continue
		}
		if !found || t < best.dist {
			best = hit{target: c, dist: t, perp: perp}
			found = true
		}
	}
	return best, found
}
