package loot

import (
	"math/rand"

	"github.com/lastlight-game/server/resource"
)

// Roller resolves archetype drop tables to item ids. The RNG is injectable
// so death handling stays reproducible in tests.
type Roller struct {
	res *resource.Loader
	rng *rand.Rand
}

// NewRoller creates a Roller over the loaded archetype catalog.
func NewRoller(res *resource.Loader, rng *rand.Rand) *Roller {
	return &Roller{res: res, rng: rng}
}

// Roll picks one item id from the archetype's weighted table, or "" when the
// archetype is unknown or has no table. Weights are relative; a table with
// entries {scrap: 80, medkit: 20} drops scrap four times as often.
func (r *Roller) Roll(archetypeID string) string {
	if r.res == nil {
		return ""
	}
	a := r.res.ArchetypeByID(archetypeID)
	if a == nil || len(a.Loot) == 0 {
		return ""
	}

	total := 0
	for _, e := range a.Loot {
		total += e.Weight
	}
	if total <= 0 {
		return ""
	}

	roll := r.rng.Intn(total)
	for _, e := range a.Loot {
		roll -= e.Weight
		if roll < 0 {
			return e.ItemID
		}
	}
	return a.Loot[len(a.Loot)-1].ItemID
}
