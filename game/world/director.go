package world

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/events"
	"github.com/lastlight-game/server/game/sim"
)

// SpawnPoint keeps Count entities of one archetype alive around a position.
type SpawnPoint struct {
	ArchetypeID  string
	Position     sim.Vec3
	Count        int
	RespawnDelay time.Duration
}

type pendingSpawn struct {
	point int
	due   time.Time
}

// Director decides what to spawn and when; the match only enforces caps.
// Removed entities respawn at their point after the configured delay.
type Director struct {
	m      *Match
	points []SpawnPoint
	logger *zap.Logger

	mu      sync.Mutex
	owned   map[string]int // entity id → point index
	pending []pendingSpawn
}

// NewDirector attaches a Director to the match. Call Maintain from the same
// cadence as Match.Tick.
func NewDirector(m *Match, points []SpawnPoint, logger *zap.Logger) *Director {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Director{
		m:      m,
		points: points,
		logger: logger,
		owned:  make(map[string]int),
	}
	m.Bus.Subscribe(events.EntityRemoved, d.onEntityRemoved)
	return d
}

func (d *Director) onEntityRemoved(_ events.Kind, payload any) {
	ev, ok := payload.(events.EntityRemovedEvent)
	if !ok {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	idx, mine := d.owned[ev.EntityID]
	if !mine {
		return
	}
	delete(d.owned, ev.EntityID)
	d.pending = append(d.pending, pendingSpawn{
		point: idx,
		due:   d.m.clock.Now().Add(d.points[idx].RespawnDelay),
	})
}

// Maintain tops every spawn point back up to its configured count: due
// respawns first, then any remaining deficit immediately (initial fill).
// Spawns refused by the match's caps are retried on the next call.
func (d *Director) Maintain(now time.Time) {
	d.mu.Lock()
	var due []int
	n := 0
	for _, p := range d.pending {
		if now.Before(p.due) {
			d.pending[n] = p
			n++
			continue
		}
		due = append(due, p.point)
	}
	d.pending = d.pending[:n]

	liveByPoint := make([]int, len(d.points))
	for _, idx := range d.owned {
		liveByPoint[idx]++
	}
	pendingByPoint := make([]int, len(d.points))
	for _, p := range d.pending {
		pendingByPoint[p.point]++
	}
	for i, sp := range d.points {
		deficit := sp.Count - liveByPoint[i] - pendingByPoint[i]
		for j := 0; j < deficit-countOf(due, i); j++ {
			due = append(due, i)
		}
	}
	d.mu.Unlock()

	for _, idx := range due {
		sp := d.points[idx]
		e, err := d.m.SpawnEntity(sp.ArchetypeID, sp.Position)
		if err != nil {
			d.logger.Debug("spawn deferred",
				zap.String("archetype", sp.ArchetypeID), zap.Error(err))
			d.mu.Lock()
			d.pending = append(d.pending, pendingSpawn{point: idx, due: now})
			d.mu.Unlock()
			continue
		}
		d.mu.Lock()
		d.owned[e.ID] = idx
		d.mu.Unlock()
	}
}

// Live returns how many director-owned entities are alive.
func (d *Director) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.owned)
}

func countOf(s []int, v int) int {
	n := 0
	for _, x := range s {
		if x == v {
			n++
		}
	}
	return n
}
