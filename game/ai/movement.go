package ai

import (
	"time"

	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/sim"
)

const (
	// Within this distance of the final waypoint the move counts as arrived.
	defaultArriveDist = 0.25
	// Movement below minProgress × (speed × delta) counts as a stuck sample.
	minProgressFrac = 0.1
	// Accumulated stuck time that triggers a forced replan.
	defaultStuckAfter = 3 * time.Second
)

// Controller moves entities along planned paths at a fixed speed per second,
// detecting entities that stop making progress and replanning their route.
type Controller struct {
	planner    Planner
	logger     *zap.Logger
	arriveDist float64
	stuckAfter time.Duration
}

func NewController(planner Planner, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		planner:    planner,
		logger:     logger,
		arriveDist: defaultArriveDist,
		stuckAfter: defaultStuckAfter,
	}
}

// RequestMove sets dest as the entity's destination, planning a path if the
// destination changed or a replan was forced. Re-requesting the same
// destination is a no-op so trees can issue the move every tick.
func (m *Controller) RequestMove(e *Entity, dest sim.Vec3) {
	if e.Destination != nil && !e.forceReplan && e.Destination.Dist(dest) < m.arriveDist {
		return
	}
	d := dest
	e.Destination = &d
	e.forceReplan = false
	e.stuckFor = 0

	if m.planner != nil {
		path, err := m.planner.Plan(e.Combatant.Position(), dest)
		if err == nil {
			e.Path = path
			e.PathCursor = 0
			return
		}
		m.logger.Debug("path plan failed, moving direct",
			zap.String("entity", e.ID), zap.Error(err))
	}
	// No planner or no route: head straight at the destination.
	e.Path = []sim.Vec3{dest}
	e.PathCursor = 0
}

// Stop abandons the current move.
func (m *Controller) Stop(e *Entity) {
	e.Destination = nil
	e.Path = nil
	e.PathCursor = 0
	e.stuckFor = 0
}

// Moving reports whether the entity has an in-progress move.
func (m *Controller) Moving(e *Entity) bool { return e.Destination != nil }

// Advance steps the entity along its path by speed × delta, consuming
// waypoints as they are reached. Advance itself always covers the full step;
// lack of progress means something outside the controller (collision, world
// bounds) keeps undoing the movement, so stuck detection compares where this
// tick starts against where the previous tick started. An entity stuck past
// stuckAfter has its path discarded and the next RequestMove replans.
func (m *Controller) Advance(e *Entity, speed float64, delta time.Duration) {
	if e.Destination == nil || e.PathCursor >= len(e.Path) {
		return
	}

	pos := e.Combatant.Position()
	if pos.Dist(e.lastPos) < minProgressFrac*speed*delta.Seconds() {
		e.stuckFor += delta
		if e.stuckFor >= m.stuckAfter {
			m.logger.Debug("entity stuck, forcing replan", zap.String("entity", e.ID))
			e.Path = nil
			e.PathCursor = 0
			e.forceReplan = true
			e.stuckFor = 0
			e.lastPos = pos
			return
		}
	} else {
		e.stuckFor = 0
	}
	e.lastPos = pos

	budget := speed * delta.Seconds()
	for budget > 0 && e.PathCursor < len(e.Path) {
		wp := e.Path[e.PathCursor]
		toWP := wp.Sub(pos)
		d := toWP.Length()
		if d <= budget {
			pos = wp
			budget -= d
			e.PathCursor++
			continue
		}
		pos = pos.Add(toWP.Scale(budget / d))
		budget = 0
	}
	e.Combatant.SetPosition(pos)

	if e.PathCursor >= len(e.Path) || pos.Dist(*e.Destination) <= m.arriveDist {
		m.Stop(e)
	}
}
