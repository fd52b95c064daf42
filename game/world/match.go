// Package world runs one survival match: the authoritative registry of
// players and AI entities, the fixed-rate tick that drives awareness,
// behavior trees, and movement, and the validated entry points for every
// client-submitted game operation.
package world

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/ai"
	"github.com/lastlight-game/server/game/combat"
	"github.com/lastlight-game/server/game/events"
	"github.com/lastlight-game/server/game/limiter"
	"github.com/lastlight-game/server/game/loot"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/resource"
)

var (
	ErrRateLimited      = errors.New("world: rate limited")
	ErrUnknownArchetype = errors.New("world: unknown archetype")
	ErrEntityCap        = errors.New("world: entity cap reached")
	ErrDuplicateID      = errors.New("world: id already registered")
	ErrUnknownPlayer    = errors.New("world: unknown player")
	ErrBadMove          = errors.New("world: implausible move")
)

// Rate-limited operation names.
const (
	OpWeaponFire = "weapon_fire"
	OpHitReport  = "hit_report"
	OpMove       = "move"
)

// A hit for more than this fraction of max health staggers an AI entity.
const staggerFraction = 0.2

// Default player stats; matches start every player with full kit.
const (
	playerMaxHealth = 100.0
	playerArmor     = 50.0
	playerRadius    = 0.5
)

// KillSink receives confirmed player kills. Implemented by the profile
// service; nil disables kill accounting.
type KillSink interface {
	AddKillCredit(playerID, archetypeID string)
}

// Config tunes one match.
type Config struct {
	MatchID       string
	MaxEntities   int            // global AI population cap
	ArchetypeCaps map[string]int // per-archetype cap, 0 = unlimited
	GracePeriod   time.Duration  // corpse linger before removal
	TickInterval  time.Duration
	Bounds        sim.Vec3 // playfield extent, zero axis = unbounded
	MaxMoveStep   float64  // largest accepted move per request
	Combat        combat.Config
	RateRules     map[string]limiter.Rule
	Seed          int64
}

func (c Config) withDefaults() Config {
	if c.MatchID == "" {
		c.MatchID = uuid.NewString()
	}
	if c.MaxEntities <= 0 {
		c.MaxEntities = 64
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 1500 * time.Millisecond
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.MaxMoveStep <= 0 {
		c.MaxMoveStep = 10
	}
	return c
}

// Match is one running simulation. All cross-entity state lives here, keyed
// by the match, so concurrent matches never share mutable state.
type Match struct {
	cfg    Config
	clock  sim.Clock
	logger *zap.Logger

	Bus      *events.Bus
	res      *resource.Loader
	resolver *combat.Resolver
	limits   *limiter.Limiter
	tracker  *ai.Tracker
	movement *ai.Controller
	roller   *loot.Roller
	rng      *rand.Rand
	drops    *DropTable
	kills    KillSink

	// simMu is the simulation lock. The tick loop, spawn/despawn, and every
	// network-triggered operation take it, so entity state only ever mutates
	// from one goroutine at a time. Event reactions run under the
	// publisher's hold of simMu and must not take it again.
	simMu sync.Mutex

	mu       sync.Mutex
	entities map[string]*ai.Entity
	players  map[string]*sim.Combatant
	trees    map[string]*ai.BehaviorTree // archetype id → shared tree
	byArch   map[string]int              // live entity count per archetype

	subs []events.Token
}

// NewMatch assembles a match. planner may be nil (entities then move in
// straight lines); kills may be nil.
func NewMatch(cfg Config, res *resource.Loader, planner ai.Planner, kills KillSink, clock sim.Clock, logger *zap.Logger) *Match {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = sim.SystemClock{}
	}
	cfg = cfg.withDefaults()
	logger = logger.With(zap.String("match_id", cfg.MatchID))

	bus := events.NewBus()
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	m := &Match{
		cfg:      cfg,
		clock:    clock,
		logger:   logger,
		Bus:      bus,
		res:      res,
		resolver: combat.NewResolver(cfg.Combat, res, nil, bus, nil, logger),
		limits:   limiter.New(cfg.RateRules, logger),
		tracker:  ai.NewTracker(),
		movement: ai.NewController(planner, logger),
		roller:   loot.NewRoller(res, rng),
		rng:      rng,
		drops:    NewDropTable(),
		kills:    kills,
		entities: make(map[string]*ai.Entity),
		players:  make(map[string]*sim.Combatant),
		trees:    make(map[string]*ai.BehaviorTree),
		byArch:   make(map[string]int),
	}
	m.subs = append(m.subs,
		bus.Subscribe(events.EntityDied, m.onEntityDied),
		bus.Subscribe(events.CombatResolved, m.onCombatResolved),
	)
	return m
}

// SetReporter wires an exploit reporter into the combat resolver.
func (m *Match) SetReporter(r combat.ExploitReporter) {
	m.resolver.SetReporter(r)
}

// ID returns the match id.
func (m *Match) ID() string { return m.cfg.MatchID }

// Resolver exposes the combat resolver for transport handlers that need
// direct reads (ammo counts, combatant lookups).
func (m *Match) Resolver() *combat.Resolver { return m.resolver }

// Drops exposes the floor loot table.
func (m *Match) Drops() *DropTable { return m.drops }

// Bounds returns the playfield extent.
func (m *Match) Bounds() sim.Vec3 { return m.cfg.Bounds }

// Close drops the match's bus subscriptions.
func (m *Match) Close() {
	for _, tok := range m.subs {
		m.Bus.Unsubscribe(tok)
	}
	m.subs = nil
}

// ---- Population ----

// SpawnEntity creates one AI entity of the archetype at pos. Caps are
// enforced here; what to spawn and when is the director's decision.
func (m *Match) SpawnEntity(archetypeID string, pos sim.Vec3) (*ai.Entity, error) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	arch := m.res.ArchetypeByID(archetypeID)
	if arch == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArchetype, archetypeID)
	}

	m.mu.Lock()
	if len(m.entities) >= m.cfg.MaxEntities {
		m.mu.Unlock()
		return nil, ErrEntityCap
	}
	if limit, ok := m.cfg.ArchetypeCaps[archetypeID]; ok && limit > 0 && m.byArch[archetypeID] >= limit {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: archetype %s", ErrEntityCap, archetypeID)
	}

	id := "npc-" + uuid.NewString()
	e := ai.NewEntity(id, arch, pos)
	m.entities[id] = e
	m.byArch[archetypeID]++
	if _, ok := m.trees[archetypeID]; !ok {
		m.trees[archetypeID] = ai.BuildTree(arch)
	}
	m.mu.Unlock()

	m.resolver.Register(e.Combatant, archetypeID)
	m.logger.Info("entity spawned",
		zap.String("entity", id), zap.String("archetype", archetypeID))
	m.Bus.Publish(events.EntitySpawned, events.EntitySpawnedEvent{
		EntityID: id, ArchetypeID: archetypeID, Position: pos,
	})
	return e, nil
}

// DespawnEntity removes an entity immediately, skipping the death grace
// period. Used by the director to cull population.
func (m *Match) DespawnEntity(id string) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	m.mu.Lock()
	e, ok := m.entities[id]
	if ok {
		delete(m.entities, id)
		m.byArch[e.Archetype.ID]--
		e.Lifecycle = ai.LifecycleRemoved
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.resolver.Unregister(id)
	m.Bus.Publish(events.EntityRemoved, events.EntityRemovedEvent{EntityID: id})
}

// AddPlayer registers a player combatant at pos.
func (m *Match) AddPlayer(id string, pos sim.Vec3) (*sim.Combatant, error) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	p := sim.NewCombatant(id, sim.KindPlayer, playerMaxHealth, playerArmor, pos, playerRadius)

	m.mu.Lock()
	if _, dup := m.players[id]; dup {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	m.players[id] = p
	m.mu.Unlock()

	m.resolver.Register(p, "")
	m.logger.Info("player joined", zap.String("player", id))
	return p, nil
}

// RemovePlayer drops a player from the match.
func (m *Match) RemovePlayer(id string) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	m.mu.Lock()
	_, ok := m.players[id]
	delete(m.players, id)
	m.mu.Unlock()
	if ok {
		m.resolver.Unregister(id)
		m.logger.Info("player left", zap.String("player", id))
	}
}

// Player returns the player's combatant or nil.
func (m *Match) Player(id string) *sim.Combatant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.players[id]
}

// Entity returns the AI entity or nil.
func (m *Match) Entity(id string) *ai.Entity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entities[id]
}

// EntityCount returns the live AI population.
func (m *Match) EntityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entities)
}

// ---- Tick ----

// Tick advances the simulation by delta at time now. Per active entity the
// order is fixed: awareness, behavior tree, movement. Dead entities linger
// through the grace period before removal so clients can play death effects.
func (m *Match) Tick(now time.Time, delta time.Duration) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	m.mu.Lock()
	ents := make([]*ai.Entity, 0, len(m.entities))
	for _, e := range m.entities {
		ents = append(ents, e)
	}
	candidates := make([]*sim.Combatant, 0, len(m.players))
	for _, p := range m.players {
		candidates = append(candidates, p)
	}
	m.mu.Unlock()

	var removed []string
	for _, e := range ents {
		switch e.Lifecycle {
		case ai.LifecycleSpawned:
			e.Lifecycle = ai.LifecycleActive
		case ai.LifecycleDying:
			if now.Sub(e.DiedAt) >= m.cfg.GracePeriod {
				removed = append(removed, e.ID)
			}
			continue
		case ai.LifecycleRemoved:
			removed = append(removed, e.ID)
			continue
		}

		m.tracker.Update(e, candidates, now, delta)

		ctx := &ai.Context{
			E:       e,
			Now:     now,
			Delta:   delta,
			Combat:  m,
			Move:    m.movement,
			Rand:    m.rng,
			Observe: m.observeState,
		}
		m.trees[e.Archetype.ID].Tick(ctx)

		m.movement.Advance(e, e.Archetype.MoveSpeed, delta)
		m.clampToBounds(e.Combatant)
	}

	for _, id := range removed {
		m.remove(id)
	}
	m.drops.PruneExpired(now)
	m.limits.GC(now)
}

func (m *Match) remove(id string) {
	m.mu.Lock()
	e, ok := m.entities[id]
	if ok {
		delete(m.entities, id)
		m.byArch[e.Archetype.ID]--
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.resolver.Unregister(id)
	m.Bus.Publish(events.EntityRemoved, events.EntityRemovedEvent{EntityID: id})
}

func (m *Match) clampToBounds(c *sim.Combatant) {
	b := m.cfg.Bounds
	if b.X <= 0 && b.Y <= 0 {
		return
	}
	pos := c.Position()
	clamped := pos
	if b.X > 0 {
		clamped.X = clampAxis(clamped.X, b.X)
	}
	if b.Y > 0 {
		clamped.Y = clampAxis(clamped.Y, b.Y)
	}
	if clamped != pos {
		c.SetPosition(clamped)
	}
}

func clampAxis(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func (m *Match) observeState(e *ai.Entity, prev, next ai.State) {
	m.Bus.Publish(events.AIStateChanged, events.AIStateChangedEvent{
		EntityID:      e.ID,
		PreviousState: string(prev),
		NewState:      string(next),
	})
}

// ---- Event reactions ----

func (m *Match) onEntityDied(_ events.Kind, payload any) {
	ev, ok := payload.(events.EntityDiedEvent)
	if !ok {
		return
	}

	m.mu.Lock()
	e := m.entities[ev.EntityID]
	killerIsPlayer := m.players[ev.KillerID] != nil
	m.mu.Unlock()

	if e != nil && (e.Lifecycle == ai.LifecycleActive || e.Lifecycle == ai.LifecycleSpawned) {
		e.Lifecycle = ai.LifecycleDying
		e.DiedAt = m.clock.Now()
		e.ClearTarget()
		m.movement.Stop(e)

		if itemID := m.roller.Roll(ev.ArchetypeID); itemID != "" {
			m.drops.Add(itemID, e.Combatant.Position(), m.clock.Now())
		}
	}

	if killerIsPlayer && ev.ArchetypeID != "" && m.kills != nil {
		m.kills.AddKillCredit(ev.KillerID, ev.ArchetypeID)
	}
}

// onCombatResolved staggers AI entities hit for a large fraction of their
// health, interrupting whatever the tree was doing.
func (m *Match) onCombatResolved(_ events.Kind, payload any) {
	ev, ok := payload.(events.CombatResolvedEvent)
	if !ok || ev.Died {
		return
	}
	m.mu.Lock()
	e := m.entities[ev.VictimID]
	m.mu.Unlock()
	if e == nil {
		return
	}
	if ev.DamageApplied > staggerFraction*e.Combatant.MaxHealth() {
		e.Blackboard.SetTime(ai.KeyStaggerUntil, m.clock.Now().Add(ai.StaggerDuration))
	}
}

// RequestDamage lets behavior tree actions deal melee damage through the
// shared resolver path. Callers are tree actions inside Tick, which already
// holds the simulation lock.
func (m *Match) RequestDamage(attackerID, victimID string, rawDamage float64, now time.Time) {
	if _, err := m.resolver.ApplyDamage(victimID, rawDamage, attackerID, "", now); err != nil {
		m.logger.Warn("ai damage request failed",
			zap.String("attacker", attackerID),
			zap.String("victim", victimID),
			zap.Error(err))
	}
}

// ---- Client operations ----

// HandleWeaponFire gates a fire request through the rate limiter and hands
// it to the combat resolver.
func (m *Match) HandleWeaponFire(actorID, weaponID string, origin, direction sim.Vec3) (combat.FireOutcome, error) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	now := m.clock.Now()
	if !m.limits.Allow(actorID, OpWeaponFire, now) {
		return combat.FireOutcome{}, ErrRateLimited
	}
	return m.resolver.ApplyWeaponFire(actorID, weaponID, origin, direction, now)
}

// HandleHitReport gates a client-computed damage claim. The claim is
// validated, never trusted: out-of-range values reject with an error.
func (m *Match) HandleHitReport(actorID, victimID, weaponID string, claimedDamage float64) (combat.DamageOutcome, error) {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	now := m.clock.Now()
	if !m.limits.Allow(actorID, OpHitReport, now) {
		return combat.DamageOutcome{}, ErrRateLimited
	}
	return m.resolver.ApplyDamage(victimID, claimedDamage, actorID, weaponID, now)
}

// HandleMove applies a player movement request after plausibility checks:
// rate budget, step distance, and playfield bounds.
func (m *Match) HandleMove(actorID string, to sim.Vec3) error {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	now := m.clock.Now()
	if !m.limits.Allow(actorID, OpMove, now) {
		return ErrRateLimited
	}

	m.mu.Lock()
	p := m.players[actorID]
	m.mu.Unlock()
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, actorID)
	}
	if !p.Alive() {
		return fmt.Errorf("%w: %s is dead", ErrBadMove, actorID)
	}
	if p.Position().Dist(to) > m.cfg.MaxMoveStep {
		m.logger.Warn("rejected implausible move",
			zap.String("player", actorID),
			zap.Float64("distance", p.Position().Dist(to)))
		return ErrBadMove
	}
	b := m.cfg.Bounds
	if (b.X > 0 && (to.X < 0 || to.X > b.X)) || (b.Y > 0 && (to.Y < 0 || to.Y > b.Y)) {
		return ErrBadMove
	}

	p.SetPosition(to)
	return nil
}

// ClaimDrop atomically transfers a floor drop to the player. Returns the
// item id, or "" when the drop is gone or was already claimed.
func (m *Match) ClaimDrop(actorID, dropID string) string {
	m.simMu.Lock()
	defer m.simMu.Unlock()

	m.mu.Lock()
	p := m.players[actorID]
	m.mu.Unlock()
	if p == nil {
		return ""
	}
	return m.drops.Claim(dropID)
}
