package world

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastlight-game/server/game/ai"
	"github.com/lastlight-game/server/game/events"
	"github.com/lastlight-game/server/game/limiter"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/resource"
)

const tick = 100 * time.Millisecond

func testResources() *resource.Loader {
	res := resource.NewLoader("", nil)
	res.Weapons["rifle"] = &resource.Weapon{
		ID: "rifle", Damage: 40, RPM: 600, Range: 50, Magazine: 30, HeadshotMult: 1,
	}
	res.Archetypes["husk"] = &resource.Archetype{
		ID: "husk", MaxHealth: 100, Armor: 0, Damage: 12, MoveSpeed: 4,
		DetectionRange: 40, AttackRange: 2, AttackIntervalMs: 1000,
		Radius: 0.5, Behavior: ai.BehaviorStalker, Idle: "roam",
		Loot: []resource.LootEntry{{ItemID: "scrap", Weight: 1}},
	}
	res.Archetypes["brute"] = &resource.Archetype{
		ID: "brute", MaxHealth: 300, Armor: 20, Damage: 25, MoveSpeed: 2,
		DetectionRange: 30, AttackRange: 3, AttackIntervalMs: 2000,
		SpecialCooldownMs: 8000, Radius: 1,
		Behavior: ai.BehaviorBrute, Idle: "patrol",
	}
	return res
}

type fakeKills struct {
	credits []string
}

func (f *fakeKills) AddKillCredit(playerID, archetypeID string) {
	f.credits = append(f.credits, playerID+"/"+archetypeID)
}

func newTestMatch(t *testing.T, cfg Config) (*Match, *sim.ManualClock, *fakeKills) {
	t.Helper()
	clock := sim.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	kills := &fakeKills{}
	cfg.Seed = 1
	m := NewMatch(cfg, testResources(), nil, kills, clock, nil)
	t.Cleanup(m.Close)
	return m, clock, kills
}

func (m *Match) tickOnce(clock *sim.ManualClock) {
	clock.Advance(tick)
	m.Tick(clock.Now(), tick)
}

func TestSpawnCaps(t *testing.T) {
	m, _, _ := newTestMatch(t, Config{
		MaxEntities:   3,
		ArchetypeCaps: map[string]int{"brute": 1},
	})

	_, err := m.SpawnEntity("brute", sim.Vec3{})
	require.NoError(t, err)
	_, err = m.SpawnEntity("brute", sim.Vec3{})
	assert.ErrorIs(t, err, ErrEntityCap, "per-archetype cap")

	_, err = m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)
	_, err = m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)
	_, err = m.SpawnEntity("husk", sim.Vec3{})
	assert.ErrorIs(t, err, ErrEntityCap, "global cap")

	_, err = m.SpawnEntity("ghost", sim.Vec3{})
	assert.ErrorIs(t, err, ErrUnknownArchetype)
}

func TestDeathGracePeriodThenRemoval(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{})
	var removed []string
	m.Bus.Subscribe(events.EntityRemoved, func(_ events.Kind, p any) {
		removed = append(removed, p.(events.EntityRemovedEvent).EntityID)
	})

	_, err := m.AddPlayer("p1", sim.Vec3{X: 100})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)
	m.tickOnce(clock)
	require.Equal(t, ai.LifecycleActive, e.Lifecycle)

	_, err = m.HandleHitReport("p1", e.ID, "rifle", 100)
	require.NoError(t, err)
	require.Equal(t, ai.LifecycleDying, e.Lifecycle)
	assert.False(t, e.Combatant.Alive())

	// The corpse lingers through the grace period.
	for i := 0; i < 14; i++ {
		m.tickOnce(clock)
	}
	assert.Empty(t, removed)
	assert.NotNil(t, m.Entity(e.ID))

	m.tickOnce(clock)
	assert.Equal(t, []string{e.ID}, removed)
	assert.Nil(t, m.Entity(e.ID))
	assert.Nil(t, m.Resolver().Get(e.ID))
}

func TestKillCreditAndLootDrop(t *testing.T) {
	m, _, kills := newTestMatch(t, Config{})
	_, err := m.AddPlayer("p1", sim.Vec3{X: 100})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{X: 5})
	require.NoError(t, err)

	_, err = m.HandleHitReport("p1", e.ID, "rifle", 100)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1/husk"}, kills.credits)
	drops := m.Drops().List()
	require.Len(t, drops, 1)
	assert.Equal(t, "scrap", drops[0].ItemID)
	assert.Equal(t, sim.Vec3{X: 5}, drops[0].Position)

	// Exactly one claimant wins the drop.
	assert.Equal(t, "scrap", m.ClaimDrop("p1", drops[0].ID))
	assert.Equal(t, "", m.ClaimDrop("p1", drops[0].ID))
}

func TestHeavyHitStaggersEntity(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{})
	_, err := m.AddPlayer("p1", sim.Vec3{X: 1})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)
	m.tickOnce(clock)

	// 25 applied > 20% of 100 max health.
	_, err = m.HandleHitReport("p1", e.ID, "rifle", 25)
	require.NoError(t, err)

	m.tickOnce(clock)
	assert.Equal(t, ai.StateStagger, e.State(), "staggered entity stops acting")

	// Stagger expires and the entity goes back to fighting.
	for i := 0; i < 8; i++ {
		m.tickOnce(clock)
	}
	assert.NotEqual(t, ai.StateStagger, e.State())
}

func TestEntityChasesAndAttacksPlayer(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{})
	p, err := m.AddPlayer("p1", sim.Vec3{X: 10})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)

	m.tickOnce(clock)
	m.tickOnce(clock)
	assert.Equal(t, ai.StateChase, e.State())

	// 4 units/s closes 10 units well inside 40 ticks; the first swing lands
	// as soon as the entity reaches attack range.
	start := p.Health()
	for i := 0; i < 40 && p.Health() == start; i++ {
		m.tickOnce(clock)
	}
	assert.Less(t, p.Health(), start, "entity must reach the player and land a hit")
	assert.Equal(t, ai.StateAttack, e.State())
}

func TestHandleMoveValidation(t *testing.T) {
	m, _, _ := newTestMatch(t, Config{
		Bounds:      sim.Vec3{X: 100, Y: 100},
		MaxMoveStep: 5,
	})
	p, err := m.AddPlayer("p1", sim.Vec3{X: 50, Y: 50})
	require.NoError(t, err)

	require.NoError(t, m.HandleMove("p1", sim.Vec3{X: 53, Y: 50}))
	assert.Equal(t, sim.Vec3{X: 53, Y: 50}, p.Position())

	err = m.HandleMove("p1", sim.Vec3{X: 80, Y: 50})
	assert.ErrorIs(t, err, ErrBadMove, "teleport-distance move")
	assert.Equal(t, sim.Vec3{X: 53, Y: 50}, p.Position(), "rejected move must not apply")

	err = m.HandleMove("p1", sim.Vec3{X: 50, Y: -2})
	assert.ErrorIs(t, err, ErrBadMove, "out of bounds")

	err = m.HandleMove("ghost", sim.Vec3{X: 1})
	assert.ErrorIs(t, err, ErrUnknownPlayer)
}

func TestOperationsRateLimited(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{
		MaxMoveStep: 100,
		RateRules: map[string]limiter.Rule{
			OpWeaponFire: {MaxCalls: 2, Window: time.Second},
			OpMove:       {MaxCalls: 3, Window: time.Second},
		},
	})
	_, err := m.AddPlayer("p1", sim.Vec3{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		clock.Advance(200 * time.Millisecond)
		_, err = m.HandleWeaponFire("p1", "rifle", sim.Vec3{}, sim.Vec3{X: 1})
		require.NoError(t, err)
	}
	_, err = m.HandleWeaponFire("p1", "rifle", sim.Vec3{}, sim.Vec3{X: 1})
	assert.ErrorIs(t, err, ErrRateLimited)

	for i := 0; i < 3; i++ {
		require.NoError(t, m.HandleMove("p1", sim.Vec3{X: float64(i + 1)}))
	}
	assert.ErrorIs(t, m.HandleMove("p1", sim.Vec3{X: 10}), ErrRateLimited)

	// The budget recovers once the window slides past the recorded calls.
	clock.Advance(2 * time.Second)
	_, err = m.HandleWeaponFire("p1", "rifle", sim.Vec3{}, sim.Vec3{X: 1})
	assert.NoError(t, err)
}

func TestWeaponFireHitsEntity(t *testing.T) {
	m, _, _ := newTestMatch(t, Config{})
	_, err := m.AddPlayer("p1", sim.Vec3{})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{X: 5})
	require.NoError(t, err)

	out, err := m.HandleWeaponFire("p1", "rifle", sim.Vec3{}, sim.Vec3{X: 1})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.True(t, out.Hit)
	assert.Equal(t, e.ID, out.VictimID)
	assert.Equal(t, 60.0, e.Combatant.Health())
}

func TestSuspectHitReportRejected(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{})
	_, err := m.AddPlayer("p1", sim.Vec3{})
	require.NoError(t, err)
	e, err := m.SpawnEntity("husk", sim.Vec3{X: 5})
	require.NoError(t, err)
	m.tickOnce(clock)

	_, err = m.HandleHitReport("p1", e.ID, "rifle", 100.01)
	assert.Error(t, err)
	assert.Equal(t, 100.0, e.Combatant.Health(), "rejected claim must not change state")
}

func TestDespawnEntityImmediate(t *testing.T) {
	m, _, _ := newTestMatch(t, Config{})
	var removed int
	m.Bus.Subscribe(events.EntityRemoved, func(events.Kind, any) { removed++ })

	e, err := m.SpawnEntity("husk", sim.Vec3{})
	require.NoError(t, err)
	m.DespawnEntity(e.ID)

	assert.Equal(t, 1, removed)
	assert.Nil(t, m.Entity(e.ID))
	assert.Equal(t, 0, m.EntityCount())

	// Cap slot is released.
	_, err = m.SpawnEntity("husk", sim.Vec3{})
	assert.NoError(t, err)
}

// Ticks, director spawns, and client operations arrive on different
// goroutines; the simulation lock must serialize them. Run with the race
// detector.
func TestConcurrentClientOpsAndTicks(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{Bounds: sim.Vec3{X: 100, Y: 100}})
	_, err := m.AddPlayer("p1", sim.Vec3{X: 50, Y: 50})
	require.NoError(t, err)
	target, err := m.SpawnEntity("husk", sim.Vec3{X: 20, Y: 20})
	require.NoError(t, err)

	now := clock.Now()
	const rounds = 40

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			m.Tick(now, tick)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = m.SpawnEntity("husk", sim.Vec3{X: 80, Y: 80})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = m.HandleHitReport("p1", target.ID, "rifle", 10)
			_, _ = m.HandleWeaponFire("p1", "rifle", sim.Vec3{X: 50, Y: 50}, sim.Vec3{X: 1})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_ = m.HandleMove("p1", sim.Vec3{X: 52, Y: 50})
			_ = m.HandleMove("p1", sim.Vec3{X: 50, Y: 50})
		}
	}()
	wg.Wait()

	// All spawns fit under the default cap and nothing died at a single
	// timestamp (the immunity window absorbs the repeat hits).
	assert.Equal(t, 1+rounds, m.EntityCount())
	assert.True(t, target.Combatant.Health() > 0)
	require.NotNil(t, m.Player("p1"))
}
