package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/ai"
	"github.com/lastlight-game/server/game/player"
	"github.com/lastlight-game/server/game/profile"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/game/world"
	"github.com/lastlight-game/server/resource"
	"github.com/lastlight-game/server/testutil"
)

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
	return res
}

type fixture struct {
	mh       *MatchHandlers
	match    *world.Match
	clock    *sim.ManualClock
	profiles *profile.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	profiles := profile.New(db, nil, nil)
	_, err := profiles.Ensure(context.Background(), 1, "Reaper")
	require.NoError(t, err)

	clock := sim.NewManualClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	m := world.NewMatch(world.Config{
		MatchID: "arena-1",
		Bounds:  sim.Vec3{X: 100, Y: 100},
		Seed:    1,
	}, testResources(), nil, profiles, clock, nil)
	t.Cleanup(m.Close)

	reg := world.NewRegistry(zap.NewNop())
	reg.Add(m)

	sm := player.NewSessionManager(zap.NewNop())
	return &fixture{
		mh:       NewMatchHandlers(reg, sm, profiles, zap.NewNop()),
		match:    m,
		clock:    clock,
		profiles: profiles,
	}
}

// recv pops the next packet sent to the session.
func recv(t *testing.T, s *player.Session) (string, map[string]interface{}) {
	t.Helper()
	require.NotEmpty(t, s.SendChan, "expected a packet")
	var pkt player.Packet
	require.NoError(t, json.Unmarshal(<-s.SendChan, &pkt))
	var payload map[string]interface{}
	if len(pkt.Payload) > 0 {
		require.NoError(t, json.Unmarshal(pkt.Payload, &payload))
	}
	return pkt.Type, payload
}

func joinedSession(t *testing.T, f *fixture) *player.Session {
	t.Helper()
	s := newSession(1, "")
	raw, _ := json.Marshal(joinMatchReq{MatchID: "arena-1"})
	require.NoError(t, f.mh.HandleJoinMatch(context.Background(), s, raw))
	typ, _ := recv(t, s)
	require.Equal(t, "match_joined", typ)
	return s
}

func TestHandleJoinMatch(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	assert.Equal(t, "Reaper", s.Callsign)
	assert.Equal(t, "arena-1", s.MatchID)
	require.NotNil(t, f.match.Player("Reaper"))
	assert.Equal(t, sim.Vec3{X: 50, Y: 50}, f.match.Player("Reaper").Position())
}

func TestHandleJoinMatch_UnknownMatch(t *testing.T) {
	f := newFixture(t)
	s := newSession(1, "")
	raw, _ := json.Marshal(joinMatchReq{MatchID: "nope"})
	require.NoError(t, f.mh.HandleJoinMatch(context.Background(), s, raw))
	typ, payload := recv(t, s)
	assert.Equal(t, "error", typ)
	assert.Equal(t, "unknown match", payload["message"])
}

func TestHandleJoinMatch_NoProfile(t *testing.T) {
	f := newFixture(t)
	s := newSession(99, "")
	raw, _ := json.Marshal(joinMatchReq{MatchID: "arena-1"})
	require.NoError(t, f.mh.HandleJoinMatch(context.Background(), s, raw))
	typ, _ := recv(t, s)
	assert.Equal(t, "error", typ)
}

func TestHandleJoinMatch_SchemaRejectsMissingID(t *testing.T) {
	f := newFixture(t)
	s := newSession(1, "")
	require.NoError(t, f.mh.HandleJoinMatch(context.Background(), s, json.RawMessage(`{}`)))
	typ, _ := recv(t, s)
	assert.Equal(t, "error", typ)
}

func TestHandleWeaponFire_NotInMatch(t *testing.T) {
	f := newFixture(t)
	s := newSession(1, "")
	raw, _ := json.Marshal(weaponFireReq{
		WeaponID: "rifle", Origin: vec3Payload{X: 0, Y: 0}, Direction: vec3Payload{X: 1, Y: 0},
	})
	require.NoError(t, f.mh.HandleWeaponFire(context.Background(), s, raw))
	typ, payload := recv(t, s)
	assert.Equal(t, "error", typ)
	assert.Equal(t, "not in a match", payload["message"])
}

func TestHandleWeaponFire_HitsEntity(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	e, err := f.match.SpawnEntity("husk", sim.Vec3{X: 60, Y: 50})
	require.NoError(t, err)

	raw, _ := json.Marshal(weaponFireReq{
		WeaponID:  "rifle",
		Origin:    vec3Payload{X: 50, Y: 50},
		Direction: vec3Payload{X: 1, Y: 0},
	})
	require.NoError(t, f.mh.HandleWeaponFire(context.Background(), s, raw))

	typ, payload := recv(t, s)
	require.Equal(t, "fire_result", typ)
	assert.Equal(t, true, payload["accepted"])
	assert.Equal(t, true, payload["hit"])
	assert.Equal(t, e.ID, payload["victim_id"])
	assert.Equal(t, 40.0, payload["damage"])
	assert.Equal(t, 60.0, e.Combatant.Health())
}

func TestHandleHitReport_SuspectClaimRejected(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	e, err := f.match.SpawnEntity("husk", sim.Vec3{X: 52, Y: 50})
	require.NoError(t, err)

	raw, _ := json.Marshal(hitReportReq{TargetID: e.ID, WeaponID: "rifle", Damage: 100.01})
	require.NoError(t, f.mh.HandleHitReport(context.Background(), s, raw))

	typ, _ := recv(t, s)
	assert.Equal(t, "error", typ)
	assert.Equal(t, 100.0, e.Combatant.Health(), "claim must not be clamped and applied")
}

func TestHandleMove(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	raw, _ := json.Marshal(moveReq{To: vec3Payload{X: 52, Y: 50}})
	require.NoError(t, f.mh.HandleMove(context.Background(), s, raw))
	assert.Empty(t, s.SendChan, "accepted moves are not acked")
	assert.Equal(t, sim.Vec3{X: 52, Y: 50}, f.match.Player("Reaper").Position())

	// Teleport-sized step is rejected.
	raw, _ = json.Marshal(moveReq{To: vec3Payload{X: 90, Y: 50}})
	require.NoError(t, f.mh.HandleMove(context.Background(), s, raw))
	typ, _ := recv(t, s)
	assert.Equal(t, "error", typ)
	assert.Equal(t, sim.Vec3{X: 52, Y: 50}, f.match.Player("Reaper").Position())
}

func TestHandleClaimDrop(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	dropID := f.match.Drops().Add("medkit", sim.Vec3{X: 51, Y: 50}, f.clock.Now())

	raw, _ := json.Marshal(claimDropReq{DropID: dropID})
	require.NoError(t, f.mh.HandleClaimDrop(context.Background(), s, raw))
	typ, payload := recv(t, s)
	require.Equal(t, "drop_claimed", typ)
	assert.Equal(t, "medkit", payload["item_id"])
	assert.Equal(t, []string{"medkit"}, s.Loot())

	// Second claim loses the race.
	require.NoError(t, f.mh.HandleClaimDrop(context.Background(), s, raw))
	typ, _ = recv(t, s)
	assert.Equal(t, "error", typ)
}

func TestHandleExtract(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)
	s.AddLoot("scrap")

	require.NoError(t, f.mh.HandleExtract(context.Background(), s, nil))
	typ, payload := recv(t, s)
	require.Equal(t, "extracted", typ)
	assert.Equal(t, []interface{}{"scrap"}, payload["loot"])

	assert.True(t, s.Extracted())
	assert.Nil(t, f.match.Player("Reaper"), "combatant removed from the simulation")

	p, err := f.profiles.ByCallsign(context.Background(), "Reaper")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.MatchesPlayed)
	assert.JSONEq(t, `["scrap"]`, string(p.Unlocks))
}

func TestHandleLeave_DeathRecorded(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)

	// Kill the player through the resolver, spacing the hits past the
	// immunity window.
	_, err := f.match.Resolver().ApplyDamage("Reaper", 100, "husk-x", "", f.clock.Now())
	require.NoError(t, err)
	f.clock.Advance(200 * time.Millisecond)
	_, err = f.match.Resolver().ApplyDamage("Reaper", 100, "husk-x", "", f.clock.Now())
	require.NoError(t, err)
	require.False(t, f.match.Player("Reaper").Alive())

	f.mh.HandleLeave(context.Background(), s)

	p, err := f.profiles.ByCallsign(context.Background(), "Reaper")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Deaths)
	assert.Equal(t, int64(1), p.MatchesPlayed)
	assert.JSONEq(t, `[]`, string(p.Unlocks), "loot forfeited on death")
	assert.Nil(t, f.match.Player("Reaper"))
}

func TestHandleLeave_AfterExtractionIsNoop(t *testing.T) {
	f := newFixture(t)
	s := joinedSession(t, f)
	require.NoError(t, f.mh.HandleExtract(context.Background(), s, nil))

	f.mh.HandleLeave(context.Background(), s)

	p, err := f.profiles.ByCallsign(context.Background(), "Reaper")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.MatchesPlayed, "only the extraction result is recorded")
}
