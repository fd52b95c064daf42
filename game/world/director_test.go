package world

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lastlight-game/server/game/sim"
)

func TestDirectorFillsAndRespawns(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{})
	_, err := m.AddPlayer("p1", sim.Vec3{X: 200})
	require.NoError(t, err)

	d := NewDirector(m, []SpawnPoint{
		{ArchetypeID: "husk", Position: sim.Vec3{X: 5}, Count: 3, RespawnDelay: 2 * time.Second},
	}, nil)

	d.Maintain(clock.Now())
	assert.Equal(t, 3, m.EntityCount(), "initial fill")
	assert.Equal(t, 3, d.Live())

	// Kill one and wait out the death grace period.
	var victim string
	for id := range m.entities {
		victim = id
		break
	}
	_, err = m.HandleHitReport("p1", victim, "rifle", 100)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		m.tickOnce(clock)
		d.Maintain(clock.Now())
	}
	require.Equal(t, 2, m.EntityCount(), "corpse removed, respawn still pending")

	// Respawn delay elapses.
	clock.Advance(2 * time.Second)
	m.Tick(clock.Now(), tick)
	d.Maintain(clock.Now())
	assert.Equal(t, 3, m.EntityCount())
	assert.Equal(t, 3, d.Live())
}

func TestDirectorRetriesWhenCapped(t *testing.T) {
	m, clock, _ := newTestMatch(t, Config{MaxEntities: 2})
	d := NewDirector(m, []SpawnPoint{
		{ArchetypeID: "husk", Position: sim.Vec3{}, Count: 3},
	}, nil)

	d.Maintain(clock.Now())
	assert.Equal(t, 2, m.EntityCount(), "cap holds the third spawn back")

	// Freeing a slot lets the retry succeed.
	var id string
	for eid := range m.entities {
		id = eid
		break
	}
	m.DespawnEntity(id)
	d.Maintain(clock.Now())
	assert.Equal(t, 2, m.EntityCount())
}
