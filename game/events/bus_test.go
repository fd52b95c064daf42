package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DispatchOrder(t *testing.T) {
	b := NewBus()
	var got []int
	b.Subscribe(EntityDied, func(Kind, any) { got = append(got, 1) })
	b.Subscribe(EntityDied, func(Kind, any) { got = append(got, 2) })
	b.Subscribe(EntityDied, func(Kind, any) { got = append(got, 3) })

	b.Publish(EntityDied, EntityDiedEvent{EntityID: "npc-1"})
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	calls := 0
	tok := b.Subscribe(CombatResolved, func(Kind, any) { calls++ })

	b.Publish(CombatResolved, CombatResolvedEvent{VictimID: "p1"})
	b.Unsubscribe(tok)
	b.Publish(CombatResolved, CombatResolvedEvent{VictimID: "p1"})
	assert.Equal(t, 1, calls)

	// Unknown token is a no-op.
	b.Unsubscribe(Token{kind: CombatResolved, id: 999})
}

func TestBus_KindsAreIsolated(t *testing.T) {
	b := NewBus()
	died := 0
	fired := 0
	b.Subscribe(EntityDied, func(Kind, any) { died++ })
	b.Subscribe(WeaponFired, func(Kind, any) { fired++ })

	b.Publish(WeaponFired, WeaponFiredEvent{ShooterID: "p1", WeaponID: "smg"})
	assert.Equal(t, 0, died)
	assert.Equal(t, 1, fired)
}

func TestBus_PayloadDelivered(t *testing.T) {
	b := NewBus()
	var seen CombatResolvedEvent
	b.Subscribe(CombatResolved, func(_ Kind, payload any) {
		seen = payload.(CombatResolvedEvent)
	})
	b.Publish(CombatResolved, CombatResolvedEvent{
		AttackerID:    "p1",
		VictimID:      "npc-2",
		DamageApplied: 12.5,
		Died:          true,
	})
	assert.Equal(t, "npc-2", seen.VictimID)
	assert.True(t, seen.Died)
	assert.InDelta(t, 12.5, seen.DamageApplied, 1e-9)
}
