package events

import (
	"sync"

	"github.com/lastlight-game/server/game/sim"
)

// Kind names one event stream on the bus.
type Kind string

const (
	WeaponFired    Kind = "weapon_fired"
	CombatResolved Kind = "combat_resolved"
	EntityDied     Kind = "entity_died"
	EntitySpawned  Kind = "entity_spawned"
	EntityRemoved  Kind = "entity_removed"
	AIStateChanged Kind = "ai_state_changed"
)

// WeaponFiredEvent is raised for every accepted fire, hit or miss.
type WeaponFiredEvent struct {
	ShooterID string   `json:"shooter_id"`
	WeaponID  string   `json:"weapon_id"`
	Origin    sim.Vec3 `json:"origin"`
	Direction sim.Vec3 `json:"direction"`
	Hit       bool     `json:"hit"`
	VictimID  string   `json:"victim_id,omitempty"`
}

// CombatResolvedEvent is raised for every damage application that changed state.
type CombatResolvedEvent struct {
	AttackerID        string  `json:"attacker_id,omitempty"`
	VictimID          string  `json:"victim_id"`
	WeaponID          string  `json:"weapon_id,omitempty"`
	DamageApplied     float64 `json:"damage_applied"`
	VictimHealthAfter float64 `json:"victim_health_after"`
	Died              bool    `json:"died"`
}

// EntityDiedEvent is raised exactly once per combatant life.
type EntityDiedEvent struct {
	EntityID    string `json:"entity_id"`
	KillerID    string `json:"killer_id,omitempty"`
	ArchetypeID string `json:"archetype_id,omitempty"` // empty for players
}

// EntitySpawnedEvent is raised when an AI entity enters the registry.
type EntitySpawnedEvent struct {
	EntityID    string   `json:"entity_id"`
	ArchetypeID string   `json:"archetype_id"`
	Position    sim.Vec3 `json:"position"`
}

// EntityRemovedEvent is raised when an AI entity leaves the registry.
type EntityRemovedEvent struct {
	EntityID string `json:"entity_id"`
}

// AIStateChangedEvent is raised on named AI state transitions (debug/analytics).
type AIStateChangedEvent struct {
	EntityID      string `json:"entity_id"`
	PreviousState string `json:"previous_state"`
	NewState      string `json:"new_state"`
}

// Handler consumes one published event. Handlers run synchronously on the
// publisher's goroutine, in registration order.
type Handler func(kind Kind, payload any)

// Token identifies one subscription for Unsubscribe.
type Token struct {
	kind Kind
	id   uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

// Bus is an in-process typed event bus. Dispatch order is the registration
// order of subscribers for that kind, so two identical runs observe events
// identically.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Kind][]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]subscriber)}
}

// Subscribe registers fn for the given kind and returns an unsubscribe token.
func (b *Bus) Subscribe(kind Kind, fn Handler) Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[kind] = append(b.subs[kind], subscriber{id: b.nextID, fn: fn})
	return Token{kind: kind, id: b.nextID}
}

// Unsubscribe removes the subscription identified by tok. Unknown tokens are
// a no-op.
func (b *Bus) Unsubscribe(tok Token) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.subs[tok.kind]
	n := 0
	for _, s := range entries {
		if s.id != tok.id {
			entries[n] = s
			n++
		}
	}
	b.subs[tok.kind] = entries[:n]
}

// Publish delivers payload to every subscriber of kind, in order.
func (b *Bus) Publish(kind Kind, payload any) {
	b.mu.RLock()
	entries := make([]subscriber, len(b.subs[kind]))
	copy(entries, b.subs[kind])
	b.mu.RUnlock()

	for _, s := range entries {
		s.fn(kind, payload)
	}
}
