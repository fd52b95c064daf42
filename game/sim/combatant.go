package sim

import (
	"sync"
	"time"
)

// CombatantKind distinguishes player-controlled combatants from AI ones.
type CombatantKind string

const (
	KindPlayer CombatantKind = "player"
	KindNPC    CombatantKind = "npc"
)

// Combatant is the health/armor state of one living entity, player or AI.
// It is created on spawn, mutated only through its own methods (which hold
// the per-combatant lock), and discarded on despawn/respawn.
type Combatant struct {
	ID   string
	Kind CombatantKind

	mu          sync.Mutex
	pos         Vec3
	radius      float64
	health      float64
	maxHealth   float64
	armor       float64
	maxArmor    float64
	alive       bool
	immuneUntil time.Time
}

// NewCombatant creates a live combatant at full health.
func NewCombatant(id string, kind CombatantKind, maxHealth, maxArmor float64, pos Vec3, radius float64) *Combatant {
	if maxHealth <= 0 {
		maxHealth = 1
	}
	if maxArmor < 0 {
		maxArmor = 0
	}
	if radius <= 0 {
		radius = 0.5
	}
	return &Combatant{
		ID:        id,
		Kind:      kind,
		pos:       pos,
		radius:    radius,
		health:    maxHealth,
		maxHealth: maxHealth,
		armor:     maxArmor,
		maxArmor:  maxArmor,
		alive:     true,
	}
}

func (c *Combatant) Position() Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *Combatant) SetPosition(p Vec3) {
	c.mu.Lock()
	c.pos = p
	c.mu.Unlock()
}

func (c *Combatant) Radius() float64 { return c.radius }

func (c *Combatant) Health() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.health
}

func (c *Combatant) MaxHealth() float64 { return c.maxHealth }

func (c *Combatant) Armor() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armor
}

func (c *Combatant) MaxArmor() float64 { return c.maxArmor }

func (c *Combatant) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// DamageApplication is the result of one ApplyDamage call.
type DamageApplication struct {
	Applied     float64 // health actually removed
	ArmorSpent  float64
	HealthAfter float64
	ArmorAfter  float64
	Died        bool
	Immune      bool // rejected by the immunity window, nothing changed
	Dead        bool // victim was already dead, nothing changed
}

// ApplyDamage runs the damage pipeline against this combatant atomically:
// armor curve armor/(armor+100), a 10% minimum pass-through floor, armor
// absorbing up to half of the effective damage, health floored at zero, and
// a short immunity window that suppresses duplicate near-simultaneous hits.
// The alive flag flips to false at most once per life.
func (c *Combatant) ApplyDamage(raw float64, now time.Time, immunity time.Duration) DamageApplication {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.alive {
		return DamageApplication{Dead: true, HealthAfter: c.health, ArmorAfter: c.armor}
	}
	if now.Before(c.immuneUntil) {
		return DamageApplication{Immune: true, HealthAfter: c.health, ArmorAfter: c.armor}
	}

	// Defensive clamps; the pipeline below never produces these.
	if c.health < 0 {
		c.health = 0
	}
	if c.armor < 0 {
		c.armor = 0
	}

	reduction := c.armor / (c.armor + 100)
	effective := raw * (1 - reduction)
	if floor := raw * 0.1; effective < floor {
		effective = floor
	}

	absorb := effective * 0.5
	if absorb > c.armor {
		absorb = c.armor
	}
	c.armor -= absorb
	effective -= absorb

	c.health -= effective
	if c.health < 0 {
		c.health = 0
	}
	c.immuneUntil = now.Add(immunity)

	died := false
	if c.health == 0 {
		c.alive = false
		died = true
	}

	return DamageApplication{
		Applied:     effective,
		ArmorSpent:  absorb,
		HealthAfter: c.health,
		ArmorAfter:  c.armor,
		Died:        died,
	}
}

// Snapshot is a read-only copy for HUD/persistence consumers.
type Snapshot struct {
	ID        string        `json:"id"`
	Kind      CombatantKind `json:"kind"`
	Position  Vec3          `json:"position"`
	Health    float64       `json:"health"`
	MaxHealth float64       `json:"max_health"`
	Armor     float64       `json:"armor"`
	MaxArmor  float64       `json:"max_armor"`
	Alive     bool          `json:"alive"`
}

func (c *Combatant) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:        c.ID,
		Kind:      c.Kind,
		Position:  c.pos,
		Health:    c.health,
		MaxHealth: c.maxHealth,
		Armor:     c.armor,
		MaxArmor:  c.maxArmor,
		Alive:     c.alive,
	}
}
