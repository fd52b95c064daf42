package ai

import "time"

// Blackboard is the per-entity scratch space behavior tree leaves read and
// write: cooldown deadlines, flags, cached points. Entity-local, never
// shared between entities.
type Blackboard struct {
	values map[string]any
}

func NewBlackboard() *Blackboard {
	return &Blackboard{values: make(map[string]any)}
}

func (b *Blackboard) Set(key string, v any) { b.values[key] = v }

func (b *Blackboard) Delete(key string) { delete(b.values, key) }

// Time returns the stored deadline for key, or the zero time.
func (b *Blackboard) Time(key string) time.Time {
	if v, ok := b.values[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func (b *Blackboard) SetTime(key string, t time.Time) { b.values[key] = t }

// Float returns the stored float for key, or 0.
func (b *Blackboard) Float(key string) float64 {
	if v, ok := b.values[key].(float64); ok {
		return v
	}
	return 0
}

func (b *Blackboard) SetFloat(key string, v float64) { b.values[key] = v }

// Bool returns the stored flag for key, or false.
func (b *Blackboard) Bool(key string) bool {
	if v, ok := b.values[key].(bool); ok {
		return v
	}
	return false
}

func (b *Blackboard) SetBool(key string, v bool) { b.values[key] = v }

// Well-known blackboard keys used by the stock leaf library.
const (
	KeyAttackReadyAt  = "attack_ready_at"
	KeySpecialReadyAt = "special_ready_at"
	KeyStaggerUntil   = "stagger_until"
	KeyPatrolIndex    = "patrol_index"
)
