// Package resource loads the static game data the simulation runs against:
// the weapon catalog and the AI archetype catalog. Both are plain YAML files
// edited by designers; the loader validates them once at startup so the
// simulation never has to re-check static data.
package resource

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Weapon is one entry of weapons.yaml.
type Weapon struct {
	ID           string  `yaml:"id"`
	Name         string  `yaml:"name"`
	Damage       float64 `yaml:"damage"`
	RPM          float64 `yaml:"rpm"`
	Range        float64 `yaml:"range"`
	Magazine     int     `yaml:"magazine"`
	HeadshotMult float64 `yaml:"headshot_mult"`
}

// MinFireInterval returns the minimum seconds between two shots.
func (w *Weapon) MinFireInterval() float64 {
	if w.RPM <= 0 {
		return 0
	}
	return 60 / w.RPM
}

// LootEntry is one weighted row of an archetype's drop table.
type LootEntry struct {
	ItemID string `yaml:"item_id"`
	Weight int    `yaml:"weight"`
}

// Archetype is one entry of archetypes.yaml. All entities of an archetype
// share this immutable data; per-entity state lives on the entity itself.
type Archetype struct {
	ID                string      `yaml:"id"`
	Name              string      `yaml:"name"`
	MaxHealth         float64     `yaml:"max_health"`
	Armor             float64     `yaml:"armor"`
	Damage            float64     `yaml:"damage"`
	MoveSpeed         float64     `yaml:"move_speed"` // units per second
	DetectionRange    float64     `yaml:"detection_range"`
	AttackRange       float64     `yaml:"attack_range"`
	AttackIntervalMs  int         `yaml:"attack_interval_ms"`
	SpecialCooldownMs int         `yaml:"special_cooldown_ms"`
	Radius            float64     `yaml:"radius"`
	Behavior          string      `yaml:"behavior"`   // behavior tree id
	Idle              string      `yaml:"idle"`       // patrol | roam | hover
	FleeBelow         float64     `yaml:"flee_below"` // health fraction, 0 = never flees
	Loot              []LootEntry `yaml:"loot"`
}

// SpawnPointDef is one entry of spawns.yaml: a point on the playfield that
// keeps a population of one archetype alive.
type SpawnPointDef struct {
	ArchetypeID    string  `yaml:"archetype_id"`
	X              float64 `yaml:"x"`
	Y              float64 `yaml:"y"`
	Count          int     `yaml:"count"`
	RespawnDelayMs int     `yaml:"respawn_delay_ms"`
}

// Loader holds the parsed catalogs.
type Loader struct {
	dir         string
	logger      *zap.Logger
	Weapons     map[string]*Weapon
	Archetypes  map[string]*Archetype
	SpawnPoints []*SpawnPointDef
}

// NewLoader creates a Loader reading from dir (weapons.yaml, archetypes.yaml).
func NewLoader(dir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		dir:        dir,
		logger:     logger,
		Weapons:    make(map[string]*Weapon),
		Archetypes: make(map[string]*Archetype),
	}
}

// Load parses and validates both catalogs.
func (l *Loader) Load() error {
	var weapons []*Weapon
	if err := readYAML(filepath.Join(l.dir, "weapons.yaml"), &weapons); err != nil {
		return fmt.Errorf("resource: weapons: %w", err)
	}
	for _, w := range weapons {
		if err := validateWeapon(w); err != nil {
			return fmt.Errorf("resource: weapon %q: %w", w.ID, err)
		}
		if _, dup := l.Weapons[w.ID]; dup {
			return fmt.Errorf("resource: duplicate weapon id %q", w.ID)
		}
		l.Weapons[w.ID] = w
	}

	var archetypes []*Archetype
	if err := readYAML(filepath.Join(l.dir, "archetypes.yaml"), &archetypes); err != nil {
		return fmt.Errorf("resource: archetypes: %w", err)
	}
	for _, a := range archetypes {
		if err := validateArchetype(a); err != nil {
			return fmt.Errorf("resource: archetype %q: %w", a.ID, err)
		}
		if _, dup := l.Archetypes[a.ID]; dup {
			return fmt.Errorf("resource: duplicate archetype id %q", a.ID)
		}
		l.Archetypes[a.ID] = a
	}

	// spawns.yaml is optional; a match without spawn points just stays empty
	// until a director is given points some other way.
	var points []*SpawnPointDef
	if err := readYAML(filepath.Join(l.dir, "spawns.yaml"), &points); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("resource: spawns: %w", err)
		}
	} else {
		for i, p := range points {
			if p.ArchetypeID == "" || p.Count <= 0 {
				return fmt.Errorf("resource: spawn point %d invalid", i)
			}
			if _, ok := l.Archetypes[p.ArchetypeID]; !ok {
				return fmt.Errorf("resource: spawn point %d references unknown archetype %q", i, p.ArchetypeID)
			}
		}
		l.SpawnPoints = points
	}

	l.logger.Info("resources loaded",
		zap.Int("weapons", len(l.Weapons)),
		zap.Int("archetypes", len(l.Archetypes)),
		zap.Int("spawn_points", len(l.SpawnPoints)))
	return nil
}

// WeaponByID returns the weapon or nil.
func (l *Loader) WeaponByID(id string) *Weapon { return l.Weapons[id] }

// ArchetypeByID returns the archetype or nil.
func (l *Loader) ArchetypeByID(id string) *Archetype { return l.Archetypes[id] }

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func validateWeapon(w *Weapon) error {
	switch {
	case w.ID == "":
		return fmt.Errorf("missing id")
	case w.Damage <= 0:
		return fmt.Errorf("damage must be positive")
	case w.RPM <= 0:
		return fmt.Errorf("rpm must be positive")
	case w.Range <= 0:
		return fmt.Errorf("range must be positive")
	case w.Magazine <= 0:
		return fmt.Errorf("magazine must be positive")
	}
	if w.HeadshotMult == 0 {
		w.HeadshotMult = 1
	}
	return nil
}

func validateArchetype(a *Archetype) error {
	switch {
	case a.ID == "":
		return fmt.Errorf("missing id")
	case a.MaxHealth <= 0:
		return fmt.Errorf("max_health must be positive")
	case a.Armor < 0:
		return fmt.Errorf("armor must not be negative")
	case a.Damage <= 0:
		return fmt.Errorf("damage must be positive")
	case a.MoveSpeed <= 0:
		return fmt.Errorf("move_speed must be positive")
	case a.DetectionRange <= 0:
		return fmt.Errorf("detection_range must be positive")
	case a.AttackRange <= 0:
		return fmt.Errorf("attack_range must be positive")
	case a.AttackRange > a.DetectionRange:
		return fmt.Errorf("attack_range exceeds detection_range")
	case a.FleeBelow < 0 || a.FleeBelow >= 1:
		return fmt.Errorf("flee_below must be in [0,1)")
	}
	if a.AttackIntervalMs <= 0 {
		a.AttackIntervalMs = 1000
	}
	if a.Radius <= 0 {
		a.Radius = 0.5
	}
	if a.Behavior == "" {
		a.Behavior = "stalker"
	}
	if a.Idle == "" {
		a.Idle = "roam"
	}
	for i, d := range a.Loot {
		if d.ItemID == "" || d.Weight <= 0 {
			return fmt.Errorf("loot entry %d invalid", i)
		}
	}
	return nil
}
