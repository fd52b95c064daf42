package combat

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/events"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/resource"
)

var (
	// ErrUnknownActor is returned for ids with no registered combatant.
	ErrUnknownActor = errors.New("combat: unknown actor")
	// ErrUnknownWeapon is returned for weapon ids missing from the catalog.
	ErrUnknownWeapon = errors.New("combat: unknown weapon")
	// ErrSuspectDamage is returned for claimed damage outside (0, max];
	// the value is rejected rather than clamped so attempted cheating
	// surfaces instead of being silently normalized.
	ErrSuspectDamage = errors.New("combat: suspect damage value")
)

// Rejection reasons for benign fire refusals.
const (
	RejectCooldown = "cooldown"
	RejectNoAmmo   = "no_ammo"
	RejectDead     = "shooter_dead"
)

// Ray shots passing this close to a target's center (as a fraction of its
// radius) count as headshots.
const headshotFrac = 0.3

// ExploitReporter receives rejected requests that look like cheating
// attempts. Implemented by the audit store; nil disables reporting.
type ExploitReporter interface {
	ReportExploit(actorID, action, detail string)
}

// Config tunes the resolver.
type Config struct {
	ImmunityWindow   time.Duration // default 100ms
	MaxClaimedDamage float64       // default 100
}

func (c Config) withDefaults() Config {
	if c.ImmunityWindow <= 0 {
		c.ImmunityWindow = 100 * time.Millisecond
	}
	if c.MaxClaimedDamage <= 0 {
		c.MaxClaimedDamage = 100
	}
	return c
}

// FireOutcome reports one ApplyWeaponFire call.
type FireOutcome struct {
	Accepted bool
	Reason   string // set when not accepted
	Hit      bool
	Headshot bool
	VictimID string
	Damage   DamageOutcome // meaningful when Hit
	AmmoLeft int
}

// DamageOutcome reports one ApplyDamage call.
type DamageOutcome struct {
	Applied     float64
	HealthAfter float64
	ArmorAfter  float64
	Died        bool
	Immune      bool // suppressed by the immunity window
	AlreadyDead bool
}

// Resolver owns the combatant table and is the single entry point for all
// damage, whether player-submitted or raised by AI attacks. Every mutation of
// a combatant's health funnels through here.
type Resolver struct {
	mu         sync.Mutex
	cfg        Config
	res        *resource.Loader
	combatants map[string]*sim.Combatant
	archetypes map[string]string // combatant id → archetype id ("" for players)
	lastFire   map[ammoKey]time.Time
	ammo       AmmoSource
	bus        *events.Bus
	reporter   ExploitReporter
	logger     *zap.Logger
}

// NewResolver creates a Resolver. bus may not be nil; reporter may be.
func NewResolver(cfg Config, res *resource.Loader, ammo AmmoSource, bus *events.Bus, reporter ExploitReporter, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ammo == nil {
		ammo = NewMagazineStore(res)
	}
	return &Resolver{
		cfg:        cfg.withDefaults(),
		res:        res,
		combatants: make(map[string]*sim.Combatant),
		archetypes: make(map[string]string),
		lastFire:   make(map[ammoKey]time.Time),
		ammo:       ammo,
		bus:        bus,
		reporter:   reporter,
		logger:     logger,
	}
}

// SetReporter installs (or clears) the exploit reporter.
func (r *Resolver) SetReporter(rep ExploitReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reporter = rep
}

// Register adds a combatant to the table. archetypeID is empty for players.
func (r *Resolver) Register(c *sim.Combatant, archetypeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.combatants[c.ID] = c
	r.archetypes[c.ID] = archetypeID
}

// Unregister removes a combatant and its fire bookkeeping.
func (r *Resolver) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.combatants, id)
	delete(r.archetypes, id)
	for k := range r.lastFire {
		if k.actor == id {
			delete(r.lastFire, k)
		}
	}
}

// Get returns the combatant or nil.
func (r *Resolver) Get(id string) *sim.Combatant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.combatants[id]
}

// Snapshot returns read-only copies of every registered combatant.
func (r *Resolver) Snapshot() []sim.Snapshot {
	r.mu.Lock()
	list := make([]*sim.Combatant, 0, len(r.combatants))
	for _, c := range r.combatants {
		list = append(list, c)
	}
	r.mu.Unlock()

	out := make([]sim.Snapshot, len(list))
	for i, c := range list {
		out[i] = c.Snapshot()
	}
	return out
}

// ApplyWeaponFire validates and resolves one shot: shooter alive, weapon
// known, fire-rate gate 60/rpm, ammo gate, then a single ray hit-test out to
// the weapon's range. A fire event is emitted for every accepted shot, hit
// or miss, so effects stay in sync with the server's view.
func (r *Resolver) ApplyWeaponFire(shooterID, weaponID string, origin, direction sim.Vec3, now time.Time) (FireOutcome, error) {
	weapon := r.res.WeaponByID(weaponID)
	if weapon == nil {
		return FireOutcome{}, ErrUnknownWeapon
	}

	r.mu.Lock()
	shooter := r.combatants[shooterID]
	if shooter == nil {
		r.mu.Unlock()
		return FireOutcome{}, ErrUnknownActor
	}
	if !shooter.Alive() {
		r.mu.Unlock()
		return FireOutcome{Reason: RejectDead}, nil
	}

	fk := ammoKey{actor: shooterID, weapon: weaponID}
	if last, ok := r.lastFire[fk]; ok {
		minInterval := time.Duration(weapon.MinFireInterval() * float64(time.Second))
		if now.Sub(last) < minInterval {
			r.mu.Unlock()
			return FireOutcome{Reason: RejectCooldown, AmmoLeft: r.ammo.Remaining(shooterID, weaponID)}, nil
		}
	}

	if r.ammo.Remaining(shooterID, weaponID) <= 0 {
		r.mu.Unlock()
		return FireOutcome{Reason: RejectNoAmmo}, nil
	}

	// Accepted: the shot happens whether or not it lands.
	r.lastFire[fk] = now
	r.ammo.Consume(shooterID, weaponID)

	candidates := make([]*sim.Combatant, 0, len(r.combatants))
	for id, c := range r.combatants {
		if id == shooterID {
			continue
		}
		candidates = append(candidates, c)
	}
	r.mu.Unlock()

	out := FireOutcome{Accepted: true, AmmoLeft: r.ammo.Remaining(shooterID, weaponID)}

	if h, found := rayHit(origin, direction, weapon.Range, candidates); found {
		out.Hit = true
		out.VictimID = h.target.ID
		out.Headshot = h.perp <= h.target.Radius()*headshotFrac

		raw := weapon.Damage
		if out.Headshot {
			raw *= weapon.HeadshotMult
		}
		out.Damage = r.applyDamage(h.target, raw, shooterID, weaponID, now)
	}

	r.bus.Publish(events.WeaponFired, events.WeaponFiredEvent{
		ShooterID: shooterID,
		WeaponID:  weaponID,
		Origin:    origin,
		Direction: direction,
		Hit:       out.Hit,
		VictimID:  out.VictimID,
	})
	return out, nil
}

// ApplyDamage validates and applies a direct damage request. This is the
// shared path for client hit reports and AI melee attacks; claimed values
// outside (0, MaxClaimedDamage] are rejected and reported, never clamped.
// Headshot/critical scaling is the caller's concern.
func (r *Resolver) ApplyDamage(victimID string, rawDamage float64, attackerID, weaponID string, now time.Time) (DamageOutcome, error) {
	if rawDamage <= 0 || rawDamage > r.cfg.MaxClaimedDamage {
		r.logger.Warn("rejected suspect damage value",
			zap.String("attacker", attackerID),
			zap.String("victim", victimID),
			zap.Float64("claimed", rawDamage))
		if r.reporter != nil {
			r.reporter.ReportExploit(attackerID, "apply_damage", "claimed damage out of range")
		}
		return DamageOutcome{}, ErrSuspectDamage
	}

	r.mu.Lock()
	victim := r.combatants[victimID]
	r.mu.Unlock()
	if victim == nil {
		return DamageOutcome{}, ErrUnknownActor
	}

	return r.applyDamage(victim, rawDamage, attackerID, weaponID, now), nil
}

// applyDamage runs the pipeline against a resolved victim and emits events.
// Server-computed damage (weapon fire) enters here directly, bypassing the
// claimed-value check.
func (r *Resolver) applyDamage(victim *sim.Combatant, raw float64, attackerID, weaponID string, now time.Time) DamageOutcome {
	app := victim.ApplyDamage(raw, now, r.cfg.ImmunityWindow)
	out := DamageOutcome{
		Applied:     app.Applied,
		HealthAfter: app.HealthAfter,
		ArmorAfter:  app.ArmorAfter,
		Died:        app.Died,
		Immune:      app.Immune,
		AlreadyDead: app.Dead,
	}
	if app.Immune || app.Dead {
		return out
	}

	r.bus.Publish(events.CombatResolved, events.CombatResolvedEvent{
		AttackerID:        attackerID,
		VictimID:          victim.ID,
		WeaponID:          weaponID,
		DamageApplied:     app.Applied,
		VictimHealthAfter: app.HealthAfter,
		Died:              app.Died,
	})

	if app.Died {
		r.mu.Lock()
		archetype := r.archetypes[victim.ID]
		r.mu.Unlock()
		r.logger.Info("combatant died",
			zap.String("victim", victim.ID),
			zap.String("killer", attackerID))
		r.bus.Publish(events.EntityDied, events.EntityDiedEvent{
			EntityID:    victim.ID,
			KillerID:    attackerID,
			ArchetypeID: archetype,
		})
	}
	return out
}
