package combat

import (
	"sync"

	"github.com/lastlight-game/server/resource"
)

// AmmoSource gates weapon fire on remaining rounds. The inventory system
// that refills magazines lives outside the simulation core; the resolver
// only consumes.
type AmmoSource interface {
	Remaining(actorID, weaponID string) int
	Consume(actorID, weaponID string) bool
}

type ammoKey struct {
	actor  string
	weapon string
}

// MagazineStore is the default in-memory AmmoSource. Each (actor, weapon)
// pair starts with one full magazine and can be topped up via Grant.
type MagazineStore struct {
	mu     sync.Mutex
	res    *resource.Loader
	rounds map[ammoKey]int
}

func NewMagazineStore(res *resource.Loader) *MagazineStore {
	return &MagazineStore{res: res, rounds: make(map[ammoKey]int)}
}

func (m *MagazineStore) Remaining(actorID, weaponID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(actorID, weaponID)
}

func (m *MagazineStore) Consume(actorID, weaponID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ammoKey{actorID, weaponID}
	n := m.loadLocked(actorID, weaponID)
	if n <= 0 {
		return false
	}
	m.rounds[k] = n - 1
	return true
}

// Grant adds rounds for an (actor, weapon) pair.
func (m *MagazineStore) Grant(actorID, weaponID string, rounds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds[ammoKey{actorID, weaponID}] = m.loadLocked(actorID, weaponID) + rounds
}

// Forget drops all state for an actor (despawn/disconnect).
func (m *MagazineStore) Forget(actorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.rounds {
		if k.actor == actorID {
			delete(m.rounds, k)
		}
	}
}

func (m *MagazineStore) loadLocked(actorID, weaponID string) int {
	k := ammoKey{actorID, weaponID}
	if n, ok := m.rounds[k]; ok {
		return n
	}
	// First use: seed with a full magazine.
	n := 0
	if m.res != nil {
		if w := m.res.WeaponByID(weaponID); w != nil {
			n = w.Magazine
		}
	}
	m.rounds[k] = n
	return n
}
