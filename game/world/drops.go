package world

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lastlight-game/server/game/sim"
)

// Drops left on the floor expire after this long.
const dropTTL = 5 * time.Minute

// Drop is one item lying on the playfield.
type Drop struct {
	ID       string
	ItemID   string
	Position sim.Vec3
	ExpireAt time.Time
}

// DropTable holds the floor loot of one match. Claims are atomic so two
// players racing for the same drop cannot both receive it.
type DropTable struct {
	mu    sync.Mutex
	drops map[string]*Drop
}

func NewDropTable() *DropTable {
	return &DropTable{drops: make(map[string]*Drop)}
}

// Add places an item on the floor and returns its drop id.
func (t *DropTable) Add(itemID string, pos sim.Vec3, now time.Time) string {
	id := "drop-" + uuid.NewString()
	t.mu.Lock()
	t.drops[id] = &Drop{
		ID:       id,
		ItemID:   itemID,
		Position: pos,
		ExpireAt: now.Add(dropTTL),
	}
	t.mu.Unlock()
	return id
}

// Claim removes the drop and returns its item id, or "" when the drop does
// not exist (expired or already claimed).
func (t *DropTable) Claim(dropID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.drops[dropID]
	if !ok {
		return ""
	}
	delete(t.drops, dropID)
	return d.ItemID
}

// PruneExpired deletes drops past their expiry.
func (t *DropTable) PruneExpired(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, d := range t.drops {
		if now.After(d.ExpireAt) {
			delete(t.drops, id)
		}
	}
}

// List returns a snapshot of the current drops.
func (t *DropTable) List() []Drop {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Drop, 0, len(t.drops))
	for _, d := range t.drops {
		out = append(out, *d)
	}
	return out
}

// Len returns the number of live drops.
func (t *DropTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.drops)
}
