package model

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the persistent game identity of an account: lifetime stats and
// unlocked gear. One profile per account.
type Profile struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID      int64          `gorm:"uniqueIndex;not null" json:"account_id"`
	Callsign       string         `gorm:"uniqueIndex;size:32;not null" json:"callsign"`
	Kills          int64          `gorm:"default:0" json:"kills"`
	Deaths         int64          `gorm:"default:0" json:"deaths"`
	MatchesPlayed  int64          `gorm:"default:0" json:"matches_played"`
	BestSurvivalMs int64          `gorm:"default:0" json:"best_survival_ms"`
	Unlocks        datatypes.JSON `json:"unlocks"` // item ids earned from drops
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
