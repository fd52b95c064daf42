package model

import (
	"time"

	"gorm.io/datatypes"
)

// MatchResult is one player's outcome in one finished match.
type MatchResult struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MatchID    string         `gorm:"index:idx_result_match;size:36;not null" json:"match_id"`
	ProfileID  int64          `gorm:"index:idx_result_profile;not null" json:"profile_id"`
	Kills      int            `gorm:"default:0" json:"kills"`
	SurvivedMs int64          `gorm:"default:0" json:"survived_ms"`
	Extracted  bool           `gorm:"default:false" json:"extracted"`
	Loot       datatypes.JSON `json:"loot"` // item ids carried out
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
