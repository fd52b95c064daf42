package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records security-relevant actions: logins, bans, and rejected
// requests that look like exploit attempts.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36" json:"trace_id"`
	AccountID *int64         `gorm:"index:idx_audit_account" json:"account_id"`
	ActorID   string         `gorm:"size:64" json:"actor_id"` // in-match player id
	MatchID   string         `gorm:"size:36" json:"match_id"`
	Action    string         `gorm:"size:64;not null" json:"action"`
	Detail    datatypes.JSON `json:"detail"`
	IP        string         `gorm:"size:45" json:"ip"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
