package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/lastlight-game/server/model"
	"github.com/lastlight-game/server/testutil"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	acc := &model.Account{Username: "test_user", PasswordHash: "hash", Status: model.AccountNormal}
	require.NoError(t, db.Create(acc).Error)
	assert.Greater(t, acc.ID, int64(0))

	var found model.Account
	require.NoError(t, db.First(&found, acc.ID).Error)
	assert.Equal(t, "test_user", found.Username)

	prof := &model.Profile{
		AccountID: acc.ID,
		Callsign:  "Reaper",
		Unlocks:   datatypes.JSON(`["scrap"]`),
	}
	require.NoError(t, db.Create(prof).Error)
	assert.Greater(t, prof.ID, int64(0))

	res := &model.MatchResult{
		MatchID:    "match-001",
		ProfileID:  prof.ID,
		Kills:      7,
		SurvivedMs: 483000,
		Extracted:  true,
		Loot:       datatypes.JSON(`["scrap","medkit"]`),
	}
	require.NoError(t, db.Create(res).Error)

	al := &model.AuditLog{
		TraceID: "trace-001", Action: "login",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)

	// Unique constraints hold.
	dup := &model.Profile{AccountID: acc.ID, Callsign: "Other"}
	assert.Error(t, db.Create(dup).Error, "one profile per account")
}
