// Package profile owns persistent player identity: lifetime stats, match
// results, the kill ranking, and the recent-kill feed.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lastlight-game/server/cache"
	"github.com/lastlight-game/server/model"
)

const (
	rankingKey  = "ranking:kills"
	killFeedKey = "feed:kills"
	feedMax     = 100
)

// ErrNotFound is returned when no profile matches the query.
var ErrNotFound = errors.New("profile: not found")

// FeedEntry is one row of the recent-kill feed.
type FeedEntry struct {
	Callsign    string    `json:"callsign"`
	ArchetypeID string    `json:"archetype_id"`
	At          time.Time `json:"at"`
}

// RankingRow is one row of the kill leaderboard.
type RankingRow struct {
	Callsign string  `json:"callsign"`
	Kills    float64 `json:"kills"`
}

// Service reads and writes profiles. The database is the source of truth;
// the cache carries the live ranking and feed.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

func New(db *gorm.DB, c cache.Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, cache: c, logger: logger}
}

// Ensure returns the account's profile, creating it with the callsign when
// none exists yet.
func (s *Service) Ensure(ctx context.Context, accountID int64, callsign string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = model.Profile{AccountID: accountID, Callsign: callsign, Unlocks: datatypes.JSON("[]")}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ByAccount looks a profile up by its owning account.
func (s *Service) ByAccount(ctx context.Context, accountID int64) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByCallsign looks a profile up by its callsign.
func (s *Service) ByCallsign(ctx context.Context, callsign string) (*model.Profile, error) {
	var p model.Profile
	err := s.db.WithContext(ctx).Where("callsign = ?", callsign).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddKillCredit records one confirmed kill for the player: durable counter,
// live ranking, and the recent-kill feed. Match code calls this from death
// handling; the player id is the profile callsign.
func (s *Service) AddKillCredit(callsign, archetypeID string) {
	ctx := context.Background()

	res := s.db.WithContext(ctx).Model(&model.Profile{}).
		Where("callsign = ?", callsign).
		UpdateColumn("kills", gorm.Expr("kills + 1"))
	if res.Error != nil {
		s.logger.Error("kill credit write failed",
			zap.String("callsign", callsign), zap.Error(res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.logger.Warn("kill credit for unknown callsign", zap.String("callsign", callsign))
		return
	}

	if s.cache == nil {
		return
	}
	if _, err := s.cache.ZIncrBy(ctx, rankingKey, 1, callsign); err != nil {
		s.logger.Warn("ranking update failed", zap.Error(err))
	}
	entry, _ := json.Marshal(FeedEntry{Callsign: callsign, ArchetypeID: archetypeID, At: time.Now()})
	if err := s.cache.LPush(ctx, killFeedKey, string(entry)); err == nil {
		_ = s.cache.LTrim(ctx, killFeedKey, 0, feedMax-1)
	}
}

// RecordDeath bumps the player's death counter.
func (s *Service) RecordDeath(ctx context.Context, callsign string) error {
	return s.db.WithContext(ctx).Model(&model.Profile{}).
		Where("callsign = ?", callsign).
		UpdateColumn("deaths", gorm.Expr("deaths + 1")).Error
}

// MatchOutcome is one player's result handed in when a match ends.
type MatchOutcome struct {
	MatchID   string
	Kills     int
	Survived  time.Duration
	Extracted bool
	Loot      []string
}

// RecordMatchResult persists the outcome and folds it into lifetime stats.
// Loot is added to the profile's unlocks only on extraction.
func (s *Service) RecordMatchResult(ctx context.Context, callsign string, out MatchOutcome) error {
	p, err := s.ByCallsign(ctx, callsign)
	if err != nil {
		return err
	}

	lootJSON, _ := json.Marshal(out.Loot)
	result := &model.MatchResult{
		MatchID:    out.MatchID,
		ProfileID:  p.ID,
		Kills:      out.Kills,
		SurvivedMs: out.Survived.Milliseconds(),
		Extracted:  out.Extracted,
		Loot:       datatypes.JSON(lootJSON),
	}
	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"matches_played": gorm.Expr("matches_played + 1"),
	}
	if ms := out.Survived.Milliseconds(); ms > p.BestSurvivalMs {
		updates["best_survival_ms"] = ms
	}
	if out.Extracted && len(out.Loot) > 0 {
		var unlocks []string
		_ = json.Unmarshal(p.Unlocks, &unlocks)
		unlocks = append(unlocks, out.Loot...)
		merged, _ := json.Marshal(unlocks)
		updates["unlocks"] = datatypes.JSON(merged)
	}
	return s.db.WithContext(ctx).Model(&model.Profile{}).
		Where("id = ?", p.ID).Updates(updates).Error
}

// Ranking returns the top n of the kill leaderboard from the cache, falling
// back to the database when the cache is cold.
func (s *Service) Ranking(ctx context.Context, n int64) ([]RankingRow, error) {
	if s.cache != nil {
		members, err := s.cache.ZRevRange(ctx, rankingKey, 0, n-1)
		if err == nil && len(members) > 0 {
			rows := make([]RankingRow, 0, len(members))
			for _, m := range members {
				score, _ := s.cache.ZScore(ctx, rankingKey, m)
				rows = append(rows, RankingRow{Callsign: m, Kills: score})
			}
			return rows, nil
		}
	}

	var profiles []model.Profile
	err := s.db.WithContext(ctx).
		Order("kills DESC, callsign ASC").Limit(int(n)).Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	rows := make([]RankingRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, RankingRow{Callsign: p.Callsign, Kills: float64(p.Kills)})
	}
	return rows, nil
}

// Feed returns the most recent kill-feed entries, newest first.
func (s *Service) Feed(ctx context.Context, n int64) ([]FeedEntry, error) {
	if s.cache == nil {
		return nil, nil
	}
	raw, err := s.cache.LRange(ctx, killFeedKey, 0, n-1)
	if err != nil {
		return nil, err
	}
	out := make([]FeedEntry, 0, len(raw))
	for _, r := range raw {
		var e FeedEntry
		if json.Unmarshal([]byte(r), &e) == nil {
			out = append(out, e)
		}
	}
	return out, nil
}
