package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/profile"
)

const rankingTop = 100

// RankingHandler handles leaderboard and kill-feed REST endpoints.
type RankingHandler struct {
	profiles *profile.Service
	logger   *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(profiles *profile.Service, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{profiles: profiles, logger: logger}
}

// TopKills returns the top players sorted by lifetime kills.
// GET /api/ranking/kills?limit=20
func (h *RankingHandler) TopKills(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	rows, err := h.profiles.Ranking(c.Request.Context(), int64(limit))
	if err != nil {
		h.logger.Error("ranking query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	type rankEntry struct {
		Rank     int    `json:"rank"`
		Callsign string `json:"callsign"`
		Kills    int64  `json:"kills"`
	}
	entries := make([]rankEntry, len(rows))
	for i, r := range rows {
		entries[i] = rankEntry{Rank: i + 1, Callsign: r.Callsign, Kills: int64(r.Kills)}
	}
	c.JSON(http.StatusOK, gin.H{"ranking": entries})
}

// KillFeed returns the most recent kills, newest first.
// GET /api/ranking/feed?limit=20
func (h *RankingHandler) KillFeed(c *gin.Context) {
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	feed, err := h.profiles.Feed(c.Request.Context(), int64(limit))
	if err != nil {
		h.logger.Error("kill feed query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if feed == nil {
		feed = []profile.FeedEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"feed": feed})
}

// Profile returns the public profile for a callsign.
// GET /api/profiles/:callsign
func (h *RankingHandler) Profile(c *gin.Context) {
	p, err := h.profiles.ByCallsign(c.Request.Context(), c.Param("callsign"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"callsign":         p.Callsign,
		"kills":            p.Kills,
		"deaths":           p.Deaths,
		"matches_played":   p.MatchesPlayed,
		"best_survival_ms": p.BestSurvivalMs,
	})
}
