package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lastlight-game/server/game/player"
	"github.com/lastlight-game/server/game/world"
	"github.com/lastlight-game/server/model"
	"github.com/lastlight-game/server/scheduler"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db      *gorm.DB
	sm      *player.SessionManager
	matches *world.Registry
	sched   *scheduler.Scheduler
	logger  *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(
	db *gorm.DB,
	sm *player.SessionManager,
	matches *world.Registry,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{db: db, sm: sm, matches: matches, sched: sched, logger: logger}
}

// Metrics returns server health metrics.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	matches := h.matches.List()
	entities := 0
	for _, m := range matches {
		entities += m.EntityCount()
	}
	c.JSON(http.StatusOK, gin.H{
		"online_players":  h.sm.Count(),
		"active_matches":  len(matches),
		"live_entities":   entities,
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListMatches returns a snapshot of all running matches.
// GET /api/admin/matches
func (h *AdminHandler) ListMatches(c *gin.Context) {
	type matchInfo struct {
		MatchID  string `json:"match_id"`
		Entities int    `json:"entities"`
		Drops    int    `json:"drops"`
	}
	matches := h.matches.List()
	result := make([]matchInfo, 0, len(matches))
	for _, m := range matches {
		result = append(result, matchInfo{
			MatchID:  m.ID(),
			Entities: m.EntityCount(),
			Drops:    m.Drops().Len(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"matches": result, "count": len(result)})
}

// ListPlayers returns a snapshot of all online players.
// GET /api/admin/players
func (h *AdminHandler) ListPlayers(c *gin.Context) {
	sessions := h.sm.All()
	type playerInfo struct {
		Callsign  string `json:"callsign"`
		AccountID int64  `json:"account_id"`
		MatchID   string `json:"match_id"`
	}
	result := make([]playerInfo, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, playerInfo{
			Callsign:  s.Callsign,
			AccountID: s.AccountID,
			MatchID:   s.MatchID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"players": result, "count": len(result)})
}

// KickPlayer forcibly disconnects a player by callsign.
// POST /api/admin/kick/:callsign
func (h *AdminHandler) KickPlayer(c *gin.Context) {
	callsign := c.Param("callsign")
	s := h.sm.Get(callsign)
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not online"})
		return
	}
	s.Close()
	h.logger.Info("admin kicked player", zap.String("callsign", callsign))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// BanAccount bans or unbans a player account.
// POST /api/admin/accounts/:id/ban
func (h *AdminHandler) BanAccount(c *gin.Context) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Ban bool `json:"ban"`
	}
	_ = c.ShouldBindJSON(&req)

	status := model.AccountNormal
	if req.Ban {
		status = model.AccountBanned
	}
	result := h.db.Model(&model.Account{}).Where("id = ?", accountID).Update("status", status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	// Kick the player if currently online.
	if req.Ban {
		for _, s := range h.sm.All() {
			if s.AccountID == accountID {
				s.Close()
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "status": status})
}

// ListSchedulerTasks returns names of all registered ticker tasks.
// GET /api/admin/scheduler
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": h.sched.ListTickers()})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
