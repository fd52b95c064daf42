package rest_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lastlight-game/server/api/rest"
	"github.com/lastlight-game/server/game/player"
	"github.com/lastlight-game/server/game/world"
	"github.com/lastlight-game/server/model"
	"github.com/lastlight-game/server/scheduler"
	"github.com/lastlight-game/server/testutil"
)

func newAdminRouter(t *testing.T, adminKey string) (*gin.Engine, *gorm.DB, *player.SessionManager) {
	db := testutil.SetupTestDB(t)
	sm := player.NewSessionManager(zap.NewNop())
	matches := world.NewRegistry(zap.NewNop())
	sched := scheduler.New(zap.NewNop())
	t.Cleanup(sched.Stop)

	h := rest.NewAdminHandler(db, sm, matches, sched, zap.NewNop())
	r := gin.New()
	admin := r.Group("/api/admin", rest.AdminAuth(adminKey))
	admin.GET("/metrics", h.Metrics)
	admin.GET("/matches", h.ListMatches)
	admin.GET("/players", h.ListPlayers)
	admin.POST("/kick/:callsign", h.KickPlayer)
	admin.POST("/accounts/:id/ban", h.BanAccount)
	admin.GET("/scheduler", h.ListSchedulerTasks)
	return r, db, sm
}

func adminReq(r *gin.Engine, method, path, key string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminAuth_NoKey_Disabled(t *testing.T) {
	r, _, _ := newAdminRouter(t, "")
	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAdminAuth_WrongKey(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuth_CorrectKey(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics_Structure(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodGet, "/api/admin/metrics", "secret", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "online_players")
	assert.Contains(t, body, "active_matches")
	assert.Contains(t, body, "live_entities")
}

func TestListPlayers(t *testing.T) {
	r, _, sm := newAdminRouter(t, "secret")
	s := &player.Session{
		AccountID: 7,
		Callsign:  "Reaper",
		MatchID:   "arena-1",
		SendChan:  make(chan []byte, 1),
		Done:      make(chan struct{}),
	}
	sm.Register(s)

	w := adminReq(r, http.MethodGet, "/api/admin/players", "secret", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1.0, body["count"])
	entry := body["players"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Reaper", entry["callsign"])
	assert.Equal(t, "arena-1", entry["match_id"])
}

func TestKickPlayer(t *testing.T) {
	r, _, sm := newAdminRouter(t, "secret")

	w := adminReq(r, http.MethodPost, "/api/admin/kick/ghost", "secret", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s := &player.Session{
		Callsign: "Reaper",
		SendChan: make(chan []byte, 1),
		Done:     make(chan struct{}),
	}
	sm.Register(s)
	w = adminReq(r, http.MethodPost, "/api/admin/kick/Reaper", "secret", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.IsClosed())
}

func TestBanAccount_NotFound(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodPost, "/api/admin/accounts/999/ban", "secret", map[string]bool{"ban": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBanAccount_BanAndUnban(t *testing.T) {
	r, db, sm := newAdminRouter(t, "secret")
	acc := model.Account{Username: "target", PasswordHash: "x", Status: model.AccountNormal}
	require.NoError(t, db.Create(&acc).Error)

	s := &player.Session{
		AccountID: acc.ID,
		Callsign:  "Reaper",
		SendChan:  make(chan []byte, 1),
		Done:      make(chan struct{}),
	}
	sm.Register(s)

	w := adminReq(r, http.MethodPost, "/api/admin/accounts/1/ban", "secret", map[string]bool{"ban": true})
	require.Equal(t, http.StatusOK, w.Code)

	var got model.Account
	require.NoError(t, db.First(&got, acc.ID).Error)
	assert.Equal(t, model.AccountBanned, got.Status)
	assert.True(t, s.IsClosed(), "banned player kicked")

	w = adminReq(r, http.MethodPost, "/api/admin/accounts/1/ban", "secret", map[string]bool{"ban": false})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.First(&got, acc.ID).Error)
	assert.Equal(t, model.AccountNormal, got.Status)
}

func TestBanAccount_InvalidID(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodPost, "/api/admin/accounts/abc/ban", "secret", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSchedulerTasks_Empty(t *testing.T) {
	r, _, _ := newAdminRouter(t, "secret")
	w := adminReq(r, http.MethodGet, "/api/admin/scheduler", "secret", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
