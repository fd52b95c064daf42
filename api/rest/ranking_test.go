package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lastlight-game/server/api/rest"
	"github.com/lastlight-game/server/game/profile"
	"github.com/lastlight-game/server/testutil"
)

func newRankingRouter(t *testing.T) (*gin.Engine, *profile.Service) {
	db := testutil.SetupTestDB(t)
	c, _ := testutil.SetupTestCache(t)
	profiles := profile.New(db, c, nil)
	h := rest.NewRankingHandler(profiles, zap.NewNop())
	r := gin.New()
	r.GET("/api/ranking/kills", h.TopKills)
	r.GET("/api/ranking/feed", h.KillFeed)
	r.GET("/api/profiles/:callsign", h.Profile)
	return r, profiles
}

func getJSON(t *testing.T, r *gin.Engine, path string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func seedKills(t *testing.T, profiles *profile.Service, callsign string, accountID int64, kills int) {
	t.Helper()
	_, err := profiles.Ensure(context.Background(), accountID, callsign)
	require.NoError(t, err)
	for i := 0; i < kills; i++ {
		profiles.AddKillCredit(callsign, "husk")
	}
}

func TestTopKills_Order(t *testing.T) {
	r, profiles := newRankingRouter(t)
	seedKills(t, profiles, "alpha", 1, 1)
	seedKills(t, profiles, "bravo", 2, 3)

	code, body := getJSON(t, r, "/api/ranking/kills")
	require.Equal(t, http.StatusOK, code)

	ranking := body["ranking"].([]interface{})
	require.Len(t, ranking, 2)
	first := ranking[0].(map[string]interface{})
	assert.Equal(t, "bravo", first["callsign"])
	assert.Equal(t, 3.0, first["kills"])
	assert.Equal(t, 1.0, first["rank"])
}

func TestTopKills_LimitParam(t *testing.T) {
	r, profiles := newRankingRouter(t)
	seedKills(t, profiles, "alpha", 1, 2)
	seedKills(t, profiles, "bravo", 2, 1)

	code, body := getJSON(t, r, "/api/ranking/kills?limit=1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["ranking"].([]interface{}), 1)
}

func TestKillFeed(t *testing.T) {
	r, profiles := newRankingRouter(t)
	seedKills(t, profiles, "alpha", 1, 2)

	code, body := getJSON(t, r, "/api/ranking/feed")
	require.Equal(t, http.StatusOK, code)
	feed := body["feed"].([]interface{})
	require.Len(t, feed, 2)
	entry := feed[0].(map[string]interface{})
	assert.Equal(t, "alpha", entry["callsign"])
	assert.Equal(t, "husk", entry["archetype_id"])
}

func TestKillFeed_Empty(t *testing.T) {
	r, _ := newRankingRouter(t)
	code, body := getJSON(t, r, "/api/ranking/feed")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["feed"])
}

func TestProfileEndpoint(t *testing.T) {
	r, profiles := newRankingRouter(t)
	seedKills(t, profiles, "Reaper", 1, 2)

	code, body := getJSON(t, r, "/api/profiles/Reaper")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Reaper", body["callsign"])
	assert.Equal(t, 2.0, body["kills"])

	code, _ = getJSON(t, r, "/api/profiles/ghost")
	assert.Equal(t, http.StatusNotFound, code)
}
