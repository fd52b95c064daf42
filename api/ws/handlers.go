package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/lastlight-game/server/game/player"
	"github.com/lastlight-game/server/game/profile"
	"github.com/lastlight-game/server/game/sim"
	"github.com/lastlight-game/server/game/world"
)

// MatchHandlers bundles the dependencies needed by in-match WS message handlers.
type MatchHandlers struct {
	matches  *world.Registry
	sm       *player.SessionManager
	profiles *profile.Service
	logger   *zap.Logger
}

// NewMatchHandlers creates a new MatchHandlers.
func NewMatchHandlers(matches *world.Registry, sm *player.SessionManager, profiles *profile.Service, logger *zap.Logger) *MatchHandlers {
	return &MatchHandlers{matches: matches, sm: sm, profiles: profiles, logger: logger}
}

// RegisterHandlers registers all in-match handlers on the given Router.
func (mh *MatchHandlers) RegisterHandlers(r *Router) {
	r.On("ping", mh.HandlePing)
	r.On("join_match", mh.HandleJoinMatch)
	r.On("weapon_fire", mh.HandleWeaponFire)
	r.On("hit_report", mh.HandleHitReport)
	r.On("move", mh.HandleMove)
	r.On("claim_drop", mh.HandleClaimDrop)
	r.On("extract", mh.HandleExtract)
}

// sendError sends a uniform error packet to the client.
func sendError(s *player.Session, msg string) {
	payload, _ := json.Marshal(map[string]string{"message": msg})
	s.Send(&player.Packet{Type: "error", Payload: payload})
}

func sendJSON(s *player.Session, msgType string, v interface{}) {
	payload, _ := json.Marshal(v)
	s.Send(&player.Packet{Type: msgType, Payload: payload})
}

// matchOf resolves the session's current match, or nil with an error packet
// already sent.
func (mh *MatchHandlers) matchOf(s *player.Session) *world.Match {
	if s.MatchID == "" {
		sendError(s, "not in a match")
		return nil
	}
	m := mh.matches.Get(s.MatchID)
	if m == nil {
		sendError(s, "match is gone")
		return nil
	}
	return m
}

type vec3Payload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v vec3Payload) vec() sim.Vec3 { return sim.Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// ------------------------------------------------------------------ ping

type pingPayload struct {
	TS int64 `json:"ts"`
}

// HandlePing responds to client heartbeat pings.
func (mh *MatchHandlers) HandlePing(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var p pingPayload
	_ = json.Unmarshal(raw, &p)
	s.SendHeartbeatPong(p.TS)
	return nil
}

// ------------------------------------------------------------------ join_match

type joinMatchReq struct {
	MatchID string `json:"match_id"`
}

// HandleJoinMatch puts the authenticated player into a running match. The
// profile callsign becomes the in-match actor id.
func (mh *MatchHandlers) HandleJoinMatch(ctx context.Context, s *player.Session, raw json.RawMessage) error {
	var req joinMatchReq
	if err := validatePayload("join_match", raw, &req); err != nil {
		sendError(s, "invalid join_match payload")
		return nil
	}
	if s.MatchID != "" {
		sendError(s, "already in a match")
		return nil
	}

	p, err := mh.profiles.ByAccount(ctx, s.AccountID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			sendError(s, "no profile for account")
			return nil
		}
		return err
	}

	m := mh.matches.Get(req.MatchID)
	if m == nil {
		sendError(s, "unknown match")
		return nil
	}

	b := m.Bounds()
	spawn := sim.Vec3{X: b.X / 2, Y: b.Y / 2}
	combatant, err := m.AddPlayer(p.Callsign, spawn)
	if err != nil {
		sendError(s, "join failed: "+err.Error())
		return nil
	}

	s.Callsign = p.Callsign
	s.MatchID = m.ID()
	s.JoinedAt = time.Now()
	s.KillsAtJoin = p.Kills
	mh.sm.Register(s)

	mh.logger.Info("player joined match",
		zap.String("callsign", p.Callsign),
		zap.String("match_id", m.ID()))

	sendJSON(s, "match_joined", map[string]interface{}{
		"match_id":  m.ID(),
		"player_id": p.Callsign,
		"position":  vec3Payload{X: combatant.Position().X, Y: combatant.Position().Y, Z: combatant.Position().Z},
	})
	return nil
}

// ------------------------------------------------------------------ weapon_fire

type weaponFireReq struct {
	WeaponID  string      `json:"weapon_id"`
	Origin    vec3Payload `json:"origin"`
	Direction vec3Payload `json:"direction"`
}

// HandleWeaponFire processes a shot. The server decides cadence, ammo, and
// what the ray actually hit.
func (mh *MatchHandlers) HandleWeaponFire(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var req weaponFireReq
	if err := validatePayload("weapon_fire", raw, &req); err != nil {
		sendError(s, "invalid weapon_fire payload")
		return nil
	}
	m := mh.matchOf(s)
	if m == nil {
		return nil
	}

	outcome, err := m.HandleWeaponFire(s.Callsign, req.WeaponID, req.Origin.vec(), req.Direction.vec())
	if err != nil {
		if errors.Is(err, world.ErrRateLimited) {
			sendError(s, "rate limited")
			return nil
		}
		sendError(s, err.Error())
		return nil
	}

	sendJSON(s, "fire_result", map[string]interface{}{
		"accepted":  outcome.Accepted,
		"reason":    outcome.Reason,
		"hit":       outcome.Hit,
		"headshot":  outcome.Headshot,
		"victim_id": outcome.VictimID,
		"damage":    outcome.Damage.Applied,
		"ammo_left": outcome.AmmoLeft,
	})
	return nil
}

// ------------------------------------------------------------------ hit_report

type hitReportReq struct {
	TargetID string  `json:"target_id"`
	WeaponID string  `json:"weapon_id"`
	Damage   float64 `json:"damage"`
}

// HandleHitReport validates a client-computed damage claim. Out-of-range
// claims are rejected outright; the resolver flags them for audit.
func (mh *MatchHandlers) HandleHitReport(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var req hitReportReq
	if err := validatePayload("hit_report", raw, &req); err != nil {
		sendError(s, "invalid hit_report payload")
		return nil
	}
	m := mh.matchOf(s)
	if m == nil {
		return nil
	}

	outcome, err := m.HandleHitReport(s.Callsign, req.TargetID, req.WeaponID, req.Damage)
	if err != nil {
		if errors.Is(err, world.ErrRateLimited) {
			sendError(s, "rate limited")
			return nil
		}
		sendError(s, "hit rejected: "+err.Error())
		return nil
	}

	sendJSON(s, "hit_result", map[string]interface{}{
		"target_id":    req.TargetID,
		"applied":      outcome.Applied,
		"health_after": outcome.HealthAfter,
		"armor_after":  outcome.ArmorAfter,
		"died":         outcome.Died,
		"immune":       outcome.Immune,
	})
	return nil
}

// ------------------------------------------------------------------ move

type moveReq struct {
	To vec3Payload `json:"to"`
}

// HandleMove applies a movement request. Implausible steps are rejected and
// the client keeps its last authoritative position.
func (mh *MatchHandlers) HandleMove(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var req moveReq
	if err := validatePayload("move", raw, &req); err != nil {
		sendError(s, "invalid move payload")
		return nil
	}
	m := mh.matchOf(s)
	if m == nil {
		return nil
	}

	if err := m.HandleMove(s.Callsign, req.To.vec()); err != nil {
		if errors.Is(err, world.ErrRateLimited) {
			sendError(s, "rate limited")
			return nil
		}
		sendError(s, "move rejected")
		return nil
	}
	return nil
}

// ------------------------------------------------------------------ claim_drop

type claimDropReq struct {
	DropID string `json:"drop_id"`
}

// HandleClaimDrop transfers a floor drop to the player. First claim wins.
func (mh *MatchHandlers) HandleClaimDrop(_ context.Context, s *player.Session, raw json.RawMessage) error {
	var req claimDropReq
	if err := validatePayload("claim_drop", raw, &req); err != nil {
		sendError(s, "invalid claim_drop payload")
		return nil
	}
	m := mh.matchOf(s)
	if m == nil {
		return nil
	}

	itemID := m.ClaimDrop(s.Callsign, req.DropID)
	if itemID == "" {
		sendError(s, "drop already claimed or expired")
		return nil
	}
	s.AddLoot(itemID)
	sendJSON(s, "drop_claimed", map[string]string{
		"drop_id": req.DropID,
		"item_id": itemID,
	})
	return nil
}

// ------------------------------------------------------------------ extract

// HandleExtract ends the run successfully: the result is persisted, carried
// loot becomes permanent unlocks, and the player leaves the simulation.
func (mh *MatchHandlers) HandleExtract(ctx context.Context, s *player.Session, _ json.RawMessage) error {
	m := mh.matchOf(s)
	if m == nil {
		return nil
	}

	p := m.Player(s.Callsign)
	if p == nil || !p.Alive() {
		sendError(s, "cannot extract while dead")
		return nil
	}

	survived := time.Since(s.JoinedAt)
	kills := mh.runKills(ctx, s)
	out := profile.MatchOutcome{
		MatchID:   m.ID(),
		Kills:     kills,
		Survived:  survived,
		Extracted: true,
		Loot:      s.Loot(),
	}
	if err := mh.profiles.RecordMatchResult(ctx, s.Callsign, out); err != nil {
		mh.logger.Error("extraction result write failed",
			zap.String("callsign", s.Callsign), zap.Error(err))
	}

	s.MarkExtracted()
	m.RemovePlayer(s.Callsign)
	matchID := s.MatchID
	s.MatchID = ""

	mh.logger.Info("player extracted",
		zap.String("callsign", s.Callsign),
		zap.String("match_id", matchID),
		zap.Duration("survived", survived))

	sendJSON(s, "extracted", map[string]interface{}{
		"survived_ms": survived.Milliseconds(),
		"kills":       kills,
		"loot":        s.Loot(),
	})
	return nil
}

// runKills derives the kills of this run from the lifetime counter delta.
func (mh *MatchHandlers) runKills(ctx context.Context, s *player.Session) int {
	p, err := mh.profiles.ByCallsign(ctx, s.Callsign)
	if err != nil {
		return 0
	}
	if d := p.Kills - s.KillsAtJoin; d > 0 {
		return int(d)
	}
	return 0
}

// HandleLeave is the disconnect path shared with the gateway: a player who
// drops without extracting forfeits loot, and a dead player gets the death
// recorded.
func (mh *MatchHandlers) HandleLeave(ctx context.Context, s *player.Session) {
	if s.MatchID == "" || s.Extracted() {
		return
	}
	m := mh.matches.Get(s.MatchID)
	if m == nil {
		return
	}

	p := m.Player(s.Callsign)
	died := p == nil || !p.Alive()
	if died {
		if err := mh.profiles.RecordDeath(ctx, s.Callsign); err != nil {
			mh.logger.Error("death record failed",
				zap.String("callsign", s.Callsign), zap.Error(err))
		}
	}

	out := profile.MatchOutcome{
		MatchID:  m.ID(),
		Kills:    mh.runKills(ctx, s),
		Survived: time.Since(s.JoinedAt),
	}
	if err := mh.profiles.RecordMatchResult(ctx, s.Callsign, out); err != nil {
		mh.logger.Error("match result write failed",
			zap.String("callsign", s.Callsign), zap.Error(err))
	}

	m.RemovePlayer(s.Callsign)
	s.MatchID = ""
}
