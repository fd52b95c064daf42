package player

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected Sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // callsign → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Register adds a session. If a previous session exists for the same
// callsign, it is closed first (handles duplicate login / reconnect).
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.sessions[s.Callsign]; ok {
		old.Close()
		sm.logger.Info("duplicate session displaced",
			zap.String("callsign", s.Callsign))
	}
	sm.sessions[s.Callsign] = s
	sm.logger.Info("player session registered",
		zap.String("callsign", s.Callsign),
		zap.Int64("account_id", s.AccountID))
}

// Unregister removes the session for a callsign.
func (sm *SessionManager) Unregister(callsign string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, callsign)
	sm.logger.Info("player session unregistered", zap.String("callsign", callsign))
}

// Get returns the session for a callsign, or nil if not found.
func (sm *SessionManager) Get(callsign string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[callsign]
}

// IsOnline reports whether a player is currently connected.
func (sm *SessionManager) IsOnline(callsign string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.sessions[callsign]
	return ok
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastAll sends a raw pre-encoded packet to every connected session.
// Uses non-blocking send to prevent slow connections from blocking the broadcast.
func (sm *SessionManager) BroadcastAll(data []byte) {
	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.SendChan <- data:
		default:
			sm.logger.Warn("broadcast dropped packet for slow client",
				zap.String("callsign", s.Callsign))
		}
	}
}

// BroadcastToAll sends a packet to every connected session (typed version).
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast packet", zap.Error(err))
		return
	}
	sm.BroadcastAll(data)
}

// BroadcastToMatch sends a packet to every session joined to the match.
func (sm *SessionManager) BroadcastToMatch(matchID string, pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal match packet", zap.Error(err))
		return
	}

	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		if s.MatchID == matchID {
			sessions = append(sessions, s)
		}
	}
	sm.mu.RUnlock()

	for _, s := range sessions {
		select {
		case s.SendChan <- data:
		default:
			sm.logger.Warn("match broadcast dropped packet for slow client",
				zap.String("callsign", s.Callsign))
		}
	}
}

// CloseAllSessions gracefully closes all connected sessions.
func (sm *SessionManager) CloseAllSessions() {
	sm.mu.Lock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.Unlock()

	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	// Wait for all sessions to close (with timeout)
	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		sm.mu.RLock()
		count := len(sm.sessions)
		sm.mu.RUnlock()
		if count == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
