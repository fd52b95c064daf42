// Package player holds the WebSocket session layer: one Session per
// connected client and the registry that tracks them.
package player

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendChanBuf   = 256
	writeDeadline = 10 * time.Second
	readDeadlineS = 60 * time.Second
	pingInterval  = 30 * time.Second // server-side WS ping
)

// Packet is the unified WS message envelope.
type Packet struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Session represents a connected player's WebSocket session. The callsign is
// assigned when the player joins a match and doubles as the in-match actor id.
type Session struct {
	AccountID   int64
	Callsign    string
	MatchID     string
	JoinedAt    time.Time
	KillsAtJoin int64 // lifetime kills when the run started

	Conn *websocket.Conn

	SendChan chan []byte
	Done     chan struct{}
	TraceID  string
	LastSeq  uint64

	mu        sync.Mutex
	loot      []string
	extracted bool
	logger    *zap.Logger
}

// NewSession creates a new Session with its write goroutine started.
func NewSession(accountID int64, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		AccountID: accountID,
		Conn:      conn,
		SendChan:  make(chan []byte, sendChanBuf),
		Done:      make(chan struct{}),
		logger:    logger,
	}
	go s.writePump()
	return s
}

// writePump drains SendChan and writes to the WebSocket connection.
// Also sends periodic WebSocket pings to detect dead connections quickly.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.Conn.Close()
	for {
		select {
		case data, ok := <-s.SendChan:
			if !ok {
				return
			}
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Warn("ws write error",
					zap.Int64("account_id", s.AccountID),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done:
			_ = s.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes pkt and sends it non-blocking. Drops if channel full or closed.
func (s *Session) Send(pkt *Packet) {
	if s.IsClosed() {
		return
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
		// Session closed while sending
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping packet",
				zap.Int64("account_id", s.AccountID),
				zap.String("type", pkt.Type))
		}
	}
}

// SendRaw sends raw bytes non-blocking. Drops if channel full or closed.
func (s *Session) SendRaw(data []byte) {
	if s.IsClosed() {
		return
	}
	select {
	case s.SendChan <- data:
	case <-s.Done:
	default:
		if !s.IsClosed() {
			s.logger.Warn("send channel full, dropping raw packet",
				zap.Int64("account_id", s.AccountID))
		}
	}
}

// Close signals the writePump to shut down.
func (s *Session) Close() {
	select {
	case <-s.Done:
	default:
		close(s.Done)
	}
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	select {
	case <-s.Done:
		return true
	default:
		return false
	}
}

// AddLoot records an item picked up from a floor drop. Loot stays on the
// session until extraction; dying in the match forfeits it.
func (s *Session) AddLoot(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loot = append(s.loot, itemID)
}

// Loot returns a copy of the loot carried this run.
func (s *Session) Loot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.loot))
	copy(out, s.loot)
	return out
}

// MarkExtracted flags that this run already ended with a successful
// extraction, so the disconnect path must not record a second result.
func (s *Session) MarkExtracted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extracted = true
}

// Extracted reports whether the run ended with an extraction.
func (s *Session) Extracted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extracted
}

// SendHeartbeatPong sends a pong packet in response to a client ping.
func (s *Session) SendHeartbeatPong(clientTS int64) {
	type pongPayload struct {
		ClientTS int64 `json:"client_ts"`
		ServerTS int64 `json:"server_ts"`
	}
	payload, _ := json.Marshal(pongPayload{
		ClientTS: clientTS,
		ServerTS: time.Now().UnixMilli(),
	})
	s.Send(&Packet{Type: "pong", Payload: payload})
}

// SetReadDeadline resets the WebSocket read deadline to 60 s from now.
func (s *Session) SetReadDeadline() {
	_ = s.Conn.SetReadDeadline(time.Now().Add(readDeadlineS))
}
