// Package audit persists security-relevant events asynchronously: logins,
// bans, and rejected requests that look like exploit attempts.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lastlight-game/server/model"
)

// Entry holds one audit event to be logged.
type Entry struct {
	TraceID   string
	AccountID *int64
	ActorID   string
	MatchID   string
	Action    string
	Detail    interface{}
	IP        string
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an audit entry for async DB write.
func (svc *Service) Log(entry Entry) {
	detailJSON, _ := json.Marshal(entry.Detail)
	record := &model.AuditLog{
		TraceID:   entry.TraceID,
		AccountID: entry.AccountID,
		ActorID:   entry.ActorID,
		MatchID:   entry.MatchID,
		Action:    entry.Action,
		Detail:    datatypes.JSON(detailJSON),
		IP:        entry.IP,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit channel full, dropping entry",
			zap.String("action", entry.Action))
	}
}

// ReportExploit records a rejected request that looks like a cheating
// attempt. Satisfies the combat resolver's reporter hook.
func (svc *Service) ReportExploit(actorID, action, detail string) {
	svc.Log(Entry{
		ActorID: actorID,
		Action:  "exploit:" + action,
		Detail:  map[string]string{"reason": detail},
	})
}

// Stop flushes remaining entries and shuts down the worker.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining entries.
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}
