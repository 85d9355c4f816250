package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go-videotube/internal/event"
	"go-videotube/internal/model"
)

const auditWriteTimeout = 5 * time.Second

// AuditService persists authentication events published on the bus.
type AuditService struct {
	store  AuditStore
	logger *slog.Logger
}

func NewAuditService(store AuditStore, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{store: store, logger: logger}
}

// Start subscribes to bus and records events until the returned stop func is
// called. stop drains what is already buffered before returning.
func (s *AuditService) Start(bus event.Bus) (stop func()) {
	events, unsubscribe := bus.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for e := range events {
			s.Record(e)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func (s *AuditService) Record(e event.Event) {
	if s == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.Timestamp,
		Actor:      model.Actor{UserID: e.ActorID},
		Status:     "success",
	}

	if payload, ok := e.Payload.(event.SessionPayload); ok {
		if payload.UserID != "" {
			entry.Actor.UserID = payload.UserID
		}
		entry.Actor.IP = payload.IP
		entry.Status = payload.Status
		entry.Detail = payload.Detail
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := s.store.Log(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", entry.Action, "error", err)
	}
}

// Query lists a user's own security events, newest first.
func (s *AuditService) Query(ctx context.Context, userID string, action string, limit int) ([]model.AuditEntry, error) {
	return s.store.Query(ctx, model.AuditQuery{
		UserID: userID,
		Action: strings.TrimSpace(action),
		Limit:  limit,
	})
}
