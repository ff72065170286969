/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vanir_energy/internal/events"
	"github.com/friendsincode/vanir_energy/internal/models"
)

// Service handles audit logging by subscribing to events and storing audit entries.
type Service struct {
	db     *gorm.DB
	bus    *events.Bus
	logger zerolog.Logger
}

// NewService creates a new audit service.
func NewService(db *gorm.DB, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		bus:    bus,
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Start subscribes to relevant events and logs them as audit entries.
func (s *Service) Start(ctx context.Context) {
	applied := s.bus.Subscribe(events.EventTimelineApplied)
	rejected := s.bus.Subscribe(events.EventTimelineRejected)
	applyFailed := s.bus.Subscribe(events.EventApplyFailed)
	reset := s.bus.Subscribe(events.EventTimelineReset)
	sessionCreated := s.bus.Subscribe(events.EventSessionCreated)
	fetchFailed := s.bus.Subscribe(events.EventFetchFailed)

	defer func() {
		s.bus.Unsubscribe(events.EventTimelineApplied, applied)
		s.bus.Unsubscribe(events.EventTimelineRejected, rejected)
		s.bus.Unsubscribe(events.EventApplyFailed, applyFailed)
		s.bus.Unsubscribe(events.EventTimelineReset, reset)
		s.bus.Unsubscribe(events.EventSessionCreated, sessionCreated)
		s.bus.Unsubscribe(events.EventFetchFailed, fetchFailed)
	}()

	s.logger.Info().Msg("audit service started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("audit service stopping")
			return

		case payload := <-applied:
			s.logAuditEntry(ctx, "timeline.apply", "applied", payload)

		case payload := <-rejected:
			s.logAuditEntry(ctx, "timeline.apply", "rejected", payload)

		case payload := <-applyFailed:
			s.logAuditEntry(ctx, "timeline.apply", "failed", payload)

		case payload := <-reset:
			s.logAuditEntry(ctx, "timeline.reset", "applied", payload)

		case payload := <-sessionCreated:
			s.logAuditEntry(ctx, "timeline.session_created", "applied", payload)

		case payload := <-fetchFailed:
			s.logAuditEntry(ctx, "planner.fetch", "failed", payload)
		}
	}
}

// logAuditEntry creates an audit log entry from an event payload.
func (s *Service) logAuditEntry(ctx context.Context, action, outcome string, payload events.Payload) {
	entry := &models.TimelineAuditLog{
		ID:      uuid.NewString(),
		Action:  action,
		Outcome: outcome,
		Details: make(map[string]any),
	}

	if sessionID, ok := payload["session_id"].(string); ok {
		entry.SessionID = sessionID
	}
	if message, ok := payload["message"].(string); ok {
		entry.Message = message
	}
	if errMsg, ok := payload["error"].(string); ok && entry.Message == "" {
		entry.Message = errMsg
	}
	if count, ok := payload["block_count"].(int); ok {
		entry.BlockCount = count
	}

	for k, v := range payload {
		switch k {
		case "session_id", "message", "error", "block_count":
			// Already extracted
		default:
			entry.Details[k] = v
		}
	}

	if err := s.Log(ctx, entry); err != nil {
		s.logger.Error().Err(err).
			Str("action", action).
			Msg("failed to log audit entry")
	}
}

// Log records an audit entry directly (for non-event-bus actions).
func (s *Service) Log(ctx context.Context, entry *models.TimelineAuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == nil {
		entry.Details = make(map[string]any)
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return err
	}

	s.logger.Debug().
		Str("action", entry.Action).
		Str("id", entry.ID).
		Msg("audit entry logged")

	return nil
}

// QueryFilters defines filters for querying audit logs.
type QueryFilters struct {
	SessionID *string
	Action    *string
	Outcome   *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Query retrieves audit logs with filters.
func (s *Service) Query(ctx context.Context, filters QueryFilters) ([]models.TimelineAuditLog, int64, error) {
	var logs []models.TimelineAuditLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.TimelineAuditLog{})

	if filters.SessionID != nil {
		query = query.Where("session_id = ?", *filters.SessionID)
	}
	if filters.Action != nil {
		query = query.Where("action = ?", *filters.Action)
	}
	if filters.Outcome != nil {
		query = query.Where("outcome = ?", *filters.Outcome)
	}
	if filters.StartTime != nil {
		query = query.Where("created_at >= ?", *filters.StartTime)
	}
	if filters.EndTime != nil {
		query = query.Where("created_at <= ?", *filters.EndTime)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	} else {
		query = query.Limit(100)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
