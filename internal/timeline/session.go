/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline holds the editing session for the planning timeline: the
// authoritative in-session block list, the command reducer that mutates it,
// and the apply/reset lifecycle against the planner collaborators.
package timeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/vanir_energy/internal/events"
	"github.com/friendsincode/vanir_energy/internal/models"
	"github.com/friendsincode/vanir_energy/internal/planning"
	"github.com/friendsincode/vanir_energy/internal/telemetry"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateApplying State = "applying"
	StateError    State = "error"
)

var (
	// ErrApplyInProgress rejects a re-entrant apply while a simulate
	// round-trip is outstanding.
	ErrApplyInProgress = errors.New("apply already in progress")
	// ErrNotReady rejects mutations outside the Ready state.
	ErrNotReady = errors.New("session is not ready")
	// ErrBlockNotFound reports an unknown block id.
	ErrBlockNotFound = errors.New("block not found")
	// ErrInvalidInterval rejects a resize where start is not before end.
	ErrInvalidInterval = errors.New("block start must be before end")
	// ErrUnknownLane reports a lane outside the closed lane set.
	ErrUnknownLane = errors.New("unknown lane")
	// ErrSessionNotFound reports an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSimulateFailed wraps transport failures of the simulate collaborator.
	ErrSimulateFailed = errors.New("simulate request failed")
)

// ViolationError carries a failed validation back to the caller. The session
// state is untouched when it is returned.
type ViolationError struct {
	Result planning.ValidationResult
}

func (e *ViolationError) Error() string {
	return e.Result.Message
}

// ScheduleFetcher fetches the planner's forecast schedule.
type ScheduleFetcher interface {
	FetchSchedule(ctx context.Context) ([]models.ScheduleSlot, error)
	FetchScheduleWithHistory(ctx context.Context) ([]models.ScheduleSlot, error)
}

// ConfigFetcher fetches device constraints from the configuration source.
type ConfigFetcher interface {
	FetchConstraints(ctx context.Context) (*models.PlanningConstraints, error)
}

// Simulator re-plans a schedule for a proposed set of manual actions.
type Simulator interface {
	Simulate(ctx context.Context, actions []models.SimulateAction) ([]models.ScheduleSlot, error)
}

// Session is one user's editing session. All mutations go through Dispatch or
// Apply; the embedded mutex makes each mutation atomic with respect to the
// others, which is the only concurrency discipline the model needs.
type Session struct {
	ID string

	mu          sync.Mutex
	state       State
	schedule    []models.ScheduleSlot // last known-good authoritative schedule
	history     []models.ScheduleSlot // actuals overlaid, for charting
	constraints *models.PlanningConstraints
	blocks      []planning.Block
	selected    string
	lastError   string
	createdAt   time.Time
}

// Snapshot is a read-only view of the session handed to the rendering layer.
type Snapshot struct {
	ID          string                      `json:"id"`
	State       State                       `json:"state"`
	Blocks      []planning.Block            `json:"blocks"`
	SelectedID  string                      `json:"selected_id,omitempty"`
	Constraints *models.PlanningConstraints `json:"constraints,omitempty"`
	LastError   string                      `json:"last_error,omitempty"`
	History     []models.ScheduleSlot       `json:"history,omitempty"`
}

// Snapshot returns a copy of the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := make([]planning.Block, len(s.blocks))
	copy(blocks, s.blocks)

	return Snapshot{
		ID:          s.ID,
		State:       s.state,
		Blocks:      blocks,
		SelectedID:  s.selected,
		Constraints: s.constraints,
		LastError:   s.lastError,
		History:     s.history,
	}
}

// Service owns all live sessions and mediates between them and the planner
// collaborators. The database handle is optional; without it snapshots and
// audit records are simply not persisted.
type Service struct {
	schedules ScheduleFetcher
	config    ConfigFetcher
	simulator Simulator
	bus       *events.Bus
	db        *gorm.DB
	logger    zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService constructs the timeline service.
func NewService(schedules ScheduleFetcher, config ConfigFetcher, simulator Simulator, bus *events.Bus, db *gorm.DB, logger zerolog.Logger) *Service {
	return &Service{
		schedules: schedules,
		config:    config,
		simulator: simulator,
		bus:       bus,
		db:        db,
		logger:    logger.With().Str("component", "timeline").Logger(),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// SetClock overrides the service clock. Tests only.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
}

// CreateSession loads a new editing session. The three source fetches run
// concurrently and settle independently: a missing config degrades validation
// to fail-open, missing history only loses the chart overlay. A failed
// schedule fetch leaves the session in the error state since there is nothing
// to edit.
func (svc *Service) CreateSession(ctx context.Context) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		state:     StateLoading,
		createdAt: svc.now(),
	}

	var (
		wg          sync.WaitGroup
		schedule    []models.ScheduleSlot
		history     []models.ScheduleSlot
		constraints *models.PlanningConstraints
		scheduleErr error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		if schedule, err = svc.schedules.FetchSchedule(ctx); err != nil {
			scheduleErr = err
			svc.reportFetchFailure(session.ID, "schedule", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if history, err = svc.schedules.FetchScheduleWithHistory(ctx); err != nil {
			svc.reportFetchFailure(session.ID, "schedule_history", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if constraints, err = svc.config.FetchConstraints(ctx); err != nil {
			svc.reportFetchFailure(session.ID, "config", err)
		}
	}()
	wg.Wait()

	session.mu.Lock()
	session.history = history
	session.constraints = constraints
	if scheduleErr != nil {
		session.state = StateError
		session.lastError = "failed to load schedule"
	} else {
		session.schedule = schedule
		session.blocks = planning.MergeBlocks(schedule, constraints, svc.now())
		session.state = StateReady
	}
	session.mu.Unlock()

	svc.mu.Lock()
	svc.sessions[session.ID] = session
	svc.mu.Unlock()

	telemetry.TimelineSessionsActive.Inc()
	svc.bus.Publish(events.EventSessionCreated, events.Payload{"session_id": session.ID})
	svc.logger.Info().
		Str("session_id", session.ID).
		Int("slots", len(schedule)).
		Bool("constraints_loaded", constraints != nil).
		Msg("timeline session created")

	if scheduleErr != nil {
		return session, fmt.Errorf("fetch schedule: %w", scheduleErr)
	}
	svc.persistSnapshot(session.ID, schedule)
	return session, nil
}

// Session returns a live session by id.
func (svc *Service) Session(id string) (*Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	session, ok := svc.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession drops a session from the registry.
func (svc *Service) CloseSession(id string) {
	svc.mu.Lock()
	if _, ok := svc.sessions[id]; ok {
		delete(svc.sessions, id)
		telemetry.TimelineSessionsActive.Dec()
	}
	svc.mu.Unlock()
}

func (svc *Service) reportFetchFailure(sessionID, source string, err error) {
	svc.logger.Warn().Err(err).Str("source", source).Str("session_id", sessionID).Msg("fetch failed, continuing degraded")
	telemetry.FetchFailuresTotal.WithLabelValues(source).Inc()
	svc.bus.Publish(events.EventFetchFailed, events.Payload{
		"session_id": sessionID,
		"source":     source,
		"error":      err.Error(),
	})
}

func (svc *Service) persistSnapshot(sessionID string, schedule []models.ScheduleSlot) {
	if svc.db == nil {
		return
	}
	data, err := json.Marshal(schedule)
	if err != nil {
		svc.logger.Warn().Err(err).Msg("failed to marshal plan snapshot")
		return
	}
	snapshot := models.PlanSnapshot{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Schedule:  data,
		TakenAt:   svc.now(),
	}
	if err := svc.db.Create(&snapshot).Error; err != nil {
		svc.logger.Warn().Err(err).Msg("failed to persist plan snapshot")
	}
}
