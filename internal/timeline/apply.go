/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/vanir_energy/internal/events"
	"github.com/friendsincode/vanir_energy/internal/models"
	"github.com/friendsincode/vanir_energy/internal/planning"
	"github.com/friendsincode/vanir_energy/internal/telemetry"
)

// Apply serializes the session's block list into a simulate request, runs the
// returned schedule through constraint validation, and on success replaces
// the authoritative schedule and re-derives blocks. On a constraint violation
// or transport failure nothing changes: the manual edits stay exactly as the
// user left them.
//
// While the simulate round-trip is outstanding the session is in the Applying
// state; a second Apply in that window returns ErrApplyInProgress.
func (svc *Service) Apply(ctx context.Context, sessionID string) error {
	session, err := svc.Session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	switch session.state {
	case StateApplying:
		session.mu.Unlock()
		return ErrApplyInProgress
	case StateReady:
	default:
		session.mu.Unlock()
		return ErrNotReady
	}
	session.state = StateApplying
	actions := serializeBlocks(session.blocks)
	constraints := session.constraints
	session.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "timeline", "timeline.apply")
	defer span.End()

	start := svc.now()
	simulated, err := svc.simulator.Simulate(ctx, actions)
	telemetry.SimulateDuration.Observe(time.Since(start).Seconds())

	session.mu.Lock()
	defer session.mu.Unlock()

	if err != nil {
		session.state = StateReady
		session.lastError = "simulation request failed"
		svc.logger.Warn().Err(err).Str("session_id", session.ID).Msg("simulate round-trip failed")
		telemetry.ApplyTotal.WithLabelValues("transport_failure").Inc()
		svc.bus.Publish(events.EventApplyFailed, events.Payload{
			"session_id": session.ID,
			"error":      err.Error(),
			"actions":    len(actions),
		})
		return fmt.Errorf("%w: %v", ErrSimulateFailed, err)
	}

	result := planning.ValidateSchedule(simulated, constraints)
	if !result.OK {
		session.state = StateReady
		session.lastError = result.Message
		svc.logger.Info().
			Str("session_id", session.ID).
			Int("violations", len(result.Violations)).
			Msg("apply rejected by constraint validation")
		telemetry.ApplyTotal.WithLabelValues("rejected").Inc()
		telemetry.ConstraintViolationsTotal.Add(float64(len(result.Violations)))
		svc.bus.Publish(events.EventTimelineRejected, events.Payload{
			"session_id": session.ID,
			"message":    result.Message,
			"violations": len(result.Violations),
			"actions":    len(actions),
		})
		return &ViolationError{Result: result}
	}

	// The simulated schedule is now authoritative; manual edits are
	// superseded by the re-derived merged view.
	session.schedule = simulated
	session.blocks = planning.MergeBlocks(simulated, constraints, svc.now())
	session.selected = ""
	session.lastError = ""
	session.state = StateReady

	telemetry.ApplyTotal.WithLabelValues("applied").Inc()
	svc.bus.Publish(events.EventTimelineApplied, events.Payload{
		"session_id": session.ID,
		"blocks":     len(session.blocks),
		"actions":    len(actions),
	})
	svc.persistSnapshot(session.ID, simulated)
	svc.logger.Info().
		Str("session_id", session.ID).
		Int("actions", len(actions)).
		Int("blocks", len(session.blocks)).
		Msg("manual plan applied")
	return nil
}

// serializeBlocks maps blocks to simulate action descriptors, ordered by
// start time.
func serializeBlocks(blocks []planning.Block) []models.SimulateAction {
	sorted := make([]planning.Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	actions := make([]models.SimulateAction, 0, len(sorted))
	for _, block := range sorted {
		actions = append(actions, models.SimulateAction{
			ID:     block.ID,
			Group:  string(block.Lane),
			Title:  laneTitle(block.Lane),
			Action: block.Lane.DefaultAction(),
			Start:  block.Start.Format(time.RFC3339),
			End:    block.End.Format(time.RFC3339),
		})
	}
	return actions
}

func laneTitle(lane planning.Lane) string {
	for _, info := range planning.Lanes() {
		if info.Lane == lane {
			return info.Label
		}
	}
	return string(lane)
}
