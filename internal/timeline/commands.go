/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package timeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/vanir_energy/internal/events"
	"github.com/friendsincode/vanir_energy/internal/planning"
)

// CommandType enumerates block mutation commands.
type CommandType string

const (
	CommandMove   CommandType = "move"
	CommandResize CommandType = "resize"
	CommandAdd    CommandType = "add"
	CommandSelect CommandType = "select"
	CommandDelete CommandType = "delete"
	CommandReset  CommandType = "reset"
)

// manualBlockDuration is the length of a freshly added block.
const manualBlockDuration = time.Hour

// Command is one mutation message consumed by the session reducer. The same
// command stream replayed against the same initial state produces the same
// blocks, which is what the tests rely on.
type Command struct {
	Type    CommandType   `json:"type"`
	BlockID string        `json:"block_id,omitempty"`
	Lane    planning.Lane `json:"lane,omitempty"`
	Start   *time.Time    `json:"start,omitempty"`
	End     *time.Time    `json:"end,omitempty"`
}

// Dispatch runs one command through the session reducer. Commands other than
// reset require the Ready state; nothing mutates while an apply is in flight.
func (svc *Service) Dispatch(sessionID string, cmd Command) error {
	session, err := svc.Session(sessionID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.state == StateApplying {
		return ErrApplyInProgress
	}
	if session.state != StateReady && cmd.Type != CommandReset {
		return ErrNotReady
	}

	switch cmd.Type {
	case CommandMove:
		return session.move(cmd.BlockID, cmd.Start, cmd.Lane)
	case CommandResize:
		return session.resize(cmd.BlockID, cmd.Start, cmd.End)
	case CommandAdd:
		return session.addBlock(cmd.Lane, svc.now())
	case CommandSelect:
		return session.selectBlock(cmd.BlockID)
	case CommandDelete:
		session.deleteSelected()
		return nil
	case CommandReset:
		session.reset(svc.now())
		svc.bus.Publish(events.EventTimelineReset, events.Payload{"session_id": session.ID})
		return nil
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// move relocates a block, keeping its duration, and reassigns its lane. No
// collision check happens here: overlaps are only caught, if at all, by the
// constraint validator after a simulate round-trip.
func (s *Session) move(id string, newStart *time.Time, newLane planning.Lane) error {
	if newStart == nil {
		return fmt.Errorf("move: %w", ErrInvalidInterval)
	}
	if !newLane.Valid() {
		return ErrUnknownLane
	}
	block := s.findBlock(id)
	if block == nil {
		return ErrBlockNotFound
	}
	duration := block.Duration()
	block.Start = *newStart
	block.End = newStart.Add(duration)
	block.Lane = newLane
	return nil
}

// resize replaces a block's interval. Degenerate intervals are rejected
// rather than clamped or swapped; the caller gets an explicit error.
func (s *Session) resize(id string, newStart, newEnd *time.Time) error {
	if newStart == nil || newEnd == nil || !newStart.Before(*newEnd) {
		return ErrInvalidInterval
	}
	block := s.findBlock(id)
	if block == nil {
		return ErrBlockNotFound
	}
	block.Start = *newStart
	block.End = *newEnd
	return nil
}

// addBlock appends a one-hour manual block anchored to now, rounded down to
// the half hour.
func (s *Session) addBlock(lane planning.Lane, now time.Time) error {
	if !lane.Valid() {
		return ErrUnknownLane
	}
	start := truncateHalfHour(now)
	s.blocks = append(s.blocks, planning.Block{
		ID:     uuid.NewString(),
		Lane:   lane,
		Start:  start,
		End:    start.Add(manualBlockDuration),
		Source: planning.SourceManual,
	})
	return nil
}

// truncateHalfHour rounds down to the wall-clock half hour. time.Truncate
// works on absolute time and drifts in zones with offsets that are not a
// multiple of 30 minutes.
func truncateHalfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()-t.Minute()%30, 0, 0, t.Location())
}

func (s *Session) selectBlock(id string) error {
	if s.findBlock(id) == nil {
		return ErrBlockNotFound
	}
	s.selected = id
	return nil
}

// deleteSelected removes the selected block, if any, and clears selection.
func (s *Session) deleteSelected() {
	if s.selected == "" {
		return
	}
	for i, block := range s.blocks {
		if block.ID == s.selected {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			break
		}
	}
	s.selected = ""
}

// reset discards all manual edits and re-derives blocks from the last
// known-good schedule.
func (s *Session) reset(now time.Time) {
	s.blocks = planning.MergeBlocks(s.schedule, s.constraints, now)
	s.selected = ""
	s.lastError = ""
	if s.state != StateError || len(s.schedule) > 0 {
		s.state = StateReady
	}
}

// findBlock returns a pointer into the block slice, or nil. Callers hold the
// session mutex.
func (s *Session) findBlock(id string) *planning.Block {
	for i := range s.blocks {
		if s.blocks[i].ID == id {
			return &s.blocks[i]
		}
	}
	return nil
}
