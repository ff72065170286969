/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"fmt"
	"sort"
	"time"

	"github.com/friendsincode/vanir_energy/internal/models"
)

// BlockSource distinguishes merged blocks from manual ones.
type BlockSource string

const (
	SourceMerged BlockSource = "merged"
	SourceManual BlockSource = "manual"
)

// Block is a contiguous editable interval [Start, End) within one lane.
type Block struct {
	ID           string      `json:"id"`
	Lane         Lane        `json:"lane"`
	Start        time.Time   `json:"start"`
	End          time.Time   `json:"end"`
	Source       BlockSource `json:"source"`
	IsHistorical bool        `json:"is_historical,omitempty"`
}

// Duration returns the block length.
func (b Block) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// MergeBlocks folds the classified slots into the minimal ordered block set.
// Overlapping or touching same-lane spans coalesce into a single block. The
// result is freshly allocated on every call; callers may mutate it freely and
// recompute from the slots at any time.
func MergeBlocks(slots []models.ScheduleSlot, constraints *models.PlanningConstraints, now time.Time) []Block {
	filtered := FilterDayWindow(slots, now)

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].StartTime.Before(filtered[j].StartTime)
	})

	var blocks []*Block
	open := make(map[Lane]*Block)

	for _, slot := range filtered {
		end := slot.End()
		for _, lane := range ClassifySlot(slot, constraints) {
			if current, ok := open[lane]; ok && !current.End.Before(slot.StartTime) {
				if end.After(current.End) {
					current.End = end
				}
				continue
			}
			block := &Block{
				ID:           mergedBlockID(lane, slot.StartTime),
				Lane:         lane,
				Start:        slot.StartTime,
				End:          end,
				Source:       SourceMerged,
				IsHistorical: slot.IsHistorical,
			}
			open[lane] = block
			blocks = append(blocks, block)
		}
	}

	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = *b
	}
	return out
}

// mergedBlockID is stable across re-merges of the same schedule: the lane plus
// the creating slot's start time.
func mergedBlockID(lane Lane, start time.Time) string {
	return fmt.Sprintf("%s-%d", lane, start.Unix())
}
