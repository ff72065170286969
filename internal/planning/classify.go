/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"time"

	"github.com/friendsincode/vanir_energy/internal/models"
)

// pinnedSoCTolerance is how close (in percentage points) a slot's SoC reading
// must be to a configured bound to count as pinned zero-capacity.
const pinnedSoCTolerance = 0.01

// ClassifySlot maps one slot to the set of lanes it belongs to. Constraints
// may be nil; pinned-gap detection then never fires.
//
// Only charging creates a battery membership. Discharge is rendered through
// the export lane or not at all; showing it as an active battery block was
// rejected in the dashboard's visual model.
func ClassifySlot(slot models.ScheduleSlot, constraints *models.PlanningConstraints) []Lane {
	var lanes []Lane

	if slot.ChargePowerKW() > 0 {
		lanes = append(lanes, LaneBattery)
	}
	if slot.WaterPowerKW() > 0 {
		lanes = append(lanes, LaneWater)
	}
	if slot.ExportEnergyKWh() > 0 {
		lanes = append(lanes, LaneExport)
	}

	if len(lanes) > 0 {
		return lanes
	}

	if isPinnedZeroCapacity(slot, constraints) {
		// Device physically cannot act here: render a gap, not a hold block.
		return nil
	}

	return []Lane{LaneHold}
}

// isPinnedZeroCapacity reports whether the slot has no feasible action because
// the battery sits at a configured SoC bound.
func isPinnedZeroCapacity(slot models.ScheduleSlot, constraints *models.PlanningConstraints) bool {
	if constraints == nil || slot.HasAction() {
		return false
	}
	soc, ok := slot.SoCPercent()
	if !ok {
		return false
	}
	return within(soc, constraints.MinSoCPercent, pinnedSoCTolerance) ||
		within(soc, constraints.MaxSoCPercent, pinnedSoCTolerance)
}

func within(value, bound, tolerance float64) bool {
	diff := value - bound
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// FilterDayWindow keeps only slots starting today or tomorrow relative to now,
// in the local calendar of now. Everything else is discarded before
// classification.
func FilterDayWindow(slots []models.ScheduleSlot, now time.Time) []models.ScheduleSlot {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	windowEnd := dayStart.AddDate(0, 0, 2)

	filtered := make([]models.ScheduleSlot, 0, len(slots))
	for _, slot := range slots {
		start := slot.StartTime.In(now.Location())
		if start.Before(dayStart) || !start.Before(windowEnd) {
			continue
		}
		filtered = append(filtered, slot)
	}
	return filtered
}
