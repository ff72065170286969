/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planning

import (
	"fmt"
	"time"

	"github.com/friendsincode/vanir_energy/internal/models"
)

// Validation tolerances. The SoC tolerance absorbs float/display rounding in
// planner output; the power tolerance absorbs float arithmetic only.
const (
	socTolerance   = 0.01
	powerTolerance = 1e-6
)

// Violation rule identifiers.
const (
	RuleSoCBelowMin          = "soc_below_min"
	RuleSoCAboveMax          = "soc_above_max"
	RuleChargeCapExceeded    = "charge_cap_exceeded"
	RuleDischargeCapExceeded = "discharge_cap_exceeded"
)

// Violation is one (slot, rule) constraint breach.
type Violation struct {
	SlotIndex int       `json:"slot_index"`
	SlotStart time.Time `json:"slot_start"`
	Rule      string    `json:"rule"`
	Message   string    `json:"message"`
}

// ValidationResult aggregates validation over a simulated schedule. When the
// schedule violates constraints, Message is the first violation's text plus a
// count of the remaining violating slots; the full list stays in Violations
// for diagnostics.
type ValidationResult struct {
	OK         bool        `json:"ok"`
	Message    string      `json:"message,omitempty"`
	Violations []Violation `json:"violations,omitempty"`
}

// ValidateSchedule checks a simulated schedule against device constraints.
// Nil constraints validate everything: a missing constraint source must not
// block editing.
func ValidateSchedule(slots []models.ScheduleSlot, constraints *models.PlanningConstraints) ValidationResult {
	if constraints == nil {
		return ValidationResult{OK: true}
	}

	var violations []Violation
	record := func(i int, slot models.ScheduleSlot, rule, msg string) {
		violations = append(violations, Violation{
			SlotIndex: i,
			SlotStart: slot.StartTime,
			Rule:      rule,
			Message:   msg,
		})
	}

	for i, slot := range slots {
		at := slot.StartTime.Format("15:04")

		if soc, ok := slot.SoCPercent(); ok {
			if soc < constraints.MinSoCPercent-socTolerance {
				record(i, slot, RuleSoCBelowMin, fmt.Sprintf(
					"SoC %.1f%% at %s is below the minimum of %.1f%%",
					soc, at, constraints.MinSoCPercent))
			}
			if soc > constraints.MaxSoCPercent+socTolerance {
				record(i, slot, RuleSoCAboveMax, fmt.Sprintf(
					"SoC %.1f%% at %s exceeds the maximum of %.1f%%",
					soc, at, constraints.MaxSoCPercent))
			}
		}

		if charge := nonNegative(slot.ChargePowerKW()); constraints.MaxChargeKW > 0 &&
			charge > constraints.MaxChargeKW+powerTolerance {
			record(i, slot, RuleChargeCapExceeded, fmt.Sprintf(
				"charge power %.2f kW at %s exceeds the %.2f kW cap",
				charge, at, constraints.MaxChargeKW))
		}

		if discharge := nonNegative(slot.DischargePowerKW()); constraints.MaxDischargeKW > 0 &&
			discharge > constraints.MaxDischargeKW+powerTolerance {
			record(i, slot, RuleDischargeCapExceeded, fmt.Sprintf(
				"discharge power %.2f kW at %s exceeds the %.2f kW cap",
				discharge, at, constraints.MaxDischargeKW))
		}
	}

	if len(violations) == 0 {
		return ValidationResult{OK: true}
	}

	// The count covers distinct slots, not violations: one slot breaching
	// several rules is still one slot.
	slotsHit := make(map[int]struct{}, len(violations))
	for _, v := range violations {
		slotsHit[v.SlotIndex] = struct{}{}
	}

	message := violations[0].Message
	if extra := len(slotsHit) - 1; extra > 0 {
		message = fmt.Sprintf("%s (and %d more slots)", message, extra)
	}

	return ValidationResult{OK: false, Message: message, Violations: violations}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
