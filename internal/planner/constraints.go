/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/friendsincode/vanir_energy/internal/models"
)

// ConstraintsFromConfig coerces a raw planner config document into a
// constraint snapshot. Battery limits may sit at the top level or under a
// "battery" section; absent or non-finite values fall back to the defaults
// (min 0, max 100, caps uncapped).
func ConstraintsFromConfig(doc map[string]any) *models.PlanningConstraints {
	constraints := models.DefaultConstraints()
	if doc == nil {
		return &constraints
	}

	section := doc
	if battery, ok := doc["battery"].(map[string]any); ok {
		section = battery
	}

	lookup := func(keys ...string) (float64, bool) {
		for _, key := range keys {
			if raw, ok := section[key]; ok {
				if v, ok := toFloat(raw); ok {
					return v, true
				}
			}
			if raw, ok := doc[key]; ok {
				if v, ok := toFloat(raw); ok {
					return v, true
				}
			}
		}
		return 0, false
	}

	if v, ok := lookup("min_soc_percent"); ok {
		constraints.MinSoCPercent = v
	}
	if v, ok := lookup("max_soc_percent"); ok {
		constraints.MaxSoCPercent = v
	}
	if v, ok := lookup("max_charge_power_kw", "max_charge_kw"); ok {
		constraints.MaxChargeKW = v
	}
	if v, ok := lookup("max_discharge_power_kw", "max_discharge_kw"); ok {
		constraints.MaxDischargeKW = v
	}

	return &constraints
}

// toFloat coerces JSON scalar shapes to a finite float64.
func toFloat(value any) (float64, bool) {
	var v float64
	switch typed := value.(type) {
	case float64:
		v = typed
	case float32:
		v = float64(typed)
	case int:
		v = float64(typed)
	case int64:
		v = float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		v = parsed
	case string:
		parsed, err := strconv.ParseFloat(typed, 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
