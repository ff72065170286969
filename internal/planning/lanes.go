/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planning derives editable timeline blocks from planner schedule
// slots and validates simulated schedules against device constraints.
package planning

// Lane identifies a device-action track on the planning timeline.
type Lane string

const (
	LaneBattery Lane = "battery"
	LaneWater   Lane = "water"
	LaneExport  Lane = "export"
	LaneHold    Lane = "hold"
)

// LaneInfo carries display metadata for one lane.
type LaneInfo struct {
	Lane  Lane   `json:"lane"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Lanes lists every timeline lane in display order. The set is closed; lanes
// are never created or destroyed at runtime.
func Lanes() []LaneInfo {
	return []LaneInfo{
		{Lane: LaneBattery, Label: "Battery Charge", Color: "#4caf50"},
		{Lane: LaneWater, Label: "Water Heating", Color: "#2196f3"},
		{Lane: LaneExport, Label: "Grid Export", Color: "#ff9800"},
		{Lane: LaneHold, Label: "Hold", Color: "#9e9e9e"},
	}
}

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	switch l {
	case LaneBattery, LaneWater, LaneExport, LaneHold:
		return true
	}
	return false
}

// DefaultAction maps a lane to the action label used in simulate requests.
func (l Lane) DefaultAction() string {
	switch l {
	case LaneBattery:
		return "charge"
	case LaneWater:
		return "heat_water"
	case LaneExport:
		return "export"
	default:
		return "hold"
	}
}
