package models

import (
	"math"
	"time"
)

// SlotDuration is the default slot width when a slot carries no end time.
const SlotDuration = 30 * time.Minute

// ScheduleSlot is one half-open interval [StartTime, EndTime) of the planner
// output. All action magnitudes are optional: the planner omits fields it did
// not decide on, and historical rows carry a different subset than forecast
// rows. Slots are immutable inputs; nothing downstream writes to them.
type ScheduleSlot struct {
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	BatteryChargeKW    *float64 `json:"battery_charge_kw,omitempty"`
	BatteryDischargeKW *float64 `json:"battery_discharge_kw,omitempty"`
	WaterHeatingKW     *float64 `json:"water_heating_kw,omitempty"`
	ExportKWh          *float64 `json:"export_kwh,omitempty"`

	// Legacy planner columns, still emitted by older schedule rows.
	ChargeKW    *float64 `json:"charge_kw,omitempty"`
	DischargeKW *float64 `json:"discharge_kw,omitempty"`

	ProjectedSoCPercent *float64 `json:"projected_soc_percent,omitempty"`
	SoCTargetPercent    *float64 `json:"soc_target_percent,omitempty"`

	IsHistorical bool `json:"is_historical,omitempty"`
}

// End resolves the slot's end time, defaulting to StartTime + SlotDuration.
func (s ScheduleSlot) End() time.Time {
	if s.EndTime != nil {
		return *s.EndTime
	}
	return s.StartTime.Add(SlotDuration)
}

// ChargePowerKW resolves the effective charge power through the
// new-field-else-legacy-else-zero chain.
func (s ScheduleSlot) ChargePowerKW() float64 {
	return firstFinite(s.BatteryChargeKW, s.ChargeKW)
}

// DischargePowerKW resolves the effective discharge power.
func (s ScheduleSlot) DischargePowerKW() float64 {
	return firstFinite(s.BatteryDischargeKW, s.DischargeKW)
}

// WaterPowerKW resolves the water heating power.
func (s ScheduleSlot) WaterPowerKW() float64 {
	return firstFinite(s.WaterHeatingKW)
}

// ExportEnergyKWh resolves the exported energy.
func (s ScheduleSlot) ExportEnergyKWh() float64 {
	return firstFinite(s.ExportKWh)
}

// SoCPercent returns the slot's state-of-charge reading, preferring the
// projected value over the target, and false when neither is usable.
func (s ScheduleSlot) SoCPercent() (float64, bool) {
	for _, candidate := range []*float64{s.ProjectedSoCPercent, s.SoCTargetPercent} {
		if candidate != nil && !math.IsNaN(*candidate) && !math.IsInf(*candidate, 0) {
			return *candidate, true
		}
	}
	return 0, false
}

// HasAction reports whether the slot carries any device action.
func (s ScheduleSlot) HasAction() bool {
	return s.ChargePowerKW() > 0 || s.DischargePowerKW() > 0 ||
		s.WaterPowerKW() > 0 || s.ExportEnergyKWh() > 0
}

func firstFinite(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil && !math.IsNaN(*c) && !math.IsInf(*c, 0) {
			return *c
		}
	}
	return 0
}

// PlanningConstraints is a read-only snapshot of the device limits used for
// classification and validation. A power cap of 0 means "no cap enforced",
// mirroring the planner config defaults.
type PlanningConstraints struct {
	MinSoCPercent  float64 `json:"min_soc_percent"`
	MaxSoCPercent  float64 `json:"max_soc_percent"`
	MaxChargeKW    float64 `json:"max_charge_kw"`
	MaxDischargeKW float64 `json:"max_discharge_kw"`
}

// DefaultConstraints returns the fail-open constraint defaults.
func DefaultConstraints() PlanningConstraints {
	return PlanningConstraints{MinSoCPercent: 0, MaxSoCPercent: 100}
}

// SimulateAction is one manual block edit serialized for the planner's
// simulate endpoint. Start and End are RFC 3339 timestamps.
type SimulateAction struct {
	ID     string `json:"id"`
	Group  string `json:"group"`
	Title  string `json:"title"`
	Action string `json:"action"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

// PlanSnapshot persists the last known-good schedule for a timeline session
// so a session can be recovered after a restart.
type PlanSnapshot struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	SessionID string    `gorm:"type:uuid;index:idx_snapshot_session"`
	Schedule  []byte    `gorm:"type:jsonb"`
	TakenAt   time.Time `gorm:"index"`
	CreatedAt time.Time
}

// TableName returns the table name for GORM.
func (PlanSnapshot) TableName() string {
	return "plan_snapshots"
}

// TimelineAuditLog records apply attempts and their outcomes.
type TimelineAuditLog struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	SessionID  string `gorm:"type:uuid;index:idx_timeline_audit_session"`
	Action     string `gorm:"type:varchar(64);index:idx_timeline_audit_action;not null"`
	Outcome    string `gorm:"type:varchar(32)"` // "applied", "rejected", "failed"
	Message    string `gorm:"type:text"`
	BlockCount int
	Details    map[string]any `gorm:"type:jsonb;serializer:json"`
	CreatedAt  time.Time      `gorm:"index:idx_timeline_audit_created"`
}

// TableName returns the table name for GORM.
func (TimelineAuditLog) TableName() string {
	return "timeline_audit_logs"
}
