package planning

import (
	"testing"
	"time"

	"github.com/friendsincode/vanir_energy/internal/models"
)

func f(v float64) *float64 { return &v }

func TestClassifySlotLaneMembership(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 10, MaxSoCPercent: 95}

	tests := []struct {
		name string
		slot models.ScheduleSlot
		want []Lane
	}{
		{
			name: "charging slot joins battery lane",
			slot: models.ScheduleSlot{BatteryChargeKW: f(2.0)},
			want: []Lane{LaneBattery},
		},
		{
			name: "legacy charge field still classifies",
			slot: models.ScheduleSlot{ChargeKW: f(1.5)},
			want: []Lane{LaneBattery},
		},
		{
			name: "zero charge is not an action",
			slot: models.ScheduleSlot{BatteryChargeKW: f(0)},
			want: []Lane{LaneHold},
		},
		{
			name: "any positive charge classifies",
			slot: models.ScheduleSlot{BatteryChargeKW: f(0.0001)},
			want: []Lane{LaneBattery},
		},
		{
			name: "water heating slot",
			slot: models.ScheduleSlot{WaterHeatingKW: f(3.0)},
			want: []Lane{LaneWater},
		},
		{
			name: "export slot",
			slot: models.ScheduleSlot{ExportKWh: f(0.8)},
			want: []Lane{LaneExport},
		},
		{
			name: "discharge alone does not join battery lane",
			slot: models.ScheduleSlot{BatteryDischargeKW: f(2.0)},
			want: []Lane{LaneHold},
		},
		{
			name: "multi-action slot joins every matching lane",
			slot: models.ScheduleSlot{BatteryChargeKW: f(2.0), WaterHeatingKW: f(1.0), ExportKWh: f(0.5)},
			want: []Lane{LaneBattery, LaneWater, LaneExport},
		},
		{
			name: "idle slot with mid-range soc holds",
			slot: models.ScheduleSlot{ProjectedSoCPercent: f(50)},
			want: []Lane{LaneHold},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySlot(tt.slot, constraints)
			if len(got) != len(tt.want) {
				t.Fatalf("got lanes %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("got lanes %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestClassifySlotPinnedZeroCapacity(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 10, MaxSoCPercent: 95}

	tests := []struct {
		name   string
		slot   models.ScheduleSlot
		pinned bool
	}{
		{"exactly at min", models.ScheduleSlot{ProjectedSoCPercent: f(10)}, true},
		{"exactly at max", models.ScheduleSlot{ProjectedSoCPercent: f(95)}, true},
		{"just inside tolerance of min", models.ScheduleSlot{ProjectedSoCPercent: f(10.009)}, true},
		{"just outside tolerance of min", models.ScheduleSlot{ProjectedSoCPercent: f(10.011)}, false},
		{"just under max within tolerance", models.ScheduleSlot{ProjectedSoCPercent: f(94.991)}, true},
		{"soc target used when projection missing", models.ScheduleSlot{SoCTargetPercent: f(10)}, true},
		{"projection preferred over target", models.ScheduleSlot{ProjectedSoCPercent: f(50), SoCTargetPercent: f(10)}, false},
		{"no soc reading", models.ScheduleSlot{}, false},
		{"pinned soc with an action still classifies", models.ScheduleSlot{ProjectedSoCPercent: f(10), WaterHeatingKW: f(2)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifySlot(tt.slot, constraints)
			if tt.pinned {
				if got != nil {
					t.Fatalf("expected a gap, got lanes %v", got)
				}
				return
			}
			if len(got) == 0 {
				t.Fatal("expected at least one lane, got a gap")
			}
		})
	}
}

func TestClassifySlotNilConstraintsNeverPins(t *testing.T) {
	slot := models.ScheduleSlot{ProjectedSoCPercent: f(0)}
	got := ClassifySlot(slot, nil)
	if len(got) != 1 || got[0] != LaneHold {
		t.Fatalf("expected hold lane without constraints, got %v", got)
	}
}

func TestFilterDayWindow(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, loc)
	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)

	slots := []models.ScheduleSlot{
		{StartTime: dayStart.Add(-time.Hour)},     // yesterday
		{StartTime: dayStart},                     // today midnight
		{StartTime: dayStart.Add(36 * time.Hour)}, // tomorrow noon
		{StartTime: dayStart.AddDate(0, 0, 2)},    // day after, excluded
		{StartTime: dayStart.Add(47*time.Hour + 30*time.Minute)},
	}

	got := FilterDayWindow(slots, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 slots in window, got %d", len(got))
	}
	if !got[0].StartTime.Equal(dayStart) {
		t.Fatalf("unexpected first slot %v", got[0].StartTime)
	}
}
