package planning

import (
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/vanir_energy/internal/models"
)

func socSlot(start time.Time, soc float64) models.ScheduleSlot {
	return models.ScheduleSlot{StartTime: start, ProjectedSoCPercent: f(soc)}
}

func TestValidateScheduleNilConstraintsFailOpen(t *testing.T) {
	slots := []models.ScheduleSlot{socSlot(time.Now(), -50)}
	result := ValidateSchedule(slots, nil)
	if !result.OK {
		t.Fatal("nil constraints must validate everything")
	}
}

func TestValidateScheduleSoCBounds(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 20, MaxSoCPercent: 90}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		soc  float64
		rule string
	}{
		{"well below min", 5, RuleSoCBelowMin},
		{"just below tolerance", 19.989, RuleSoCBelowMin},
		{"within tolerance of min", 19.991, ""},
		{"at min", 20, ""},
		{"mid-range", 55, ""},
		{"at max", 90, ""},
		{"within tolerance of max", 90.009, ""},
		{"just above tolerance", 90.011, RuleSoCAboveMax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateSchedule([]models.ScheduleSlot{socSlot(start, tt.soc)}, constraints)
			if tt.rule == "" {
				if !result.OK {
					t.Fatalf("expected ok, got violation %q", result.Message)
				}
				return
			}
			if result.OK {
				t.Fatal("expected a violation")
			}
			if result.Violations[0].Rule != tt.rule {
				t.Fatalf("expected rule %q, got %q", tt.rule, result.Violations[0].Rule)
			}
		})
	}
}

func TestValidateSchedulePowerCaps(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	charge := models.ScheduleSlot{StartTime: start, BatteryChargeKW: f(5.0)}
	discharge := models.ScheduleSlot{StartTime: start, BatteryDischargeKW: f(4.0)}

	t.Run("zero cap means uncapped", func(t *testing.T) {
		constraints := &models.PlanningConstraints{MaxSoCPercent: 100}
		if result := ValidateSchedule([]models.ScheduleSlot{charge, discharge}, constraints); !result.OK {
			t.Fatalf("expected ok with zero caps, got %q", result.Message)
		}
	})

	t.Run("charge cap exceeded", func(t *testing.T) {
		constraints := &models.PlanningConstraints{MaxSoCPercent: 100, MaxChargeKW: 3.0}
		result := ValidateSchedule([]models.ScheduleSlot{charge}, constraints)
		if result.OK {
			t.Fatal("expected charge cap violation")
		}
		if result.Violations[0].Rule != RuleChargeCapExceeded {
			t.Fatalf("unexpected rule %q", result.Violations[0].Rule)
		}
	})

	t.Run("charge exactly at cap", func(t *testing.T) {
		constraints := &models.PlanningConstraints{MaxSoCPercent: 100, MaxChargeKW: 5.0}
		if result := ValidateSchedule([]models.ScheduleSlot{charge}, constraints); !result.OK {
			t.Fatalf("expected ok at the cap, got %q", result.Message)
		}
	})

	t.Run("discharge cap exceeded", func(t *testing.T) {
		constraints := &models.PlanningConstraints{MaxSoCPercent: 100, MaxDischargeKW: 2.0}
		result := ValidateSchedule([]models.ScheduleSlot{discharge}, constraints)
		if result.OK {
			t.Fatal("expected discharge cap violation")
		}
		if result.Violations[0].Rule != RuleDischargeCapExceeded {
			t.Fatalf("unexpected rule %q", result.Violations[0].Rule)
		}
	})

	t.Run("legacy charge field checked against cap", func(t *testing.T) {
		legacy := models.ScheduleSlot{StartTime: start, ChargeKW: f(5.0)}
		constraints := &models.PlanningConstraints{MaxSoCPercent: 100, MaxChargeKW: 3.0}
		if result := ValidateSchedule([]models.ScheduleSlot{legacy}, constraints); result.OK {
			t.Fatal("expected legacy charge field to trip the cap")
		}
	})
}

func TestValidateScheduleMessageTruncation(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 20, MaxSoCPercent: 90}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	var slots []models.ScheduleSlot
	for i := 0; i < 5; i++ {
		slots = append(slots, socSlot(start.Add(time.Duration(i)*30*time.Minute), 5))
	}

	result := ValidateSchedule(slots, constraints)
	if result.OK {
		t.Fatal("expected violations")
	}
	if len(result.Violations) != 5 {
		t.Fatalf("expected 5 violations, got %d", len(result.Violations))
	}
	if !strings.HasSuffix(result.Message, "(and 4 more slots)") {
		t.Fatalf("unexpected message %q", result.Message)
	}
	if !strings.Contains(result.Message, "09:00") {
		t.Fatalf("message should carry the first slot time, got %q", result.Message)
	}
}

func TestValidateScheduleSingleViolationMessage(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 20, MaxSoCPercent: 90}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	result := ValidateSchedule([]models.ScheduleSlot{socSlot(start, 5)}, constraints)
	if result.OK {
		t.Fatal("expected a violation")
	}
	if strings.Contains(result.Message, "more slots") {
		t.Fatalf("single violation must not mention more slots: %q", result.Message)
	}
}

func TestValidateScheduleMultiRuleSlotCountsOnce(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 20, MaxSoCPercent: 90, MaxChargeKW: 3.0}
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	slot := models.ScheduleSlot{StartTime: start, ProjectedSoCPercent: f(5), BatteryChargeKW: f(5.0)}
	result := ValidateSchedule([]models.ScheduleSlot{slot}, constraints)
	if result.OK {
		t.Fatal("expected violations")
	}
	if len(result.Violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(result.Violations))
	}
	if strings.Contains(result.Message, "more slots") {
		t.Fatalf("one violating slot must not mention more slots: %q", result.Message)
	}

	// A second violating slot brings the suffix back, still counting slots.
	other := socSlot(start.Add(30*time.Minute), 5)
	result = ValidateSchedule([]models.ScheduleSlot{slot, other}, constraints)
	if !strings.HasSuffix(result.Message, "(and 1 more slots)") {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestValidateScheduleSlotWithoutSoCSkipsSoCRules(t *testing.T) {
	constraints := &models.PlanningConstraints{MinSoCPercent: 20, MaxSoCPercent: 90}
	slot := models.ScheduleSlot{StartTime: time.Now(), BatteryChargeKW: f(1)}

	if result := ValidateSchedule([]models.ScheduleSlot{slot}, constraints); !result.OK {
		t.Fatalf("slot without SoC reading must not violate SoC rules: %q", result.Message)
	}
}
