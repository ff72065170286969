package planner

import (
	"math"
	"testing"
)

func TestConstraintsFromConfigDefaults(t *testing.T) {
	got := ConstraintsFromConfig(nil)
	if got.MinSoCPercent != 0 || got.MaxSoCPercent != 100 {
		t.Fatalf("unexpected defaults %+v", got)
	}
	if got.MaxChargeKW != 0 || got.MaxDischargeKW != 0 {
		t.Fatalf("caps should default to uncapped, got %+v", got)
	}
}

func TestConstraintsFromConfigTopLevelKeys(t *testing.T) {
	got := ConstraintsFromConfig(map[string]any{
		"min_soc_percent":        10.0,
		"max_soc_percent":        95.0,
		"max_charge_power_kw":    3.7,
		"max_discharge_power_kw": 5.0,
	})
	if got.MinSoCPercent != 10 || got.MaxSoCPercent != 95 {
		t.Fatalf("unexpected bounds %+v", got)
	}
	if got.MaxChargeKW != 3.7 || got.MaxDischargeKW != 5 {
		t.Fatalf("unexpected caps %+v", got)
	}
}

func TestConstraintsFromConfigBatterySection(t *testing.T) {
	got := ConstraintsFromConfig(map[string]any{
		"battery": map[string]any{
			"min_soc_percent": 20.0,
			"max_charge_kw":   2.5,
		},
	})
	if got.MinSoCPercent != 20 {
		t.Fatalf("battery section not read: %+v", got)
	}
	if got.MaxChargeKW != 2.5 {
		t.Fatalf("legacy cap key not read: %+v", got)
	}
	if got.MaxSoCPercent != 100 {
		t.Fatalf("absent max should keep default: %+v", got)
	}
}

func TestConstraintsFromConfigCoercions(t *testing.T) {
	got := ConstraintsFromConfig(map[string]any{
		"min_soc_percent":     "12.5",
		"max_soc_percent":     90,
		"max_charge_power_kw": math.NaN(),
	})
	if got.MinSoCPercent != 12.5 {
		t.Fatalf("string value not coerced: %+v", got)
	}
	if got.MaxSoCPercent != 90 {
		t.Fatalf("int value not coerced: %+v", got)
	}
	if got.MaxChargeKW != 0 {
		t.Fatalf("NaN must fall back to default, got %v", got.MaxChargeKW)
	}
}

func TestConstraintsFromConfigGarbageIgnored(t *testing.T) {
	got := ConstraintsFromConfig(map[string]any{
		"min_soc_percent": "not a number",
		"max_soc_percent": []any{90},
	})
	if got.MinSoCPercent != 0 || got.MaxSoCPercent != 100 {
		t.Fatalf("garbage values must keep defaults, got %+v", got)
	}
}
