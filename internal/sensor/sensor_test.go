package sensor

import (
	"testing"
)

func TestParseColumn_FullForm(t *testing.T) {
	id, ok := ParseColumn("T1_K_2")
	if !ok {
		t.Fatal("expected T1_K_2 to parse")
	}
	if id.PipeID != "T1" {
		t.Errorf("Expected pipe T1, got %s", id.PipeID)
	}
	if id.SensorType != "K" {
		t.Errorf("Expected type K, got %s", id.SensorType)
	}
	if id.SensorNumber != 2 {
		t.Errorf("Expected number 2, got %d", id.SensorNumber)
	}
}

func TestParseColumn_UnitsAnnotation(t *testing.T) {
	withUnits, ok := ParseColumn("T1_K_2 (mm)")
	if !ok {
		t.Fatal("expected annotated header to parse")
	}
	plain, _ := ParseColumn("T1_K_2")
	if withUnits != plain {
		t.Errorf("Annotation changed identity: %+v vs %+v", withUnits, plain)
	}
	if withUnits.Key() != "T1_K_2" {
		t.Errorf("Expected key T1_K_2, got %s", withUnits.Key())
	}
}

func TestParseColumn_TemperatureForm(t *testing.T) {
	id, ok := ParseColumn("T_7")
	if !ok {
		t.Fatal("expected T_7 to parse")
	}
	if id.PipeID != "T_7" {
		t.Errorf("Expected pipe T_7, got %s", id.PipeID)
	}
	if id.SensorType != "T" {
		t.Errorf("Expected type T, got %s", id.SensorType)
	}
	if id.SensorNumber != 7 {
		t.Errorf("Expected number 7, got %d", id.SensorNumber)
	}
}

func TestParseColumn_FirstRuleWins(t *testing.T) {
	// "T12_KA_34" satisfies only the full form; make sure the full form
	// claims it before the temperature rule could be considered.
	id, ok := ParseColumn("T12_KA_34")
	if !ok {
		t.Fatal("expected T12_KA_34 to parse")
	}
	if id.PipeID != "T12" || id.SensorType != "KA" || id.SensorNumber != 34 {
		t.Errorf("Unexpected identity: %+v", id)
	}
}

func TestParseColumn_Unrecognized(t *testing.T) {
	for _, header := range []string{"Time", "Notes", "X1_K_2", "T1_K", "T_", "T_a", ""} {
		if _, ok := ParseColumn(header); ok {
			t.Errorf("Expected %q to be unrecognized", header)
		}
	}
}

func TestParseID_Roundtrip(t *testing.T) {
	id, err := ParseID("T1_K_2")
	if err != nil {
		t.Fatalf("ParseID failed: %v", err)
	}
	if id.Key() != "T1_K_2" {
		t.Errorf("Expected roundtrip to T1_K_2, got %s", id.Key())
	}
}

func TestParseID_Invalid(t *testing.T) {
	if _, err := ParseID("banana"); err == nil {
		t.Error("Expected error for invalid sensor id")
	}
}

func TestParseTimestamp_Fractional(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-01T12:30:45.123456")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if ts.Nanosecond() != 123456000 {
		t.Errorf("Expected 123456 microseconds, got %d ns", ts.Nanosecond())
	}
}

func TestParseTimestamp_WholeSeconds(t *testing.T) {
	ts, err := ParseTimestamp("2024-03-01T12:30:45")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	if ts.Second() != 45 || ts.Nanosecond() != 0 {
		t.Errorf("Unexpected parse result: %v", ts)
	}
}

func TestParseTimestamp_CommaDecimal(t *testing.T) {
	comma, err := ParseTimestamp("2024-03-01T12:30:45,5")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	period, _ := ParseTimestamp("2024-03-01T12:30:45.5")
	if !comma.Equal(period) {
		t.Errorf("Comma and period decimals should be equal: %v vs %v", comma, period)
	}
}

func TestParseTimestamp_TimezoneStripped(t *testing.T) {
	withTZ, err := ParseTimestamp("2024-03-01T12:30:45+03:00")
	if err != nil {
		t.Fatalf("ParseTimestamp failed: %v", err)
	}
	naive, _ := ParseTimestamp("2024-03-01T12:30:45")
	if !withTZ.Equal(naive) {
		t.Errorf("Timezone offset should be discarded, not applied: %v vs %v", withTZ, naive)
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, raw := range []string{"", "yesterday", "2024/03/01 12:30", "12:30:45"} {
		if _, err := ParseTimestamp(raw); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
}
