package alert

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateBatch_ConstantValuesFire(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	// avg == max, threshold == 0.95*max, so a constant batch always fires.
	fired := e.EvaluateBatch(map[string][]float64{
		"T1_K_1": {10, 10, 10},
	})

	if len(fired) != 1 {
		t.Fatalf("Expected 1 fired summary, got %d", len(fired))
	}
	s := fired[0]
	if !s.Fired {
		t.Error("Expected summary to be fired")
	}
	if !almostEqual(s.Min, 10) || !almostEqual(s.Max, 10) || !almostEqual(s.Avg, 10) {
		t.Errorf("Unexpected stats: %+v", s)
	}
	if !almostEqual(s.Threshold, 9.5) {
		t.Errorf("Expected threshold 9.5, got %f", s.Threshold)
	}
	if !strings.Contains(s.Message, "T1_K_1") {
		t.Errorf("Message should name the sensor: %s", s.Message)
	}
}

func TestEvaluateBatch_VariedValuesDoNotFire(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	// avg = 6, threshold = 0.95*10 = 9.5, no alert.
	fired := e.EvaluateBatch(map[string][]float64{
		"T1_K_1": {2, 6, 10},
	})

	if len(fired) != 0 {
		t.Errorf("Expected no fired summaries, got %d", len(fired))
	}
}

func TestEvaluateBatch_PerSensorIsolation(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	fired := e.EvaluateBatch(map[string][]float64{
		"T1_K_1": {10, 10},
		"T1_K_2": {1, 10},
		"T2_D_1": {5, 5},
	})

	if len(fired) != 2 {
		t.Fatalf("Expected 2 fired summaries, got %d", len(fired))
	}
	// Sorted by sensor id.
	if fired[0].SensorID != "T1_K_1" || fired[1].SensorID != "T2_D_1" {
		t.Errorf("Unexpected fired sensors: %s, %s", fired[0].SensorID, fired[1].SensorID)
	}
}

func TestEvaluateBatch_EmptyInputs(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	if fired := e.EvaluateBatch(nil); len(fired) != 0 {
		t.Errorf("Expected no summaries for nil input, got %d", len(fired))
	}
	if fired := e.EvaluateBatch(map[string][]float64{"T1_K_1": {}}); len(fired) != 0 {
		t.Errorf("Expected no summaries for empty value list, got %d", len(fired))
	}
}

func TestCheckHistory_Fires(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	// avg = (9+10)/2 = 9.5 > 9.0 = 0.9*10
	min, max := 9.0, 10.0
	s := e.CheckHistory("T1_K_1", &min, &max)

	if !s.Fired {
		t.Error("Expected historical check to fire")
	}
	if !almostEqual(s.Threshold, 9.0) {
		t.Errorf("Expected threshold 9.0, got %f", s.Threshold)
	}
	if !almostEqual(s.Avg, 9.5) {
		t.Errorf("Expected avg 9.5, got %f", s.Avg)
	}
}

func TestCheckHistory_DoesNotFire(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	// avg = (0+10)/2 = 5 <= 9
	min, max := 0.0, 10.0
	s := e.CheckHistory("T1_K_1", &min, &max)

	if s.Fired {
		t.Error("Expected historical check not to fire")
	}
	if !strings.Contains(s.Message, "below") {
		t.Errorf("Unexpected message: %s", s.Message)
	}
}

func TestCheckHistory_NoData(t *testing.T) {
	e := NewEvaluator(0.95, 0.90)

	s := e.CheckHistory("T1_K_1", nil, nil)
	if s.Fired {
		t.Error("Expected no alert without data")
	}
	if s.Message != "no data to analyze" {
		t.Errorf("Unexpected message: %s", s.Message)
	}
}

func TestSummary_Notification(t *testing.T) {
	s := Summary{
		SensorID:  "T1_K_1",
		Min:       1,
		Max:       10,
		Avg:       9.8,
		Threshold: 9.5,
		Fired:     true,
		Message:   "msg",
	}

	n := s.Notification()
	if n.SensorID != "T1_K_1" || n.Avg != 9.8 || n.Threshold != 9.5 {
		t.Errorf("Unexpected notification: %+v", n)
	}
	if n.Type != "alert" {
		t.Errorf("Expected type alert, got %s", n.Type)
	}
	if n.FiredAt.IsZero() {
		t.Error("Expected FiredAt to be set")
	}
}
