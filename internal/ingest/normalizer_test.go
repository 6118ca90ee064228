package ingest

import (
	"testing"
	"time"
)

var rowTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalizeRow_EmitsReadings(t *testing.T) {
	headers := []string{"Time", "T1_K_2 (mm)", "T_7"}
	record := []string{"2024-03-01T12:00:00", "12,5", "0.3"}

	readings := NormalizeRow(headers, record, 0, rowTime)
	if len(readings) != 2 {
		t.Fatalf("Expected 2 readings, got %d", len(readings))
	}

	first := readings[0]
	if first.PipeID != "T1" || first.SensorType != "K" || first.SensorNumber != 2 {
		t.Errorf("Unexpected identity: %+v", first)
	}
	if first.Value != 12.5 {
		t.Errorf("Expected 12.5, got %f", first.Value)
	}
	if !first.Timestamp.Equal(rowTime) {
		t.Errorf("Unexpected timestamp: %v", first.Timestamp)
	}

	second := readings[1]
	if second.PipeID != "T_7" || second.SensorType != "T" || second.SensorNumber != 7 {
		t.Errorf("Unexpected identity: %+v", second)
	}
	if second.Value != 0.3 {
		t.Errorf("Expected 0.3, got %f", second.Value)
	}
}

func TestNormalizeRow_SkipsEmptyValues(t *testing.T) {
	headers := []string{"Time", "T1_K_1", "T1_K_2"}
	record := []string{"2024-03-01T12:00:00", "", "1.0"}

	readings := NormalizeRow(headers, record, 0, rowTime)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].SensorNumber != 2 {
		t.Errorf("Expected sensor 2, got %d", readings[0].SensorNumber)
	}
}

func TestNormalizeRow_SkipsUnrecognizedColumns(t *testing.T) {
	headers := []string{"Time", "Notes", "T1_K_1"}
	record := []string{"2024-03-01T12:00:00", "operator comment", "2.5"}

	readings := NormalizeRow(headers, record, 0, rowTime)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].SensorID() != "T1_K_1" {
		t.Errorf("Unexpected sensor: %s", readings[0].SensorID())
	}
}

func TestNormalizeRow_BadValueDoesNotAbortRow(t *testing.T) {
	headers := []string{"Time", "T1_K_1", "T1_K_2"}
	record := []string{"2024-03-01T12:00:00", "not-a-number", "2.5"}

	readings := NormalizeRow(headers, record, 0, rowTime)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
	if readings[0].SensorID() != "T1_K_2" {
		t.Errorf("Unexpected sensor: %s", readings[0].SensorID())
	}
}

func TestNormalizeRow_ShortRecord(t *testing.T) {
	headers := []string{"Time", "T1_K_1", "T1_K_2"}
	record := []string{"2024-03-01T12:00:00", "1.0"}

	readings := NormalizeRow(headers, record, 0, rowTime)
	if len(readings) != 1 {
		t.Fatalf("Expected 1 reading, got %d", len(readings))
	}
}
