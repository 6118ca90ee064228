package database

import (
	"fmt"
	"time"

	"github.com/avolkov/pipewatch/internal/sensor"
)

// Reading is one persisted measurement. The four-column tuple
// (timestamp, pipe_id, sensor_type, sensor_number) is unique; re-ingesting
// the same coordinate is silently ignored, the first writer wins.
type Reading struct {
	ID           int64
	Timestamp    time.Time
	PipeID       string
	SensorType   string
	SensorNumber int
	Value        float64
}

// SensorID returns the display key, e.g. "T1_K_2".
func (r Reading) SensorID() string {
	return fmt.Sprintf("%s_%s_%d", r.PipeID, r.SensorType, r.SensorNumber)
}

// ReadingFilter narrows reading queries. Nil fields are not applied.
type ReadingFilter struct {
	Sensor    *sensor.Identity
	StartDate *time.Time
	EndDate   *time.Time
	MinValue  *float64
	MaxValue  *float64
}

// Extremes holds the min/max aggregate over a filtered reading set.
// Both are nil when no rows match.
type Extremes struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}
