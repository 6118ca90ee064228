package ingest

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/sensor"
)

// NormalizeRow turns one CSV row into canonical readings. Every column
// except the time column is considered: empty values and non-sensor headers
// are skipped silently, unparseable numbers are logged and skipped. A bad
// column never suppresses the other columns of the same row.
func NormalizeRow(headers []string, record []string, timeIdx int, ts time.Time) []database.Reading {
	var readings []database.Reading

	for i, header := range headers {
		if i == timeIdx || i >= len(record) {
			continue
		}
		raw := strings.TrimSpace(record[i])
		if raw == "" {
			continue
		}

		id, ok := sensor.ParseColumn(header)
		if !ok {
			continue
		}

		value, err := parseValue(raw)
		if err != nil {
			log.Printf("Invalid numeric value %q in column %q: %v", raw, header, err)
			continue
		}

		readings = append(readings, database.Reading{
			Timestamp:    ts,
			PipeID:       id.PipeID,
			SensorType:   id.SensorType,
			SensorNumber: id.SensorNumber,
			Value:        value,
		})
	}

	return readings
}

// parseValue parses a measurement accepting both "." and "," decimals.
func parseValue(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
}
