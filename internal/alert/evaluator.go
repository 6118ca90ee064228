package alert

import (
	"fmt"
	"sort"
	"time"

	"github.com/avolkov/pipewatch/internal/protocol"
)

// Summary is the per-sensor verdict for one upload batch or one historical
// check. It is derived in memory and never persisted.
type Summary struct {
	SensorID  string  `json:"sensor_id"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Avg       float64 `json:"current_avg"`
	Threshold float64 `json:"threshold"`
	Fired     bool    `json:"alert"`
	Message   string  `json:"message"`
}

// Notification converts a summary into the push/topic payload.
func (s Summary) Notification() *protocol.AlertNotification {
	return &protocol.AlertNotification{
		Type:      protocol.MsgTypeAlert,
		SensorID:  s.SensorID,
		Message:   s.Message,
		Min:       s.Min,
		Max:       s.Max,
		Avg:       s.Avg,
		Threshold: s.Threshold,
		FiredAt:   time.Now(),
	}
}

// Evaluator decides whether sensor value sets breach their ratio threshold.
// It is independent of storage; batch evaluation sees only the values of
// the current upload.
type Evaluator struct {
	batchRatio   float64
	historyRatio float64
}

// NewEvaluator creates an evaluator. batchRatio scales the batch max into
// the upload threshold; historyRatio scales the historical max for
// on-demand checks.
func NewEvaluator(batchRatio, historyRatio float64) *Evaluator {
	return &Evaluator{
		batchRatio:   batchRatio,
		historyRatio: historyRatio,
	}
}

// EvaluateBatch computes min/max/avg per sensor over one upload batch and
// returns the summaries that fired, ordered by sensor id. The threshold is
// derived from the same batch's max, so only near-uniform high batches
// fire; this is deliberate and not general anomaly detection.
func (e *Evaluator) EvaluateBatch(values map[string][]float64) []Summary {
	var fired []Summary

	for sensorID, vals := range values {
		if len(vals) == 0 {
			continue
		}

		min, max, sum := vals[0], vals[0], 0.0
		for _, v := range vals {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(vals))
		threshold := max * e.batchRatio

		if avg > threshold {
			fired = append(fired, Summary{
				SensorID:  sensorID,
				Min:       min,
				Max:       max,
				Avg:       avg,
				Threshold: threshold,
				Fired:     true,
				Message: fmt.Sprintf("Critical values! Average %.2f > threshold %.2f for sensor %s",
					avg, threshold, sensorID),
			})
		}
	}

	sort.Slice(fired, func(i, j int) bool { return fired[i].SensorID < fired[j].SensorID })
	return fired
}

// CheckHistory applies the ratio check to persisted extremes instead of a
// batch: threshold = historyRatio * max, avg = (min+max)/2. Nil extremes
// mean there is nothing to analyze.
func (e *Evaluator) CheckHistory(sensorID string, min, max *float64) Summary {
	if min == nil || max == nil {
		return Summary{
			SensorID: sensorID,
			Fired:    false,
			Message:  "no data to analyze",
		}
	}

	threshold := *max * e.historyRatio
	avg := (*min + *max) / 2
	fired := avg > threshold

	verdict := "below"
	if fired {
		verdict = "exceeded"
	}

	return Summary{
		SensorID:  sensorID,
		Min:       *min,
		Max:       *max,
		Avg:       avg,
		Threshold: threshold,
		Fired:     fired,
		Message:   fmt.Sprintf("Average value %.2f %s threshold %.2f", avg, verdict, threshold),
	}
}
