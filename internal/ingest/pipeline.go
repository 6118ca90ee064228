package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/avolkov/pipewatch/internal/alert"
	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/protocol"
	"github.com/avolkov/pipewatch/internal/sensor"
)

// ErrMissingTimeColumn means the upload has no 'Time' header and nothing in
// it can be ingested. Surfaced to the caller as a client error.
var ErrMissingTimeColumn = errors.New("CSV file has no 'Time' column")

// Store is the slice of the storage layer the pipeline writes through.
type Store interface {
	BulkInsertReadings(ctx context.Context, readings []database.Reading) (int64, error)
}

// Publisher pushes fired alerts to an external topic. Optional.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *protocol.AlertNotification) error
}

// Result summarizes one processed upload.
type Result struct {
	Message    string          `json:"message"`
	Parsed     int             `json:"parsed_records"`
	Inserted   int64           `json:"new_records"`
	Duplicates int64           `json:"duplicates"`
	Alerts     []alert.Summary `json:"alerts,omitempty"`
}

// Pipeline ingests one CSV upload: sequential normalization into a single
// in-memory batch, one atomic insert-ignore write, then batch alert
// evaluation. One pipeline run never shares a transaction with another.
type Pipeline struct {
	store     Store
	evaluator *alert.Evaluator
	notifier  alert.Notifier
	publisher Publisher
}

// NewPipeline creates an ingestion pipeline. publisher may be nil.
func NewPipeline(store Store, evaluator *alert.Evaluator, notifier alert.Notifier, publisher Publisher) *Pipeline {
	return &Pipeline{
		store:     store,
		evaluator: evaluator,
		notifier:  notifier,
		publisher: publisher,
	}
}

// Ingest processes a full CSV payload: ';' delimiter, required 'Time'
// column, UTF-8 with optional BOM. Row- and column-level problems are
// logged and skipped; only a missing Time column or a storage failure
// aborts the upload.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	timeIdx := -1
	for i, h := range headers {
		if h == "Time" {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, ErrMissingTimeColumn
	}

	var batch []database.Reading
	sensorValues := make(map[string][]float64)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Skipping malformed CSV row: %v", err)
			continue
		}
		if timeIdx >= len(record) {
			log.Printf("Skipping row without a Time field")
			continue
		}

		ts, err := sensor.ParseTimestamp(record[timeIdx])
		if err != nil {
			log.Printf("Skipping row: %v", err)
			continue
		}

		readings := NormalizeRow(headers, record, timeIdx, ts)
		for _, reading := range readings {
			key := reading.SensorID()
			sensorValues[key] = append(sensorValues[key], reading.Value)
		}
		batch = append(batch, readings...)
	}

	inserted, err := p.store.BulkInsertReadings(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}

	fired := p.evaluator.EvaluateBatch(sensorValues)
	for _, summary := range fired {
		notification := summary.Notification()
		p.notifier.BroadcastAlert(notification)
		if p.publisher != nil {
			// Topic delivery is fire-and-forget relative to the upload.
			go func(n *protocol.AlertNotification) {
				if err := p.publisher.PublishAlert(context.Background(), n); err != nil {
					log.Printf("Failed to publish alert for %s: %v", n.SensorID, err)
				}
			}(notification)
		}
	}

	return &Result{
		Message:    "Data uploaded",
		Parsed:     len(batch),
		Inserted:   inserted,
		Duplicates: int64(len(batch)) - inserted,
		Alerts:     fired,
	}, nil
}
