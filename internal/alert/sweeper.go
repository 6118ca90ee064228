package alert

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/avolkov/pipewatch/internal/database"
	"github.com/avolkov/pipewatch/internal/protocol"
	"github.com/avolkov/pipewatch/internal/sensor"
)

// SweepStore is the read-only slice of the store the sweeper needs.
type SweepStore interface {
	ListSensors(ctx context.Context) ([]string, error)
	GetExtremes(ctx context.Context, filter database.ReadingFilter) (database.Extremes, error)
}

// Notifier delivers a fired alert to subscribers.
type Notifier interface {
	BroadcastAlert(alert *protocol.AlertNotification)
}

// Sweeper periodically re-runs the historical ratio check for every known
// sensor and broadcasts the ones that fire. Delivery failures are logged
// and never stop a sweep.
type Sweeper struct {
	store     SweepStore
	evaluator *Evaluator
	notifier  Notifier
	cron      *cron.Cron
	spec      string
}

// NewSweeper creates a sweeper scheduled by a cron spec (e.g. "@every 1h").
func NewSweeper(store SweepStore, evaluator *Evaluator, notifier Notifier, spec string) *Sweeper {
	return &Sweeper{
		store:     store,
		evaluator: evaluator,
		notifier:  notifier,
		cron:      cron.New(),
		spec:      spec,
	}
}

// Start schedules the sweep and begins the cron loop.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if err := s.Sweep(context.Background()); err != nil {
			log.Printf("Alert sweep failed: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule alert sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one pass over all known sensors.
func (s *Sweeper) Sweep(ctx context.Context) error {
	sensors, err := s.store.ListSensors(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sensors: %w", err)
	}

	for _, sensorID := range sensors {
		id, err := sensor.ParseID(sensorID)
		if err != nil {
			// Temperature-style keys do not round-trip through the
			// column grammar; they are only checked on demand.
			continue
		}

		extremes, err := s.store.GetExtremes(ctx, database.ReadingFilter{Sensor: &id})
		if err != nil {
			log.Printf("Failed to load extremes for %s: %v", sensorID, err)
			continue
		}

		summary := s.evaluator.CheckHistory(sensorID, extremes.Min, extremes.Max)
		if summary.Fired {
			log.Printf("Sweep alert for %s: %s", sensorID, summary.Message)
			s.notifier.BroadcastAlert(summary.Notification())
		}
	}

	return nil
}
