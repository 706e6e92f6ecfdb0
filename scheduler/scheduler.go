// Package scheduler runs the release check and classification on a daily schedule for the
// hospitals service, and swaps the results into the data container.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giygas/nhi-hospitals/interfaces"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const staleDataWarning = 25 * time.Hour

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore   interfaces.DataStore
	pipeline    *Pipeline
	updateTimes string
	runTimeout  time.Duration
	scheduler   *gocron.Scheduler
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewScheduler creates a scheduler running pipeline at updateTimes ("HH:MM;HH:MM").
// runTimeout bounds one whole update, zero means unbounded.
func NewScheduler(dataStore interfaces.DataStore, pipeline *Pipeline, updateTimes string, runTimeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()

	return &Scheduler{
		dataStore:   dataStore,
		pipeline:    pipeline,
		updateTimes: updateTimes,
		runTimeout:  runTimeout,
		scheduler:   s,
		stop:        make(chan struct{}),
	}
}

// Start runs one update, then schedules the daily ones and the health monitor.
// A failed first update is logged; the service keeps serving and retries on schedule.
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.updateTimes).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to update data", "error", err)
		}
	})

	if err != nil {
		logging.Error("Failed to schedule updates", "error", err)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()

	s.startHealthMonitoring()

	return nil
}

// Stop stops the scheduler and the health monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.stop) })
}

// updateData fetches new releases, classifies what is on disk and swaps the result in.
// A failed fetch is recorded but the classification still runs on the existing files.
func (s *Scheduler) updateData() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	ctx := context.Background()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	start := time.Now()
	logging.Info("Starting data update", "run_id", runID, "at", start.Format(time.RFC3339))

	outcome, fetchErr := s.pipeline.Fetch(ctx, runID)
	if fetchErr != nil {
		logging.Error("Release check failed, classifying files on disk", "run_id", runID, "error", fetchErr)
	}
	if fetchErr != nil || outcome != nil {
		s.dataStore.UpdateOutcome(outcome, fetchErr)
	}

	run, err := s.pipeline.Classify(ctx, runID)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	if report := run.Report; report != nil && report.UnknownPrefix > 0 {
		logging.Warn("Institution codes with unknown prefix",
			"run_id", runID,
			"count", report.UnknownPrefix,
		)
	}

	s.dataStore.UpdateData(run.Result, run.RecordCount)

	logging.Info("Data update completed",
		"run_id", runID,
		"duration", time.Since(start).String(),
		"hospitals", run.Result.TotalClassified(),
	)
	return nil
}

// startHealthMonitoring warns hourly when the data has gone stale
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				lastUpdate := s.dataStore.GetLastUpdated()
				if time.Since(lastUpdate) > staleDataWarning {
					logging.Warn("Data hasn't been updated in over 25 hours", "last_update", lastUpdate)
				}
			}
		}
	}()
}
