package performance

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Tracker collects timing metrics for booking attempts
type Tracker struct {
	mu sync.RWMutex

	// Overall metrics
	TotalAttempts int
	TotalBooked   int

	// Timing metrics
	TotalDuration time.Duration

	// Per-attempt metrics
	AttemptTimings []AttemptTiming

	// Failure counts by the stage the attempt died in
	FailuresByStage map[models.Stage]int
}

// AttemptTiming tracks timing for a single booking attempt
type AttemptTiming struct {
	FixtureID   string
	Duration    time.Duration
	Success     bool
	FailedStage models.Stage
}

var globalTracker = &Tracker{
	AttemptTimings:  make([]AttemptTiming, 0, 100),
	FailuresByStage: make(map[models.Stage]int),
}

// GetTracker returns the global performance tracker
func GetTracker() *Tracker {
	return globalTracker
}

// Reset resets all metrics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalAttempts = 0
	t.TotalBooked = 0
	t.TotalDuration = 0
	t.AttemptTimings = t.AttemptTimings[:0]
	t.FailuresByStage = make(map[models.Stage]int)
}

// RecordAttempt records a completed booking attempt
func (t *Tracker) RecordAttempt(fixtureID string, duration time.Duration, success bool, failedStage models.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.TotalAttempts++
	t.TotalDuration += duration
	if success {
		t.TotalBooked++
	} else {
		t.FailuresByStage[failedStage]++
	}

	t.AttemptTimings = append(t.AttemptTimings, AttemptTiming{
		FixtureID:   fixtureID,
		Duration:    duration,
		Success:     success,
		FailedStage: failedStage,
	})
}

// PrintSummary prints a performance summary for the batch
func (t *Tracker) PrintSummary() {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.TotalAttempts == 0 {
		slog.Info("No booking attempts recorded yet")
		return
	}

	avgDuration := t.TotalDuration / time.Duration(t.TotalAttempts)
	successRate := float64(t.TotalBooked) / float64(t.TotalAttempts) * 100

	slog.Info("Booking performance",
		"attempts", t.TotalAttempts,
		"booked", t.TotalBooked,
		"success_rate", successRate,
		"avg_attempt_time", avgDuration,
		"total_time", t.TotalDuration)

	for stage, n := range t.FailuresByStage {
		slog.Info("Failures at stage", "stage", string(stage), "count", n)
	}

	// Slowest attempts point at sites that need longer timeouts.
	var slowest AttemptTiming
	for _, at := range t.AttemptTimings {
		if at.Duration > slowest.Duration {
			slowest = at
		}
	}
	if slowest.FixtureID != "" {
		slog.Info("Slowest attempt", "fixture", slowest.FixtureID, "duration", slowest.Duration, "success", slowest.Success)
	}
}
