package workflow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Batch runs a list of booking tasks sequentially against one session,
// paced by a rate limiter. A failed task never aborts the batch; a cancelled
// context stops after the in-flight task's cleanup has run.
type Batch struct {
	runner  *Runner
	limiter *rate.Limiter
}

func NewBatch(runner *Runner, taskInterval time.Duration) *Batch {
	if taskInterval <= 0 {
		taskInterval = 5 * time.Second
	}
	return &Batch{
		runner:  runner,
		limiter: rate.NewLimiter(rate.Every(taskInterval), 1),
	}
}

// Run executes every task in order and returns one result per started task.
func (b *Batch) Run(ctx context.Context, tasks []models.BookingTask) []models.AttemptResult {
	results := make([]models.AttemptResult, 0, len(tasks))
	for i, task := range tasks {
		if err := b.limiter.Wait(ctx); err != nil {
			slog.Info("Batch cancelled", "completed", i, "remaining", len(tasks)-i)
			break
		}
		results = append(results, b.runner.Execute(ctx, task))
	}

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	slog.Info("Batch finished", "tasks", len(results), "succeeded", succeeded, "failed", len(results)-succeeded)
	return results
}
