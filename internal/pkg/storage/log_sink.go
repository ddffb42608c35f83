package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

var _ AuditSink = (*LogAuditSink)(nil)

// LogAuditSink writes results to the structured log and screenshots to disk.
// Used when no Postgres DSN is configured.
type LogAuditSink struct {
	screenshotDir string
}

func NewLogAuditSink(screenshotDir string) *LogAuditSink {
	return &LogAuditSink{screenshotDir: screenshotDir}
}

func (s *LogAuditSink) Record(ctx context.Context, result *models.AttemptResult, screenshot []byte) error {
	if len(screenshot) > 0 {
		if err := os.MkdirAll(s.screenshotDir, 0755); err == nil {
			path := filepath.Join(s.screenshotDir, result.ID+".png")
			if err := os.WriteFile(path, screenshot, 0644); err == nil {
				result.ScreenshotRef = path
			}
		}
	}

	if result.Succeeded() {
		slog.Info("Attempt recorded",
			"attempt", result.ID,
			"fixture", result.Task.FixtureID,
			"booking_code", result.BookingCode,
			"balance_before", result.BalanceBefore.Amount,
			"balance_after", result.BalanceAfter.Amount,
			"screenshot", result.ScreenshotRef,
		)
	} else {
		slog.Info("Attempt recorded",
			"attempt", result.ID,
			"fixture", result.Task.FixtureID,
			"failed_stage", result.FailedStage,
			"reason", result.Reason,
			"screenshot", result.ScreenshotRef,
		)
	}
	return nil
}

func (s *LogAuditSink) Close() error { return nil }
