package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/config"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Ensure PostgresAuditSink implements AuditSink
var _ AuditSink = (*PostgresAuditSink)(nil)

// PostgresAuditSink stores attempt results in PostgreSQL and screenshots on
// disk, keeping only the file reference in the row.
type PostgresAuditSink struct {
	db            *sql.DB
	screenshotDir string
}

// NewPostgresAuditSink opens the connection, verifies it and ensures the
// schema exists.
func NewPostgresAuditSink(cfg *config.PostgresConfig, screenshotDir string) (*PostgresAuditSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	sink := &PostgresAuditSink{db: db, screenshotDir: screenshotDir}
	if err := sink.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Info("PostgreSQL audit sink initialized")
	return sink, nil
}

func (s *PostgresAuditSink) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS booking_attempts (
		id UUID PRIMARY KEY,
		fixture_id VARCHAR(200) NOT NULL,
		match_url TEXT NOT NULL,
		market_name VARCHAR(200) NOT NULL,
		outcome_name VARCHAR(200) NOT NULL,
		stake DECIMAL(12, 2) NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		booking_code VARCHAR(100) NOT NULL DEFAULT '',
		balance_before DECIMAL(14, 2),
		balance_after DECIMAL(14, 2),
		failed_stage VARCHAR(50) NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		screenshot_ref TEXT NOT NULL DEFAULT '',
		finished_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_booking_attempts_fixture_id ON booking_attempts(fixture_id);
	CREATE INDEX IF NOT EXISTS idx_booking_attempts_outcome ON booking_attempts(outcome);
	CREATE INDEX IF NOT EXISTS idx_booking_attempts_finished_at ON booking_attempts(finished_at DESC);
	`

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Record writes the screenshot to disk, stamps the result with its reference
// and inserts the attempt row.
func (s *PostgresAuditSink) Record(ctx context.Context, result *models.AttemptResult, screenshot []byte) error {
	if len(screenshot) > 0 {
		ref, err := s.saveScreenshot(result.ID, screenshot)
		if err != nil {
			// Screenshot loss should not lose the attempt row.
			slog.Warn("Failed to save screenshot", "attempt", result.ID, "error", err)
		} else {
			result.ScreenshotRef = ref
		}
	}

	query := `
	INSERT INTO booking_attempts (
		id, fixture_id, match_url, market_name, outcome_name, stake,
		outcome, booking_code, balance_before, balance_after,
		failed_stage, reason, screenshot_ref, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	var before, after sql.NullString
	if !result.BalanceBefore.CapturedAt.IsZero() {
		before = sql.NullString{String: result.BalanceBefore.Amount.String(), Valid: true}
	}
	if !result.BalanceAfter.CapturedAt.IsZero() {
		after = sql.NullString{String: result.BalanceAfter.Amount.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		result.ID,
		result.Task.FixtureID,
		result.Task.MatchURL,
		result.Task.MarketName,
		result.Task.OutcomeName,
		result.Task.Stake.String(),
		string(result.Outcome),
		result.BookingCode,
		before,
		after,
		string(result.FailedStage),
		result.Reason,
		result.ScreenshotRef,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking attempt: %w", err)
	}
	return nil
}

func (s *PostgresAuditSink) saveScreenshot(attemptID string, data []byte) (string, error) {
	if err := os.MkdirAll(s.screenshotDir, 0755); err != nil {
		return "", fmt.Errorf("create screenshot dir: %w", err)
	}
	path := filepath.Join(s.screenshotDir, attemptID+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

func (s *PostgresAuditSink) Close() error {
	return s.db.Close()
}
