package validation

import (
	"fmt"
	"net/url"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// ValidateTask checks that a booking task is complete enough to attempt.
// Called after SanitizeTask; a task that fails here never reaches the
// browser.
func ValidateTask(task *models.BookingTask) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	if task.FixtureID == "" {
		return fmt.Errorf("fixture ID cannot be empty")
	}

	if task.MatchURL == "" {
		return fmt.Errorf("match URL cannot be empty")
	}
	u, err := url.Parse(task.MatchURL)
	if err != nil {
		return fmt.Errorf("invalid match URL %q: %w", task.MatchURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("match URL %q must be http or https", task.MatchURL)
	}

	if task.MarketName == "" {
		return fmt.Errorf("market name cannot be empty")
	}

	if task.OutcomeName == "" {
		return fmt.Errorf("outcome name cannot be empty")
	}

	if !task.Stake.IsPositive() {
		return fmt.Errorf("stake must be positive, got %s", task.Stake)
	}

	return nil
}
