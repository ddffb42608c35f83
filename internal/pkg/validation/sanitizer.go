package validation

import (
	"regexp"
	"strings"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

var innerSpaces = regexp.MustCompile(`\s+`)

// SanitizeTask normalizes the free-text fields of a booking task. Market and
// outcome names come from spreadsheets and picker UIs, so stray whitespace is
// common and would break exact-text matching against the site.
func SanitizeTask(task *models.BookingTask) {
	if task == nil {
		return
	}
	task.FixtureID = strings.TrimSpace(task.FixtureID)
	task.MatchURL = strings.TrimSpace(task.MatchURL)
	task.MarketName = sanitizeName(task.MarketName)
	task.OutcomeName = sanitizeName(task.OutcomeName)
}

func sanitizeName(s string) string {
	return innerSpaces.ReplaceAllString(strings.TrimSpace(s), " ")
}
