package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/validation"
)

type taskEntry struct {
	FixtureID string `yaml:"fixture_id"`
	MatchURL  string `yaml:"match_url"`
	Market    string `yaml:"market"`
	Outcome   string `yaml:"outcome"`
	Stake     string `yaml:"stake"`
}

type taskFile struct {
	Tasks []taskEntry `yaml:"tasks"`
}

// LoadTasks reads the booking task list for a batch run. Stakes are kept as
// strings in yaml and parsed into decimals here.
func LoadTasks(path string) ([]models.BookingTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var file taskFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse tasks file: %w", err)
	}

	tasks := make([]models.BookingTask, 0, len(file.Tasks))
	for i, e := range file.Tasks {
		stake, err := decimal.NewFromString(strings.TrimSpace(e.Stake))
		if err != nil {
			return nil, fmt.Errorf("task %d (%s): invalid stake %q: %w", i, e.FixtureID, e.Stake, err)
		}
		task := models.BookingTask{
			FixtureID:   e.FixtureID,
			MatchURL:    e.MatchURL,
			MarketName:  e.Market,
			OutcomeName: e.Outcome,
			Stake:       stake,
		}
		validation.SanitizeTask(&task)
		if err := validation.ValidateTask(&task); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, e.FixtureID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}
