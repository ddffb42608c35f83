package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTasks(t *testing.T) {
	path := writeFile(t, "tasks.yaml", `
tasks:
  - fixture_id: "sr:match:1"
    match_url: "https://example.com/m/1"
    market: "  1X2 "
    outcome: "Home  Win"
    stake: "150.25"
`)

	tasks, err := LoadTasks(path)
	if err != nil {
		t.Fatalf("LoadTasks() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(tasks))
	}
	got := tasks[0]
	if got.MarketName != "1X2" {
		t.Errorf("MarketName = %q, want sanitized 1X2", got.MarketName)
	}
	if got.OutcomeName != "Home Win" {
		t.Errorf("OutcomeName = %q, want Home Win", got.OutcomeName)
	}
	if got.Stake.String() != "150.25" {
		t.Errorf("Stake = %s, want 150.25", got.Stake)
	}
}

func TestLoadTasksRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing market", `
tasks:
  - fixture_id: "sr:match:1"
    match_url: "https://example.com/m/1"
    outcome: "Home"
    stake: "10"
`},
		{"zero stake", `
tasks:
  - fixture_id: "sr:match:1"
    match_url: "https://example.com/m/1"
    market: "1X2"
    outcome: "Home"
    stake: "0"
`},
		{"unparseable stake", `
tasks:
  - fixture_id: "sr:match:1"
    match_url: "https://example.com/m/1"
    market: "1X2"
    outcome: "Home"
    stake: "ten"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "tasks.yaml", tt.yaml)
			if _, err := LoadTasks(path); err == nil {
				t.Error("LoadTasks() = nil error, want failure")
			}
		})
	}
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeFile(t, "booker.yaml", `
booker:
  profile_path: "configs/profiles/sportybet.yaml"
logging:
  level: "debug"
`)
	t.Setenv("BOOKER_USERNAME", "env-user")
	t.Setenv("POSTGRES_DSN", "postgres://env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Booker.GateAttempts != 2 {
		t.Errorf("GateAttempts = %d, want default 2", cfg.Booker.GateAttempts)
	}
	if cfg.Booker.GateInterval.Seconds() != 1 {
		t.Errorf("GateInterval = %s, want default 1s", cfg.Booker.GateInterval)
	}
	if cfg.Booker.Username != "env-user" {
		t.Errorf("Username = %q, want env override", cfg.Booker.Username)
	}
	if cfg.Postgres.DSN != "postgres://env" {
		t.Errorf("DSN = %q, want env override", cfg.Postgres.DSN)
	}
}
