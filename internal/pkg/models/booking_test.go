package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func snap(amount string) BalanceSnapshot {
	return BalanceSnapshot{Amount: decimal.RequireFromString(amount), CapturedAt: time.Now()}
}

func TestBalanceSnapshot_Decreased(t *testing.T) {
	tests := []struct {
		before string
		after  string
		want   bool
	}{
		{"100.00", "99.00", true},
		{"100.00", "100.00", false},
		{"100.00", "100.50", false},
		{"0.50", "0.49", true},
	}
	for _, tt := range tests {
		if got := snap(tt.before).Decreased(snap(tt.after)); got != tt.want {
			t.Errorf("Decreased(%s -> %s) = %v, want %v", tt.before, tt.after, got, tt.want)
		}
	}
}

func TestNewFailure_CarriesStageAndReason(t *testing.T) {
	task := BookingTask{FixtureID: "F1", MarketName: "Match Result"}
	res := NewFailure("id-1", task, StageSelectingOutcome, "outcome not added to slip")

	if res.Succeeded() {
		t.Fatal("failure result reports Succeeded() = true")
	}
	if res.FailedStage != StageSelectingOutcome {
		t.Errorf("FailedStage = %q, want %q", res.FailedStage, StageSelectingOutcome)
	}
	if res.Task.FixtureID != "F1" {
		t.Errorf("Task.FixtureID = %q, want F1", res.Task.FixtureID)
	}
}

func TestNewSuccess_CarriesBalances(t *testing.T) {
	before, after := snap("250.00"), snap("240.00")
	res := NewSuccess("id-2", BookingTask{FixtureID: "F2"}, "BK123", before, after)

	if !res.Succeeded() {
		t.Fatal("success result reports Succeeded() = false")
	}
	if res.BookingCode != "BK123" {
		t.Errorf("BookingCode = %q, want BK123", res.BookingCode)
	}
	if !res.BalanceBefore.Decreased(res.BalanceAfter) {
		t.Error("expected BalanceAfter below BalanceBefore")
	}
}
