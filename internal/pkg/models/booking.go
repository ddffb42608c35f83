package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage identifies a step of the booking flow. For failed attempts it
// records where the attempt died.
type Stage string

const (
	StagePreflightCheck     Stage = "PreflightCheck"
	StageNavigating         Stage = "Navigating"
	StageCollapsingWidgets  Stage = "CollapsingWidgets"
	StageSelectingMarket    Stage = "SelectingMarket"
	StageSelectingOutcome   Stage = "SelectingOutcome"
	StageManagingSlip       Stage = "ManagingSlip"
	StagePlacing            Stage = "Placing"
	StageVerifyingPlacement Stage = "VerifyingPlacement"
	StageRecording          Stage = "Recording"
)

// SlipMode is the betslip combination mode.
type SlipMode string

const (
	SlipModeSingle   SlipMode = "single"
	SlipModeMultiple SlipMode = "multiple"
)

// BookingTask describes one accumulator leg to book: which fixture, which
// market on its event page, which outcome, and the stake. Tasks are
// immutable; one task yields exactly one AttemptResult.
type BookingTask struct {
	FixtureID   string
	MatchURL    string
	MarketName  string
	OutcomeName string
	Stake       decimal.Decimal
}

// SlipState is the controller view of the betslip. It is owned by a single
// session and mutated only through the slip controller.
type SlipState struct {
	ItemCount int
	Mode      SlipMode
	Stake     decimal.Decimal
}

// BalanceSnapshot captures the account balance at a point in time.
// A successful placement must strictly decrease the balance.
type BalanceSnapshot struct {
	Amount     decimal.Decimal
	CapturedAt time.Time
}

// Decreased reports whether other is strictly below this snapshot.
func (b BalanceSnapshot) Decreased(other BalanceSnapshot) bool {
	return other.Amount.LessThan(b.Amount)
}

// AttemptOutcome discriminates the two terminal states of an attempt.
type AttemptOutcome string

const (
	AttemptSucceeded AttemptOutcome = "success"
	AttemptFailed    AttemptOutcome = "failure"
)

// AttemptResult is the single record produced per BookingTask. Success
// carries the extracted booking code and both balance snapshots; failure
// carries the stage it died in and a reason.
type AttemptResult struct {
	ID            string
	Task          BookingTask
	Outcome       AttemptOutcome
	BookingCode   string
	BalanceBefore BalanceSnapshot
	BalanceAfter  BalanceSnapshot
	FailedStage   Stage
	Reason        string
	ScreenshotRef string
	FinishedAt    time.Time
}

// Succeeded reports whether the attempt reached Recording.
func (r AttemptResult) Succeeded() bool {
	return r.Outcome == AttemptSucceeded
}

// NewSuccess builds the success result for a task.
func NewSuccess(id string, task BookingTask, code string, before, after BalanceSnapshot) AttemptResult {
	return AttemptResult{
		ID:            id,
		Task:          task,
		Outcome:       AttemptSucceeded,
		BookingCode:   code,
		BalanceBefore: before,
		BalanceAfter:  after,
		FinishedAt:    time.Now(),
	}
}

// NewFailure builds the failure result for a task.
func NewFailure(id string, task BookingTask, stage Stage, reason string) AttemptResult {
	return AttemptResult{
		ID:          id,
		Task:        task,
		Outcome:     AttemptFailed,
		FailedStage: stage,
		Reason:      reason,
		FinishedAt:  time.Now(),
	}
}
