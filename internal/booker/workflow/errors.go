package workflow

import (
	"errors"
	"fmt"

	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Sentinel causes for the workflow's failure modes. They sit under a
// StageError and can be matched with errors.Is.
var (
	ErrNavigationTimeout    = errors.New("navigation timed out")
	ErrMarketNotFound       = errors.New("market not found")
	ErrOutcomeNotAdded      = errors.New("outcome not added to slip")
	ErrPlacementUnconfirmed = errors.New("placement unconfirmed")
	ErrLoginRequired        = errors.New("login required")
)

// StageError pins a failure to the workflow stage it happened in. Every
// failure leaving the workflow is a StageError; nothing propagates as a raw
// fault.
type StageError struct {
	Stage  models.Stage
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage models.Stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Err: err}
}
