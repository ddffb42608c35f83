package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/slip"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/alert"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/performance"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/storage"
)

// cleanupBudget bounds the recovery path. Cleanup must finish even when the
// batch context is already cancelled, so it runs on a detached context with
// its own deadline.
const cleanupBudget = 30 * time.Second

// Runner wraps one workflow run per task and guarantees the recovery
// contract: the slip ends empty after any failure, every failure is reported
// as a structured result, and one task's failure never stops the batch.
type Runner struct {
	wf      *Workflow
	slip    *slip.Controller
	page    browser.PageActionExecutor
	sink    storage.AuditSink
	alerter alert.Alerter
	site    string
}

func NewRunner(wf *Workflow, slipCtl *slip.Controller, page browser.PageActionExecutor, sink storage.AuditSink, alerter alert.Alerter, site string) *Runner {
	if alerter == nil {
		alerter = alert.NopAlerter{}
	}
	return &Runner{wf: wf, slip: slipCtl, page: page, sink: sink, alerter: alerter, site: site}
}

// Execute runs one task to a terminal AttemptResult. It never returns an
// error: failures come back as Failure results after cleanup has run.
func (r *Runner) Execute(ctx context.Context, task models.BookingTask) models.AttemptResult {
	id := uuid.NewString()
	log := slog.With("attempt", id, "fixture", task.FixtureID)
	log.Info("Starting booking attempt", "market", task.MarketName, "outcome", task.OutcomeName, "stake", task.Stake)

	started := time.Now()
	code, before, after, err := r.runProtected(ctx, task)

	var result models.AttemptResult
	if err == nil {
		result = models.NewSuccess(id, task, code, before, after)
		log.Info("Booking placed",
			"booking_code", code,
			"balance_before", before.Amount,
			"balance_after", after.Amount,
		)
	} else {
		stage, reason := r.describe(err)
		result = models.NewFailure(id, task, stage, reason)
		log.Error("Booking attempt failed", "stage", stage, "reason", reason)

		r.alertOnStaleSelector(err, task)
		r.cleanup(ctx, log)
	}

	performance.GetTracker().RecordAttempt(task.FixtureID, time.Since(started), result.Succeeded(), result.FailedStage)
	r.record(ctx, &result, log)
	return result
}

// runProtected converts panics into stage failures so no fault escapes the
// per-task boundary.
func (r *Runner) runProtected(ctx context.Context, task models.BookingTask) (code string, before, after models.BalanceSnapshot, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = stageErr(r.wf.Stage(), fmt.Sprintf("panic: %v", p), nil)
		}
	}()
	return r.wf.Run(ctx, task)
}

func (r *Runner) describe(err error) (models.Stage, string) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, se.Reason
	}
	return r.wf.Stage(), err.Error()
}

// cleanup clears the slip on a detached, time-bounded context. Secondary
// failures are logged, never allowed to mask the primary one.
func (r *Runner) cleanup(ctx context.Context, log *slog.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupBudget)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			log.Warn("Slip cleanup panicked", "panic", p)
		}
	}()
	if err := r.slip.Clear(cctx); err != nil {
		log.Warn("Slip cleanup failed", "error", err)
	}
}

func (r *Runner) alertOnStaleSelector(err error, task models.BookingTask) {
	var nf *selectors.SelectorNotFoundError
	if errors.As(err, &nf) {
		r.alerter.StaleSelector(r.site, nf.Page, nf.Name, task)
	}
}

// record captures a screenshot and hands the result to the audit sink, both
// on a detached context so a cancelled batch still gets its audit trail.
func (r *Runner) record(ctx context.Context, result *models.AttemptResult, log *slog.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupBudget)
	defer cancel()

	shot, err := r.page.Screenshot(cctx)
	if err != nil {
		log.Warn("Screenshot capture failed", "error", err)
	}
	if err := r.sink.Record(cctx, result, shot); err != nil {
		log.Error("Audit sink rejected result", "error", err)
	}
}
