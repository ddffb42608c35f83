// Package workflow drives one booking attempt through the site as an
// explicit state machine: preflight, navigation, widget collapse, market and
// outcome selection, slip management, placement and post-placement
// verification. Every transition is gated on an observable page condition;
// there are no unconditional sleeps anywhere in the flow.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/slip"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Page contexts and selector keys the workflow requires from the site
// profile. Optional keys may be omitted for sites that do not need them.
const (
	pageEvent   = "event"
	pageSearch  = "search"
	pageMarkets = "markets"
	pageBetslip = "betslip"

	keyMatchHeader    = "match_header"
	keyOverlayDismiss = "overlay_dismiss" // optional
	keyWidgetExpanded = "widget_expanded" // optional
	keyWidgetToggle   = "widget_toggle"
	keyMarketBody     = "market_body"   // optional
	keySearchOpen     = "open"          // optional
	keySearchInput    = "input"         // optional
	keySearchSubmit   = "submit"        // optional
	keyOutcomeRow     = "outcome_row"   // template, %s replaced by outcome name
	keyStakeConfirm   = "stake_confirm" // optional
	keyPlaceBet       = "place_bet"
	keyConfirmBet     = "confirm_bet"
	keyBookingCode    = "booking_code"
)

// visibilityProbe bounds the short waits used to decide between two page
// layouts (collapsed vs expanded, candidate visible or not).
const visibilityProbe = 2 * time.Second

// Identity restores the session's login state; invoked once per task during
// preflight.
type Identity interface {
	IsLoggedIn(ctx context.Context) (bool, error)
	EnsureLoggedIn(ctx context.Context) error
}

// BalanceSource captures account balance snapshots, twice per task.
type BalanceSource interface {
	Snapshot(ctx context.Context) (models.BalanceSnapshot, error)
}

// Config carries the per-site tunables of the state machine.
type Config struct {
	Gate              gate.Gate
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	PlacementTimeout  time.Duration
}

// Workflow executes one BookingTask at a time against a single browser
// session. It is not safe for concurrent use; slip state and balance
// snapshots are session-global and order-sensitive.
type Workflow struct {
	page     browser.PageActionExecutor
	reg      *selectors.Registry
	slip     *slip.Controller
	identity Identity
	balance  BalanceSource
	cfg      Config

	stage models.Stage
}

func New(page browser.PageActionExecutor, reg *selectors.Registry, slipCtl *slip.Controller, identity Identity, balance BalanceSource, cfg Config) *Workflow {
	if cfg.Gate.Attempts == 0 {
		cfg.Gate = gate.Default()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}
	if cfg.PlacementTimeout <= 0 {
		cfg.PlacementTimeout = 20 * time.Second
	}
	return &Workflow{page: page, reg: reg, slip: slipCtl, identity: identity, balance: balance, cfg: cfg}
}

// Stage reports the stage the workflow is currently in (or died in).
func (w *Workflow) Stage() models.Stage {
	return w.stage
}

// Run executes all stages for one task. On success it returns the extracted
// booking code and both balance snapshots; on failure the error is always a
// *StageError naming the stage that failed. No stage retries across stage
// boundaries.
func (w *Workflow) Run(ctx context.Context, task models.BookingTask) (string, models.BalanceSnapshot, models.BalanceSnapshot, error) {
	var zero models.BalanceSnapshot

	before, err := w.preflight(ctx)
	if err != nil {
		return "", zero, zero, err
	}
	if err := w.navigate(ctx, task); err != nil {
		return "", zero, zero, err
	}
	if err := w.collapseWidgets(ctx); err != nil {
		return "", zero, zero, err
	}
	if err := w.selectMarket(ctx, task); err != nil {
		return "", zero, zero, err
	}
	if err := w.selectOutcome(ctx, task); err != nil {
		return "", zero, zero, err
	}
	if err := w.manageSlip(ctx, task); err != nil {
		return "", zero, zero, err
	}
	if err := w.place(ctx); err != nil {
		return "", zero, zero, err
	}
	code, after, err := w.verifyPlacement(ctx, before)
	if err != nil {
		return "", zero, zero, err
	}

	w.stage = models.StageRecording
	return code, before, after, nil
}

// preflight restores login state if needed, captures the starting balance
// and forces the slip empty, whatever left items on it.
func (w *Workflow) preflight(ctx context.Context) (models.BalanceSnapshot, error) {
	w.stage = models.StagePreflightCheck
	var zero models.BalanceSnapshot

	loggedIn, err := w.identity.IsLoggedIn(ctx)
	if err != nil {
		return zero, stageErr(w.stage, "login state check failed", err)
	}
	if !loggedIn {
		slog.Info("Not logged in, attempting login recovery")
		if err := w.identity.EnsureLoggedIn(ctx); err != nil {
			return zero, stageErr(w.stage, "login recovery failed", fmt.Errorf("%w: %w", ErrLoginRequired, err))
		}
	}

	before, err := w.balance.Snapshot(ctx)
	if err != nil {
		return zero, stageErr(w.stage, "could not capture starting balance", err)
	}

	if err := w.slip.Clear(ctx); err != nil {
		return zero, stageErr(w.stage, "could not force slip empty", err)
	}
	return before, nil
}

func (w *Workflow) navigate(ctx context.Context, task models.BookingTask) error {
	w.stage = models.StageNavigating

	if err := w.page.Goto(ctx, task.MatchURL, browser.WaitLoad, w.cfg.NavigationTimeout); err != nil {
		return stageErr(w.stage, "match page load failed", fmt.Errorf("%w: %w", ErrNavigationTimeout, err))
	}

	headerExpr, err := w.reg.Resolve(pageEvent, keyMatchHeader)
	if err != nil {
		return stageErr(w.stage, "match header selector missing", err)
	}
	if err := w.page.WaitForVisible(ctx, headerExpr, w.cfg.NavigationTimeout); err != nil {
		return stageErr(w.stage, "match page header never appeared", fmt.Errorf("%w: %w", ErrNavigationTimeout, err))
	}

	w.dismissOverlays(ctx)
	return nil
}

// dismissOverlays clicks away any promo popups or cookie banners the profile
// knows about. Best effort: absence is normal, failures only get logged.
func (w *Workflow) dismissOverlays(ctx context.Context) {
	expr, ok := selectors.Optional(w.reg, pageEvent, keyOverlayDismiss)
	if !ok {
		return
	}
	handles, err := w.page.Locate(ctx, expr)
	if err != nil {
		slog.Debug("Overlay lookup failed", "error", err)
		return
	}
	for _, h := range handles {
		if err := w.page.Click(ctx, h); err != nil {
			slog.Debug("Overlay dismiss click failed", "element", h.Description(), "error", err)
		}
	}
}

// collapseWidgets folds away an interfering widget (live trackers, stats
// panes) when the profile registers an expanded-state indicator and it is
// present. Skipped silently when absent.
func (w *Workflow) collapseWidgets(ctx context.Context) error {
	w.stage = models.StageCollapsingWidgets

	expandedExpr, ok := selectors.Optional(w.reg, pageEvent, keyWidgetExpanded)
	if !ok {
		return nil
	}
	handles, err := w.page.Locate(ctx, expandedExpr)
	if err != nil || len(handles) == 0 {
		return nil
	}

	toggleExpr, err := w.reg.Resolve(pageEvent, keyWidgetToggle)
	if err != nil {
		return stageErr(w.stage, "widget toggle selector missing", err)
	}
	toggles, err := w.page.Locate(ctx, toggleExpr)
	if err != nil {
		return stageErr(w.stage, "widget toggle lookup failed", err)
	}
	if len(toggles) == 0 {
		return stageErr(w.stage, "widget expanded but toggle control not present", nil)
	}
	if err := w.page.Click(ctx, toggles[0]); err != nil {
		return stageErr(w.stage, "widget collapse click failed", err)
	}
	if err := w.page.WaitForHidden(ctx, expandedExpr, w.cfg.ActionTimeout); err != nil {
		return stageErr(w.stage, "widget did not collapse", err)
	}
	return nil
}

// selectMarket brings the requested market on screen. Resolution order is
// deterministic: the profile's market selector first, then a logged
// free-text title match as the explicit fallback.
func (w *Workflow) selectMarket(ctx context.Context, task models.BookingTask) error {
	w.stage = models.StageSelectingMarket

	if err := w.searchForMarket(ctx, task.MarketName); err != nil {
		return err
	}

	titleExpr, found := "", false
	if expr, err := w.reg.ResolveAuto(pageMarkets, task.MarketName); err == nil {
		if handles, lerr := w.page.Locate(ctx, expr); lerr == nil && len(handles) > 0 {
			titleExpr, found = expr, true
		}
	}
	if !found {
		// Explicit last-resort: match the market by its rendered title text.
		fallback := `//*[normalize-space(text())=` + xpathLiteral(task.MarketName) + `]`
		slog.Warn("Market selector missing or not matching, trying title text",
			"market", task.MarketName, "fallback", fallback)
		handles, err := w.page.Locate(ctx, fallback)
		if err != nil || len(handles) == 0 {
			return stageErr(w.stage, fmt.Sprintf("market %q not found", task.MarketName), ErrMarketNotFound)
		}
		titleExpr = fallback
	}

	return w.expandMarketIfCollapsed(ctx, titleExpr)
}

// searchForMarket uses the site's market search when the profile registers
// one. Sites without a search affordance render all markets inline.
func (w *Workflow) searchForMarket(ctx context.Context, marketName string) error {
	inputExpr, ok := selectors.Optional(w.reg, pageSearch, keySearchInput)
	if !ok {
		return nil
	}

	if openExpr, ok := selectors.Optional(w.reg, pageSearch, keySearchOpen); ok {
		if handles, err := w.page.Locate(ctx, openExpr); err == nil && len(handles) > 0 {
			if err := w.page.Click(ctx, handles[0]); err != nil {
				return stageErr(w.stage, "could not open market search", err)
			}
		}
	}

	if err := w.page.WaitForVisible(ctx, inputExpr, w.cfg.ActionTimeout); err != nil {
		return stageErr(w.stage, "market search input never appeared", err)
	}
	inputs, err := w.page.Locate(ctx, inputExpr)
	if err != nil || len(inputs) == 0 {
		return stageErr(w.stage, "market search input disappeared", err)
	}
	if err := w.page.Fill(ctx, inputs[0], marketName); err != nil {
		return stageErr(w.stage, "could not type market name", err)
	}

	if submitExpr, ok := selectors.Optional(w.reg, pageSearch, keySearchSubmit); ok {
		if handles, err := w.page.Locate(ctx, submitExpr); err == nil && len(handles) > 0 {
			if err := w.page.Click(ctx, handles[0]); err != nil {
				return stageErr(w.stage, "market search submit failed", err)
			}
		}
	} else if err := w.page.PressKey(ctx, inputs[0], "\r"); err != nil {
		return stageErr(w.stage, "market search submit failed", err)
	}

	if err := w.page.WaitForNetworkIdle(ctx, w.cfg.NavigationTimeout); err != nil {
		return stageErr(w.stage, "market search results never settled", err)
	}
	return nil
}

// expandMarketIfCollapsed clicks the market title when the body is not
// rendered, then waits for the network to settle instead of sleeping.
func (w *Workflow) expandMarketIfCollapsed(ctx context.Context, titleExpr string) error {
	bodyExpr, ok := selectors.Optional(w.reg, pageEvent, keyMarketBody)
	if !ok {
		return nil
	}
	if err := w.page.WaitForVisible(ctx, bodyExpr, visibilityProbe); err == nil {
		return nil
	}

	slog.Debug("Market rendered collapsed, expanding", "title", titleExpr)
	handles, err := w.page.Locate(ctx, titleExpr)
	if err != nil || len(handles) == 0 {
		return stageErr(w.stage, "market title disappeared before expanding", err)
	}
	if err := w.page.Click(ctx, handles[0]); err != nil {
		return stageErr(w.stage, "market expand click failed", err)
	}
	if err := w.page.WaitForNetworkIdle(ctx, w.cfg.ActionTimeout); err != nil {
		return stageErr(w.stage, "market body never settled after expanding", err)
	}
	return nil
}

// outcomeCandidate is one ranked strategy for locating the outcome control.
type outcomeCandidate struct {
	strategy string
	expr     string
}

// selectOutcome clicks the requested outcome, then runs the mandatory
// slip-count gate: the click only counts if the slip grew. This check is
// never advisory.
func (w *Workflow) selectOutcome(ctx context.Context, task models.BookingTask) error {
	w.stage = models.StageSelectingOutcome

	countBefore, err := w.slip.Count(ctx)
	if err != nil {
		return stageErr(w.stage, "could not read slip count", err)
	}

	rowTemplate, err := w.reg.Resolve(pageEvent, keyOutcomeRow)
	if err != nil {
		return stageErr(w.stage, "outcome row selector missing", err)
	}

	rowExpr := rowTemplate
	if strings.Contains(rowTemplate, "%s") {
		rowExpr = fmt.Sprintf(rowTemplate, task.OutcomeName)
	}
	lit := xpathLiteral(task.OutcomeName)
	candidates := []outcomeCandidate{
		{"button role", `//button[normalize-space()=` + lit + `]`},
		{"outcome container", `//*[contains(@class,'outcome')][normalize-space()=` + lit + `]`},
		{"aria label", `//*[@aria-label=` + lit + `]`},
		{"registry row", rowExpr},
	}

	clicked := false
	for _, cand := range candidates {
		handles, err := w.page.Locate(ctx, cand.expr)
		if err != nil || len(handles) == 0 {
			slog.Debug("Outcome candidate not present", "strategy", cand.strategy)
			continue
		}
		if err := w.page.WaitForVisible(ctx, cand.expr, visibilityProbe); err != nil {
			slog.Debug("Outcome candidate not visible", "strategy", cand.strategy)
			continue
		}
		if err := w.page.Click(ctx, handles[0]); err != nil {
			slog.Debug("Outcome candidate click failed", "strategy", cand.strategy, "error", err)
			continue
		}
		slog.Info("Outcome clicked", "outcome", task.OutcomeName, "strategy", cand.strategy)
		clicked = true
		break
	}
	if !clicked {
		return stageErr(w.stage, fmt.Sprintf("no control matched outcome %q", task.OutcomeName), ErrOutcomeNotAdded)
	}

	added := w.cfg.Gate.Await(ctx, "slip count increased", func(ctx context.Context) (bool, error) {
		n, err := w.slip.Count(ctx)
		return n > countBefore, err
	})
	if !added {
		return stageErr(w.stage, "outcome not added to slip", ErrOutcomeNotAdded)
	}
	return nil
}

func (w *Workflow) manageSlip(ctx context.Context, task models.BookingTask) error {
	w.stage = models.StageManagingSlip

	if err := w.slip.Open(ctx); err != nil {
		return stageErr(w.stage, "could not open slip", err)
	}
	if err := w.slip.SelectMode(ctx, models.SlipModeMultiple); err != nil {
		return stageErr(w.stage, "could not switch slip to multiple mode", err)
	}
	if err := w.slip.SetStake(ctx, task.Stake); err != nil {
		return stageErr(w.stage, "could not set stake", err)
	}
	if confirmExpr, ok := selectors.Optional(w.reg, pageBetslip, keyStakeConfirm); ok {
		if handles, err := w.page.Locate(ctx, confirmExpr); err == nil && len(handles) > 0 {
			if err := w.page.Click(ctx, handles[0]); err != nil {
				return stageErr(w.stage, "stake confirmation failed", err)
			}
		}
	}
	return nil
}

func (w *Workflow) place(ctx context.Context) error {
	w.stage = models.StagePlacing

	if err := w.clickRequired(ctx, pageBetslip, keyPlaceBet); err != nil {
		return stageErr(w.stage, "place bet click failed", err)
	}
	if err := w.clickRequired(ctx, pageBetslip, keyConfirmBet); err != nil {
		return stageErr(w.stage, "confirm bet click failed", err)
	}
	return nil
}

// verifyPlacement extracts the booking code and enforces the balance
// invariant. A booking code alone is not proof of placement: the balance
// must have strictly decreased.
func (w *Workflow) verifyPlacement(ctx context.Context, before models.BalanceSnapshot) (string, models.BalanceSnapshot, error) {
	w.stage = models.StageVerifyingPlacement
	var zero models.BalanceSnapshot

	codeExpr, err := w.reg.Resolve(pageBetslip, keyBookingCode)
	if err != nil {
		return "", zero, stageErr(w.stage, "booking code selector missing", err)
	}
	if err := w.page.WaitForVisible(ctx, codeExpr, w.cfg.PlacementTimeout); err != nil {
		return "", zero, stageErr(w.stage, "booking code never appeared", fmt.Errorf("%w: %w", ErrPlacementUnconfirmed, err))
	}
	handles, err := w.page.Locate(ctx, codeExpr)
	if err != nil || len(handles) == 0 {
		return "", zero, stageErr(w.stage, "booking code element disappeared", ErrPlacementUnconfirmed)
	}
	code, err := w.page.InnerText(ctx, handles[0])
	if err != nil {
		return "", zero, stageErr(w.stage, "booking code extraction failed", err)
	}
	if code == "" {
		return "", zero, stageErr(w.stage, "booking code element was empty", ErrPlacementUnconfirmed)
	}

	after, err := w.balance.Snapshot(ctx)
	if err != nil {
		return "", zero, stageErr(w.stage, "could not capture closing balance", err)
	}
	if !before.Decreased(after) {
		return "", zero, stageErr(w.stage, "balance unchanged, placement unconfirmed", ErrPlacementUnconfirmed)
	}
	return code, after, nil
}

func (w *Workflow) clickRequired(ctx context.Context, page, key string) error {
	expr, err := w.reg.Resolve(page, key)
	if err != nil {
		return err
	}
	if err := w.page.WaitForVisible(ctx, expr, w.cfg.ActionTimeout); err != nil {
		return err
	}
	handles, err := w.page.Locate(ctx, expr)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, expr)
	}
	return w.page.Click(ctx, handles[0])
}
