package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser/browsertest"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/site"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/slip"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

const (
	balanceSel   = `span.balance`
	headerSel    = `h1.match`
	countSel     = `span.bet-count`
	clearSel     = `button.clear-all`
	marketSel    = `div.market-match-result`
	stakeSel     = `input.stake`
	multiSel     = `div.tab-multi`
	placeSel     = `button.place`
	confirmSel   = `button.confirm`
	codeSel      = `span.booking-code`
	outcomeByBtn = `//button[normalize-space()='Home Win']`
)

func testProfile() *selectors.Registry {
	return selectors.New("sportybet", map[string]map[string]string{
		"auth": {
			"login_prompt": `a.login`,
		},
		"header": {
			"balance": balanceSel,
		},
		"event": {
			"match_header": headerSel,
			"outcome_row":  `[data-outcome="%s"]`,
		},
		"markets": {
			"Match Result": marketSel,
		},
		"betslip": {
			"item_count":    countSel,
			"clear_all":     clearSel,
			"stake_input":   stakeSel,
			"mode_single":   `div.tab-single`,
			"mode_multiple": multiSel,
			"place_bet":     placeSel,
			"confirm_bet":   confirmSel,
			"booking_code":  codeSel,
		},
	})
}

// happyPage scripts a page where the whole flow succeeds: the outcome click
// grows the slip and confirming the bet reveals the booking code and drops
// the balance.
func happyPage() *browsertest.FakePage {
	page := browsertest.New()
	page.Add(balanceSel, browsertest.Element{Visible: true, Text: "NGN 1,000.00"})
	page.Add(headerSel, browsertest.Element{Visible: true, Text: "Home FC vs Away FC"})
	page.Add(countSel, browsertest.Element{Visible: true, Text: "0"})
	page.Add(marketSel, browsertest.Element{Visible: true, Text: "Match Result"})
	page.Add(outcomeByBtn, browsertest.Element{Visible: true, Text: "Home Win", OnClick: func(p *browsertest.FakePage) {
		p.SetText(countSel, "1")
	}})
	page.Add(clearSel, browsertest.Element{Visible: true, OnClick: func(p *browsertest.FakePage) {
		p.SetText(countSel, "0")
	}})
	page.Add(multiSel, browsertest.Element{Visible: true})
	page.Add(stakeSel, browsertest.Element{Visible: true})
	page.Add(placeSel, browsertest.Element{Visible: true})
	page.Add(confirmSel, browsertest.Element{Visible: true, OnClick: func(p *browsertest.FakePage) {
		p.SetText(balanceSel, "NGN 999.00")
		p.Add(codeSel, browsertest.Element{Visible: true, Text: "BK-12345"})
	}})
	return page
}

type stubIdentity struct {
	loggedIn  bool
	ensureErr error
	ensured   bool
}

func (s *stubIdentity) IsLoggedIn(ctx context.Context) (bool, error) { return s.loggedIn, nil }
func (s *stubIdentity) EnsureLoggedIn(ctx context.Context) error {
	s.ensured = true
	if s.ensureErr != nil {
		return s.ensureErr
	}
	s.loggedIn = true
	return nil
}

func testTask() models.BookingTask {
	return models.BookingTask{
		FixtureID:   "F1",
		MatchURL:    "https://sportybet.example/match/F1",
		MarketName:  "Match Result",
		OutcomeName: "Home Win",
		Stake:       decimal.NewFromInt(1),
	}
}

func newWorkflow(page *browsertest.FakePage, reg *selectors.Registry, identity Identity) (*Workflow, *slip.Controller) {
	g := gate.Gate{Attempts: 2, Interval: time.Millisecond}
	slipCtl := slip.NewController(page, reg, g, 50*time.Millisecond)
	balance := site.NewBalance(page, reg, 50*time.Millisecond)
	cfg := Config{
		Gate:              g,
		NavigationTimeout: 50 * time.Millisecond,
		ActionTimeout:     50 * time.Millisecond,
		PlacementTimeout:  50 * time.Millisecond,
	}
	return New(page, reg, slipCtl, identity, balance, cfg), slipCtl
}

func TestRun_HappyPath(t *testing.T) {
	page := happyPage()
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	code, before, after, err := wf.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code != "BK-12345" {
		t.Errorf("booking code = %q, want BK-12345", code)
	}
	if !before.Decreased(after) {
		t.Errorf("balance did not decrease: before=%s after=%s", before.Amount, after.Amount)
	}
	if got := page.Fills[stakeSel]; got != "1" {
		t.Errorf("stake filled with %q, want 1", got)
	}
	if len(page.Navigations) != 1 || page.Navigations[0] != "https://sportybet.example/match/F1" {
		t.Errorf("navigations = %v, want exactly the match URL", page.Navigations)
	}
	if wf.Stage() != models.StageRecording {
		t.Errorf("final stage = %q, want Recording", wf.Stage())
	}
}

func TestRun_LoginRecoveryRunsOnce(t *testing.T) {
	page := happyPage()
	id := &stubIdentity{loggedIn: false}
	wf, _ := newWorkflow(page, testProfile(), id)

	if _, _, _, err := wf.Run(context.Background(), testTask()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if !id.ensured {
		t.Error("EnsureLoggedIn was never called for a logged-out session")
	}
}

func TestRun_LoginRecoveryFailureIsPreflight(t *testing.T) {
	page := happyPage()
	id := &stubIdentity{loggedIn: false, ensureErr: errors.New("captcha wall")}
	wf, _ := newWorkflow(page, testProfile(), id)

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StagePreflightCheck {
		t.Errorf("stage = %q, want PreflightCheck", se.Stage)
	}
	if !errors.Is(err, ErrLoginRequired) {
		t.Error("error chain does not contain ErrLoginRequired")
	}
}

func TestRun_MarketNotFound(t *testing.T) {
	page := happyPage()
	page.Remove(marketSel) // registry selector dead, no title text on page either
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StageSelectingMarket {
		t.Errorf("stage = %q, want SelectingMarket", se.Stage)
	}
	if !errors.Is(err, ErrMarketNotFound) {
		t.Error("error chain does not contain ErrMarketNotFound")
	}
}

func TestRun_MarketFoundByTitleTextFallback(t *testing.T) {
	page := happyPage()
	page.Remove(marketSel)
	// The free-text fallback locator the workflow builds for this market.
	page.Add(`//*[normalize-space(text())='Match Result']`, browsertest.Element{Visible: true, Text: "Match Result"})
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	code, _, _, err := wf.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if code == "" {
		t.Error("booking code is empty on fallback-matched market")
	}
}

func TestRun_OutcomeClickWithoutSlipGrowthFails(t *testing.T) {
	page := happyPage()
	// The click lands but the slip counter never moves.
	page.Add(outcomeByBtn, browsertest.Element{Visible: true, Text: "Home Win"})
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StageSelectingOutcome {
		t.Errorf("stage = %q, want SelectingOutcome", se.Stage)
	}
	if !strings.Contains(se.Reason, "not added to slip") {
		t.Errorf("reason = %q, want it to contain \"not added to slip\"", se.Reason)
	}
}

func TestRun_NoOutcomeCandidateMatches(t *testing.T) {
	page := happyPage()
	page.Remove(outcomeByBtn)
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StageSelectingOutcome {
		t.Errorf("stage = %q, want SelectingOutcome", se.Stage)
	}
}

func TestRun_BookingCodeWithoutBalanceDropFails(t *testing.T) {
	page := happyPage()
	// Confirm reveals a code but leaves the balance untouched.
	page.Add(confirmSel, browsertest.Element{Visible: true, OnClick: func(p *browsertest.FakePage) {
		p.Add(codeSel, browsertest.Element{Visible: true, Text: "BK-99999"})
	}})
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StageVerifyingPlacement {
		t.Errorf("stage = %q, want VerifyingPlacement", se.Stage)
	}
	if !errors.Is(err, ErrPlacementUnconfirmed) {
		t.Error("error chain does not contain ErrPlacementUnconfirmed")
	}
}

func TestRun_BookingCodeNeverAppears(t *testing.T) {
	page := happyPage()
	page.Add(confirmSel, browsertest.Element{Visible: true}) // no code, no balance change
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	_, _, _, err := wf.Run(context.Background(), testTask())
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("Run error %T, want *StageError", err)
	}
	if se.Stage != models.StageVerifyingPlacement {
		t.Errorf("stage = %q, want VerifyingPlacement", se.Stage)
	}
}

func TestRun_PreflightClearsLeftoverSlip(t *testing.T) {
	page := happyPage()
	page.SetText(countSel, "2") // stale items from a previous session
	wf, _ := newWorkflow(page, testProfile(), &stubIdentity{loggedIn: true})

	if _, _, _, err := wf.Run(context.Background(), testTask()); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	// clear-all must have been clicked before the outcome click.
	clearIdx, outcomeIdx := -1, -1
	for i, c := range page.Clicks {
		switch c {
		case clearSel:
			if clearIdx == -1 {
				clearIdx = i
			}
		case outcomeByBtn:
			outcomeIdx = i
		}
	}
	if clearIdx == -1 {
		t.Fatal("leftover slip was never cleared")
	}
	if outcomeIdx != -1 && clearIdx > outcomeIdx {
		t.Error("slip cleared after outcome selection, want before")
	}
}

func TestRun_CollapsesExpandedWidget(t *testing.T) {
	reg := selectors.New("sportybet", map[string]map[string]string{
		"auth":    {"login_prompt": `a.login`},
		"header":  {"balance": balanceSel},
		"markets": {"Match Result": marketSel},
		"event": {
			"match_header":    headerSel,
			"outcome_row":     `[data-outcome="%s"]`,
			"widget_expanded": `div.tracker-open`,
			"widget_toggle":   `button.tracker-toggle`,
		},
		"betslip": {
			"item_count":    countSel,
			"clear_all":     clearSel,
			"stake_input":   stakeSel,
			"mode_single":   `div.tab-single`,
			"mode_multiple": multiSel,
			"place_bet":     placeSel,
			"confirm_bet":   confirmSel,
			"booking_code":  codeSel,
		},
	})
	page := happyPage()
	page.Add(`div.tracker-open`, browsertest.Element{Visible: true})
	page.Add(`button.tracker-toggle`, browsertest.Element{Visible: true, OnClick: func(p *browsertest.FakePage) {
		p.SetVisible(`div.tracker-open`, false)
	}})
	wf, _ := newWorkflow(page, reg, &stubIdentity{loggedIn: true})

	if _, _, _, err := wf.Run(context.Background(), testTask()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	toggled := false
	for _, c := range page.Clicks {
		if c == `button.tracker-toggle` {
			toggled = true
		}
	}
	if !toggled {
		t.Error("expanded widget was never collapsed")
	}
}
