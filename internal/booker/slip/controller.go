// Package slip owns the betting-slip state of one session. All slip
// mutations go through the Controller; nothing else touches slip selectors.
package slip

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

// Selector keys the controller requires in the "betslip" context.
const (
	keyItemCount    = "item_count"
	keyOpen         = "open"
	keyClearAll     = "clear_all"
	keyClearConfirm = "clear_confirm" // optional confirmation dialog
	keyStakeInput   = "stake_input"
	keyModeSingle   = "mode_single"
	keyModeMultiple = "mode_multiple"
)

const pageBetslip = "betslip"

// Controller tracks and mutates the slip of one browser session.
type Controller struct {
	page    browser.PageActionExecutor
	reg     *selectors.Registry
	gate    gate.Gate
	timeout time.Duration

	state models.SlipState
}

func NewController(page browser.PageActionExecutor, reg *selectors.Registry, g gate.Gate, actionTimeout time.Duration) *Controller {
	if actionTimeout <= 0 {
		actionTimeout = 10 * time.Second
	}
	return &Controller{page: page, reg: reg, gate: g, timeout: actionTimeout}
}

// State returns the last observed slip state.
func (c *Controller) State() models.SlipState {
	return c.state
}

// Count reads the slip item counter. A missing or hidden counter element
// means an empty slip, not an error; a missing selector key is still a
// configuration error.
func (c *Controller) Count(ctx context.Context) (int, error) {
	expr, err := c.reg.Resolve(pageBetslip, keyItemCount)
	if err != nil {
		return 0, fmt.Errorf("slip count: %w", err)
	}
	handles, err := c.page.Locate(ctx, expr)
	if err != nil {
		return 0, fmt.Errorf("slip count: %w", err)
	}
	if len(handles) == 0 {
		c.state.ItemCount = 0
		return 0, nil
	}
	text, err := c.page.InnerText(ctx, handles[0])
	if err != nil {
		return 0, fmt.Errorf("slip count: %w", err)
	}
	n := parseCount(text)
	c.state.ItemCount = n
	return n, nil
}

// Open brings up the slip panel if the profile registers an affordance for
// it. Sites that keep the slip always visible simply omit the key.
func (c *Controller) Open(ctx context.Context) error {
	expr, ok := selectors.Optional(c.reg, pageBetslip, keyOpen)
	if !ok {
		return nil
	}
	handles, err := c.page.Locate(ctx, expr)
	if err != nil || len(handles) == 0 {
		return nil // already open or not present on this layout
	}
	if err := c.page.Click(ctx, handles[0]); err != nil {
		return fmt.Errorf("open slip: %w", err)
	}
	return nil
}

// Clear empties the slip. It is idempotent: on an already-empty slip it does
// nothing and returns nil. After clicking the clear control it verifies the
// count actually dropped to zero.
func (c *Controller) Clear(ctx context.Context) error {
	n, err := c.Count(ctx)
	if err != nil {
		return fmt.Errorf("clear slip: %w", err)
	}
	if n == 0 {
		return nil
	}
	slog.Info("Clearing slip", "items", n)

	if err := c.Open(ctx); err != nil {
		return fmt.Errorf("clear slip: %w", err)
	}

	expr, err := c.reg.Resolve(pageBetslip, keyClearAll)
	if err != nil {
		return fmt.Errorf("clear slip: %w", err)
	}
	handles, err := c.page.Locate(ctx, expr)
	if err != nil {
		return fmt.Errorf("clear slip: %w", err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("clear slip: control %q not present with %d items on slip", expr, n)
	}
	if err := c.page.Click(ctx, handles[0]); err != nil {
		return fmt.Errorf("clear slip: %w", err)
	}

	// Some sites pop a confirmation dialog.
	if confirmExpr, ok := selectors.Optional(c.reg, pageBetslip, keyClearConfirm); ok {
		if confirmHandles, err := c.page.Locate(ctx, confirmExpr); err == nil && len(confirmHandles) > 0 {
			if err := c.page.Click(ctx, confirmHandles[0]); err != nil {
				slog.Warn("Slip clear confirmation click failed", "error", err)
			}
		}
	}

	emptied := c.gate.Await(ctx, "slip empty", func(ctx context.Context) (bool, error) {
		n, err := c.Count(ctx)
		return n == 0, err
	})
	if !emptied {
		return fmt.Errorf("clear slip: slip still reports items after clear")
	}
	return nil
}

// SetStake types the stake into the slip's stake input.
func (c *Controller) SetStake(ctx context.Context, amount decimal.Decimal) error {
	expr, err := c.reg.Resolve(pageBetslip, keyStakeInput)
	if err != nil {
		return fmt.Errorf("set stake: %w", err)
	}
	if err := c.page.WaitForVisible(ctx, expr, c.timeout); err != nil {
		return fmt.Errorf("set stake: %w", err)
	}
	handles, err := c.page.Locate(ctx, expr)
	if err != nil {
		return fmt.Errorf("set stake: %w", err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("set stake: input %q disappeared", expr)
	}
	if err := c.page.Fill(ctx, handles[0], amount.String()); err != nil {
		return fmt.Errorf("set stake: %w", err)
	}
	c.state.Stake = amount
	return nil
}

// SelectMode switches the slip between single and multiple mode.
func (c *Controller) SelectMode(ctx context.Context, mode models.SlipMode) error {
	key := keyModeSingle
	if mode == models.SlipModeMultiple {
		key = keyModeMultiple
	}
	expr, err := c.reg.Resolve(pageBetslip, key)
	if err != nil {
		return fmt.Errorf("select mode %s: %w", mode, err)
	}
	if err := c.page.WaitForVisible(ctx, expr, c.timeout); err != nil {
		return fmt.Errorf("select mode %s: %w", mode, err)
	}
	handles, err := c.page.Locate(ctx, expr)
	if err != nil {
		return fmt.Errorf("select mode %s: %w", mode, err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("select mode %s: tab %q disappeared", mode, expr)
	}
	if err := c.page.Click(ctx, handles[0]); err != nil {
		return fmt.Errorf("select mode %s: %w", mode, err)
	}
	c.state.Mode = mode
	return nil
}

// parseCount pulls the first run of digits out of the counter text, so both
// "3" and "3 selections" read as 3. No digits reads as empty.
func parseCount(s string) int {
	s = strings.TrimSpace(s)
	n, found := 0, false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			found = true
			continue
		}
		if found {
			break
		}
	}
	if !found {
		return 0
	}
	return n
}
