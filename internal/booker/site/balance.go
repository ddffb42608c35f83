package site

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
	"github.com/leobook-1/LeoBook-sub001/internal/pkg/models"
)

const (
	pageHeader = "header"
	keyBalance = "balance"
)

// Balance reads the account balance from the page header.
type Balance struct {
	page    browser.PageActionExecutor
	reg     *selectors.Registry
	timeout time.Duration
}

func NewBalance(page browser.PageActionExecutor, reg *selectors.Registry, timeout time.Duration) *Balance {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Balance{page: page, reg: reg, timeout: timeout}
}

// Snapshot captures the current balance with a timestamp.
func (b *Balance) Snapshot(ctx context.Context) (models.BalanceSnapshot, error) {
	amount, err := b.ExtractBalance(ctx)
	if err != nil {
		return models.BalanceSnapshot{}, err
	}
	return models.BalanceSnapshot{Amount: amount, CapturedAt: time.Now()}, nil
}

// ExtractBalance reads and parses the balance element's text.
func (b *Balance) ExtractBalance(ctx context.Context) (decimal.Decimal, error) {
	expr, err := b.reg.Resolve(pageHeader, keyBalance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extract balance: %w", err)
	}
	if err := b.page.WaitForVisible(ctx, expr, b.timeout); err != nil {
		return decimal.Zero, fmt.Errorf("extract balance: %w", err)
	}
	handles, err := b.page.Locate(ctx, expr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extract balance: %w", err)
	}
	if len(handles) == 0 {
		return decimal.Zero, fmt.Errorf("extract balance: element %q disappeared", expr)
	}
	text, err := b.page.InnerText(ctx, handles[0])
	if err != nil {
		return decimal.Zero, fmt.Errorf("extract balance: %w", err)
	}
	amount, err := parseAmount(text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("extract balance: %w", err)
	}
	return amount, nil
}

// parseAmount strips currency markers and thousands separators from a
// displayed balance like "NGN 1,250.50" or "₦1.250,50".
func parseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no amount in balance text %q", s)
	}

	// Decide which separator is decimal: the right-most one wins, the other
	// is a thousands separator.
	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	if lastComma > lastDot {
		intPart := strings.NewReplacer(".", "", ",", "").Replace(cleaned[:lastComma])
		cleaned = intPart + "." + cleaned[lastComma+1:]
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse balance %q: %w", s, err)
	}
	return amount, nil
}
