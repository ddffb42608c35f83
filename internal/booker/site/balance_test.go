package site

import (
	"context"
	"testing"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser/browsertest"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1250.50", "1250.5"},
		{"NGN 1,250.50", "1250.5"},
		{"₦1.250,50", "1250.5"},
		{"Balance: 300", "300"},
		{" 0.01 ", "0.01"},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if err != nil {
			t.Errorf("parseAmount(%q) error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseAmount_NoDigits(t *testing.T) {
	if _, err := parseAmount("Balance"); err == nil {
		t.Error("parseAmount(\"Balance\") returned nil error")
	}
}

func TestExtractBalance(t *testing.T) {
	page := browsertest.New()
	page.Add(`span.balance`, browsertest.Element{Visible: true, Text: "NGN 2,500.00"})
	reg := selectors.New("sportybet", map[string]map[string]string{
		"header": {"balance": `span.balance`},
	})

	b := NewBalance(page, reg, 50*time.Millisecond)
	snap, err := b.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if snap.Amount.String() != "2500" {
		t.Errorf("Amount = %s, want 2500", snap.Amount)
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt is zero")
	}
}

func TestExtractBalance_MissingSelectorIsConfigError(t *testing.T) {
	b := NewBalance(browsertest.New(), selectors.New("sportybet", map[string]map[string]string{}), 50*time.Millisecond)
	if _, err := b.ExtractBalance(context.Background()); err == nil {
		t.Error("ExtractBalance with unregistered selector returned nil error")
	}
}
