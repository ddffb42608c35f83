package site

import (
	"context"
	"testing"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser/browsertest"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
)

const (
	promptSel = `a.login-prompt`
	userSel   = `input.username`
	passSel   = `input.password`
	submitSel = `button.login-submit`
)

func authRegistry() *selectors.Registry {
	return selectors.New("sportybet", map[string]map[string]string{
		"auth": {
			"login_prompt":   promptSel,
			"username_input": userSel,
			"password_input": passSel,
			"submit":         submitSel,
		},
	})
}

func newIdentity(page *browsertest.FakePage) *Identity {
	g := gate.Gate{Attempts: 2, Interval: time.Millisecond}
	return NewIdentity(page, authRegistry(), g, 50*time.Millisecond, "user", "secret")
}

func TestIsLoggedIn(t *testing.T) {
	page := browsertest.New()
	id := newIdentity(page)
	ctx := context.Background()

	loggedIn, err := id.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn error: %v", err)
	}
	if !loggedIn {
		t.Error("IsLoggedIn = false without a login prompt, want true")
	}

	page.Add(promptSel, browsertest.Element{Visible: true, Text: "Log in"})
	loggedIn, err = id.IsLoggedIn(ctx)
	if err != nil {
		t.Fatalf("IsLoggedIn error: %v", err)
	}
	if loggedIn {
		t.Error("IsLoggedIn = true with a login prompt present, want false")
	}
}

func TestEnsureLoggedIn_RunsFormOnce(t *testing.T) {
	page := browsertest.New()
	page.Add(promptSel, browsertest.Element{Visible: true})
	page.Add(userSel, browsertest.Element{Visible: true})
	page.Add(passSel, browsertest.Element{Visible: true})
	page.Add(submitSel, browsertest.Element{Visible: true, OnClick: func(p *browsertest.FakePage) {
		p.Remove(promptSel) // successful login removes the prompt
	}})

	if err := newIdentity(page).EnsureLoggedIn(context.Background()); err != nil {
		t.Fatalf("EnsureLoggedIn error: %v", err)
	}
	if got := page.Fills[userSel]; got != "user" {
		t.Errorf("username filled with %q, want user", got)
	}
	if got := page.Fills[passSel]; got != "secret" {
		t.Errorf("password filled with %q, want secret", got)
	}
}

func TestEnsureLoggedIn_FailsWhenPromptPersists(t *testing.T) {
	page := browsertest.New()
	page.Add(promptSel, browsertest.Element{Visible: true})
	page.Add(userSel, browsertest.Element{Visible: true})
	page.Add(passSel, browsertest.Element{Visible: true})
	page.Add(submitSel, browsertest.Element{Visible: true}) // login never takes

	if err := newIdentity(page).EnsureLoggedIn(context.Background()); err == nil {
		t.Fatal("EnsureLoggedIn returned nil error with the prompt still up")
	}
}
