// Package site implements the account-facing collaborators (login state,
// balance) on top of the page executor and the selector registry.
package site

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/gate"
	"github.com/leobook-1/LeoBook-sub001/internal/booker/selectors"
)

const pageAuth = "auth"

// Selector keys in the "auth" context.
const (
	keyLoginPrompt   = "login_prompt" // visible only when logged out
	keyUsernameInput = "username_input"
	keyPasswordInput = "password_input"
	keySubmit        = "submit"
)

// Identity checks and restores the session's login state.
type Identity struct {
	page     browser.PageActionExecutor
	reg      *selectors.Registry
	gate     gate.Gate
	timeout  time.Duration
	username string
	password string
}

func NewIdentity(page browser.PageActionExecutor, reg *selectors.Registry, g gate.Gate, timeout time.Duration, username, password string) *Identity {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Identity{page: page, reg: reg, gate: g, timeout: timeout, username: username, password: password}
}

// IsLoggedIn reports login state by probing for the login prompt: the prompt
// is only rendered for logged-out visitors.
func (i *Identity) IsLoggedIn(ctx context.Context) (bool, error) {
	expr, err := i.reg.Resolve(pageAuth, keyLoginPrompt)
	if err != nil {
		return false, fmt.Errorf("login check: %w", err)
	}
	handles, err := i.page.Locate(ctx, expr)
	if err != nil {
		return false, fmt.Errorf("login check: %w", err)
	}
	return len(handles) == 0, nil
}

// EnsureLoggedIn runs the login form once if the session is logged out, then
// verifies the prompt went away.
func (i *Identity) EnsureLoggedIn(ctx context.Context) error {
	loggedIn, err := i.IsLoggedIn(ctx)
	if err != nil {
		return err
	}
	if loggedIn {
		return nil
	}
	slog.Info("Session is logged out, running login flow")

	promptExpr, err := i.reg.Resolve(pageAuth, keyLoginPrompt)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := i.clickFirst(ctx, promptExpr); err != nil {
		return fmt.Errorf("login: open form: %w", err)
	}
	if err := i.fillField(ctx, keyUsernameInput, i.username); err != nil {
		return err
	}
	if err := i.fillField(ctx, keyPasswordInput, i.password); err != nil {
		return err
	}
	submitExpr, err := i.reg.Resolve(pageAuth, keySubmit)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := i.clickFirst(ctx, submitExpr); err != nil {
		return fmt.Errorf("login: submit: %w", err)
	}

	ok := i.gate.Await(ctx, "logged in", func(ctx context.Context) (bool, error) {
		return i.IsLoggedIn(ctx)
	})
	if !ok {
		return fmt.Errorf("login: prompt still visible after submitting credentials")
	}
	slog.Info("Login flow completed")
	return nil
}

func (i *Identity) fillField(ctx context.Context, key, value string) error {
	expr, err := i.reg.Resolve(pageAuth, key)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := i.page.WaitForVisible(ctx, expr, i.timeout); err != nil {
		return fmt.Errorf("login: field %s: %w", key, err)
	}
	handles, err := i.page.Locate(ctx, expr)
	if err != nil {
		return fmt.Errorf("login: field %s: %w", key, err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("login: field %s (%q) disappeared", key, expr)
	}
	return i.page.Fill(ctx, handles[0], value)
}

func (i *Identity) clickFirst(ctx context.Context, expr string) error {
	handles, err := i.page.Locate(ctx, expr)
	if err != nil {
		return err
	}
	if len(handles) == 0 {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, expr)
	}
	return i.page.Click(ctx, handles[0])
}
