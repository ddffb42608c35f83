package browser

import (
	"context"
	"errors"
	"time"
)

// Error kinds every executor implementation maps its driver errors onto.
// Callers match with errors.Is.
var (
	ErrTimeout  = errors.New("browser: operation timed out")
	ErrNotFound = errors.New("browser: element not found")
)

// WaitUntil selects how far a navigation must progress before Goto returns.
type WaitUntil int

const (
	WaitLoad WaitUntil = iota
	WaitNetworkIdle
)

// ElementHandle is an opaque reference to a located element. Handles are only
// valid with the executor that produced them.
type ElementHandle interface {
	Description() string
}

// PageActionExecutor is the only surface through which the booking flow
// touches a live page. The production implementation drives a Chrome tab;
// tests substitute an in-memory fake.
//
// Locate returns an empty slice (and nil error) when nothing matches; it
// never blocks waiting for the element to appear. The WaitFor* calls are the
// bounded waits, and they fail with ErrTimeout instead of hanging.
type PageActionExecutor interface {
	Goto(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) error
	Locate(ctx context.Context, expr string) ([]ElementHandle, error)
	Click(ctx context.Context, h ElementHandle) error
	Fill(ctx context.Context, h ElementHandle, text string) error
	PressKey(ctx context.Context, h ElementHandle, key string) error
	WaitForVisible(ctx context.Context, expr string, timeout time.Duration) error
	WaitForHidden(ctx context.Context, expr string, timeout time.Duration) error
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error
	InnerText(ctx context.Context, h ElementHandle) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}
