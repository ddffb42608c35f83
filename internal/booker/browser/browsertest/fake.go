// Package browsertest provides an in-memory PageActionExecutor for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/leobook-1/LeoBook-sub001/internal/booker/browser"
)

// Element is one scripted element on the fake page. OnClick runs inside
// Click, which lets tests mutate the page in response to workflow actions.
type Element struct {
	Visible bool
	Text    string
	OnClick func(p *FakePage)
}

type fakeHandle struct {
	expr string
}

func (h fakeHandle) Description() string { return h.expr }

// FakePage implements browser.PageActionExecutor over a map of locator
// expressions. It records every navigation, click, fill and key press.
type FakePage struct {
	mu       sync.Mutex
	elements map[string]*Element

	Navigations []string
	Clicks      []string
	Fills       map[string]string
	Keys        []string

	GotoErr       error
	ScreenshotErr error
}

var _ browser.PageActionExecutor = (*FakePage)(nil)

func New() *FakePage {
	return &FakePage{
		elements: make(map[string]*Element),
		Fills:    make(map[string]string),
	}
}

// Add scripts an element at the given locator expression.
func (p *FakePage) Add(expr string, el Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := el
	p.elements[expr] = &e
}

// Remove deletes the element, as if it left the DOM.
func (p *FakePage) Remove(expr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, expr)
}

// SetText updates an element's text, creating it visible if absent.
func (p *FakePage) SetText(expr, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.elements[expr]; ok {
		e.Text = text
		return
	}
	p.elements[expr] = &Element{Visible: true, Text: text}
}

// SetVisible toggles element visibility.
func (p *FakePage) SetVisible(expr string, visible bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.elements[expr]; ok {
		e.Visible = visible
	}
}

func (p *FakePage) get(expr string) (*Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elements[expr]
	return e, ok
}

func (p *FakePage) Goto(ctx context.Context, url string, waitUntil browser.WaitUntil, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.Navigations = append(p.Navigations, url)
	err := p.GotoErr
	p.mu.Unlock()
	return err
}

func (p *FakePage) Locate(ctx context.Context, expr string) ([]browser.ElementHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, ok := p.get(expr); !ok {
		return nil, nil
	}
	return []browser.ElementHandle{fakeHandle{expr: expr}}, nil
}

func (p *FakePage) Click(ctx context.Context, h browser.ElementHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fh, ok := h.(fakeHandle)
	if !ok {
		return fmt.Errorf("%w: foreign handle %q", browser.ErrNotFound, h.Description())
	}
	e, ok := p.get(fh.expr)
	if !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, fh.expr)
	}
	p.mu.Lock()
	p.Clicks = append(p.Clicks, fh.expr)
	onClick := e.OnClick
	p.mu.Unlock()
	if onClick != nil {
		onClick(p)
	}
	return nil
}

func (p *FakePage) Fill(ctx context.Context, h browser.ElementHandle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fh, ok := h.(fakeHandle)
	if !ok {
		return fmt.Errorf("%w: foreign handle %q", browser.ErrNotFound, h.Description())
	}
	if _, ok := p.get(fh.expr); !ok {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, fh.expr)
	}
	p.mu.Lock()
	p.Fills[fh.expr] = text
	p.mu.Unlock()
	return nil
}

func (p *FakePage) PressKey(ctx context.Context, h browser.ElementHandle, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.Keys = append(p.Keys, key)
	p.mu.Unlock()
	return nil
}

func (p *FakePage) WaitForVisible(ctx context.Context, expr string, timeout time.Duration) error {
	return p.poll(ctx, timeout, expr, func(e *Element, ok bool) bool { return ok && e.Visible })
}

func (p *FakePage) WaitForHidden(ctx context.Context, expr string, timeout time.Duration) error {
	return p.poll(ctx, timeout, expr, func(e *Element, ok bool) bool { return !ok || !e.Visible })
}

func (p *FakePage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (p *FakePage) InnerText(ctx context.Context, h browser.ElementHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fh, ok := h.(fakeHandle)
	if !ok {
		return "", fmt.Errorf("%w: foreign handle %q", browser.ErrNotFound, h.Description())
	}
	e, ok := p.get(fh.expr)
	if !ok {
		return "", fmt.Errorf("%w: %s", browser.ErrNotFound, fh.expr)
	}
	return e.Text, nil
}

func (p *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	return []byte("fake-png"), nil
}

// poll re-checks the condition on a short ticker so OnClick side effects can
// land between checks, bounded by the caller's timeout.
func (p *FakePage) poll(ctx context.Context, timeout time.Duration, expr string, cond func(*Element, bool) bool) error {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e, ok := p.get(expr); cond(e, ok) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", browser.ErrTimeout, expr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}
