package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// SessionOptions configures a Chrome tab owned by one booking session.
type SessionOptions struct {
	Headless   bool
	UserAgent  string
	IdleWindow time.Duration // how long the network must stay quiet to count as idle
}

// ChromeSession implements PageActionExecutor against a dedicated Chrome tab.
// One session serves one booking flow at a time; slip state and balance
// snapshots are session-global, so actions must never interleave.
type ChromeSession struct {
	ctx        context.Context
	cancels    []context.CancelFunc
	tmpDir     string
	idleWindow time.Duration

	inflight     atomic.Int64
	lastActivity atomic.Int64 // unix nanos of the last network event
}

type chromeHandle struct {
	expr string
	node *cdp.Node
}

func (h *chromeHandle) Description() string {
	return fmt.Sprintf("%s [node %d]", h.expr, h.node.NodeID)
}

// NewChromeSession starts a headless Chrome tab with network tracking
// enabled. Close releases the browser and its temp profile dir.
func NewChromeSession(parent context.Context, opts SessionOptions) (*ChromeSession, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	idle := opts.IdleWindow
	if idle <= 0 {
		idle = 500 * time.Millisecond
	}

	chromeDir, err := os.MkdirTemp("", "booker_chrome_")
	if err != nil {
		return nil, fmt.Errorf("create chrome temp dir: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserDataDir(chromeDir),
		chromedp.UserAgent(ua),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		slog.Debug("chromedp", "message", fmt.Sprintf(format, v...))
	}))

	s := &ChromeSession{
		ctx:        tabCtx,
		cancels:    []context.CancelFunc{tabCancel, allocCancel},
		tmpDir:     chromeDir,
		idleWindow: idle,
	}
	s.lastActivity.Store(time.Now().UnixNano())

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			s.inflight.Add(1)
			s.lastActivity.Store(time.Now().UnixNano())
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			// Can briefly go negative when a request started before we
			// attached; clamp on read instead of here.
			s.inflight.Add(-1)
			s.lastActivity.Store(time.Now().UnixNano())
		}
	})

	if err := chromedp.Run(tabCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("start chrome session: %w", err)
	}
	return s, nil
}

// Close shuts the tab and browser down and removes the temp profile.
func (s *ChromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
	if s.tmpDir != "" {
		os.RemoveAll(s.tmpDir)
	}
}

func (s *ChromeSession) Goto(ctx context.Context, url string, waitUntil WaitUntil, timeout time.Duration) error {
	tctx, cancel := s.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.Navigate(url)); err != nil {
		return mapErr(err, fmt.Sprintf("navigate to %s", url))
	}
	if waitUntil == WaitNetworkIdle {
		return s.WaitForNetworkIdle(tctx, timeout)
	}
	return nil
}

func (s *ChromeSession) Locate(ctx context.Context, expr string) ([]ElementHandle, error) {
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(tctx, chromedp.Nodes(expr, &nodes, queryOpt(expr), chromedp.AtLeast(0)))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("locate %q", expr))
	}
	handles := make([]ElementHandle, 0, len(nodes))
	for _, n := range nodes {
		handles = append(handles, &chromeHandle{expr: expr, node: n})
	}
	return handles, nil
}

func (s *ChromeSession) Click(ctx context.Context, h ElementHandle) error {
	ch, err := s.own(h)
	if err != nil {
		return err
	}
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.MouseClickNode(ch.node)); err != nil {
		return mapErr(err, "click "+ch.Description())
	}
	return nil
}

func (s *ChromeSession) Fill(ctx context.Context, h ElementHandle, text string) error {
	ch, err := s.own(h)
	if err != nil {
		return err
	}
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	ids := []cdp.NodeID{ch.node.NodeID}
	err = chromedp.Run(tctx,
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, text, chromedp.ByNodeID),
	)
	if err != nil {
		return mapErr(err, "fill "+ch.Description())
	}
	return nil
}

func (s *ChromeSession) PressKey(ctx context.Context, h ElementHandle, key string) error {
	ch, err := s.own(h)
	if err != nil {
		return err
	}
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	err = chromedp.Run(tctx,
		chromedp.Focus([]cdp.NodeID{ch.node.NodeID}, chromedp.ByNodeID),
		chromedp.KeyEvent(key),
	)
	if err != nil {
		return mapErr(err, "press "+key+" on "+ch.Description())
	}
	return nil
}

func (s *ChromeSession) WaitForVisible(ctx context.Context, expr string, timeout time.Duration) error {
	tctx, cancel := s.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.WaitVisible(expr, queryOpt(expr))); err != nil {
		return mapErr(err, fmt.Sprintf("wait visible %q", expr))
	}
	return nil
}

func (s *ChromeSession) WaitForHidden(ctx context.Context, expr string, timeout time.Duration) error {
	tctx, cancel := s.bound(ctx, timeout)
	defer cancel()

	if err := chromedp.Run(tctx, chromedp.WaitNotVisible(expr, queryOpt(expr))); err != nil {
		return mapErr(err, fmt.Sprintf("wait hidden %q", expr))
	}
	return nil
}

// WaitForNetworkIdle blocks until no request has been in flight and no
// network event has arrived for the session's idle window.
func (s *ChromeSession) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	tctx, cancel := s.bound(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			quiet := time.Since(time.Unix(0, s.lastActivity.Load()))
			if s.inflight.Load() <= 0 && quiet >= s.idleWindow {
				return nil
			}
		case <-tctx.Done():
			return fmt.Errorf("%w: network idle", ErrTimeout)
		}
	}
}

func (s *ChromeSession) InnerText(ctx context.Context, h ElementHandle) (string, error) {
	ch, err := s.own(h)
	if err != nil {
		return "", err
	}
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	var text string
	if err := chromedp.Run(tctx, chromedp.Text([]cdp.NodeID{ch.node.NodeID}, &text, chromedp.ByNodeID)); err != nil {
		return "", mapErr(err, "text of "+ch.Description())
	}
	return strings.TrimSpace(text), nil
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	tctx, cancel := s.bound(ctx, 0)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(tctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, mapErr(err, "capture screenshot")
	}
	return buf, nil
}

// bound ties an action to both the caller's context and the tab's lifetime,
// with an optional timeout.
func (s *ChromeSession) bound(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancel1 := mergeContexts(s.ctx, ctx)
	if timeout <= 0 {
		return merged, cancel1
	}
	tctx, cancel2 := context.WithTimeout(merged, timeout)
	return tctx, func() {
		cancel2()
		cancel1()
	}
}

func (s *ChromeSession) own(h ElementHandle) (*chromeHandle, error) {
	ch, ok := h.(*chromeHandle)
	if !ok {
		return nil, fmt.Errorf("%w: handle %q does not belong to this session", ErrNotFound, h.Description())
	}
	return ch, nil
}

// mergeContexts returns the tab context, cancelled early if the caller's
// context ends first. chromedp actions must run against the tab context, but
// caller cancellation still has to cut them short.
func mergeContexts(tab, caller context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(caller, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}

// queryOpt picks the chromedp query strategy: XPath for expressions that look
// like paths, CSS otherwise.
func queryOpt(expr string) chromedp.QueryOption {
	if strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

func mapErr(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
