// Package browser drives the crime data explorer's agency selector through
// the Chrome DevTools protocol.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"github.com/timmy/orisweep/internal/domain"
	"github.com/timmy/orisweep/internal/logger"
)

var (
	// ErrStaleElement is returned when the UI redrew the option list while
	// it was being read.
	ErrStaleElement = errors.New("element is no longer attached to the page")
	// ErrWaitTimeout is returned when an element does not reach the awaited
	// state within the action timeout.
	ErrWaitTimeout = errors.New("timed out waiting for element")
)

// Config holds browser session settings.
type Config struct {
	URL         string
	DownloadDir string // must be absolute
	Headless    bool
	ExecPath    string
	NoSandbox   bool
	WaitTimeout time.Duration // bound for each element wait
}

// Session is a single Chrome tab pointed at the portal.
type Session struct {
	cfg         Config
	sel         Selectors
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	downloads   *Downloads
}

// Launch starts Chrome, routes downloads into cfg.DownloadDir and opens cfg.URL.
// Parameters:
//   - ctx: parent context; cancelling it tears the browser down.
//   - cfg: session settings.
// Returns:
//   - *Session: ready tab.
//   - error: non-nil if Chrome cannot start or the page cannot be opened.
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = 20 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1440, 900),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.CtxDebug(ctx, "chromedp: "+format, args...)
	}))

	s := &Session{
		cfg:         cfg,
		sel:         DefaultSelectors,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		downloads:   newDownloads(),
	}
	chromedp.ListenTarget(tabCtx, s.downloads.handle)

	// The first Run on the tab context starts the browser and must not carry
	// a timeout, or the browser dies with it.
	err := chromedp.Run(tabCtx,
		cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(cfg.DownloadDir).
			WithEventsEnabled(true),
		chromedp.Navigate(cfg.URL),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open %s: %w", cfg.URL, err)
	}
	return s, nil
}

// Downloads returns the tracker fed by the tab's download events.
func (s *Session) Downloads() *Downloads {
	return s.downloads
}

// Close shuts the tab and the browser process.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

// run executes actions on the tab, bounded by the wait timeout and by ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.cfg.WaitTimeout)
	defer cancel()

	// Propagate the caller's cancellation into the tab-derived context.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrWaitTimeout, s.cfg.WaitTimeout, err)
	}
	return classify(err)
}

// WaitReady blocks until the agency selector is visible.
func (s *Session) WaitReady(ctx context.Context) error {
	return s.run(ctx, chromedp.WaitVisible(s.sel.AgencyInput, chromedp.ByQuery))
}

// OpenSelector clicks the agency input once it is actionable. Clicking it
// again closes the option list.
func (s *Session) OpenSelector(ctx context.Context) error {
	return s.run(ctx,
		chromedp.WaitVisible(s.sel.AgencyInput, chromedp.ByQuery),
		chromedp.WaitEnabled(s.sel.AgencyInput, chromedp.ByQuery),
		chromedp.Click(s.sel.AgencyInput, chromedp.ByQuery),
	)
}

// CloseSelector collapses the option list without choosing anything.
func (s *Session) CloseSelector(ctx context.Context) error {
	return s.run(ctx, chromedp.Click(s.sel.AgencyInput, chromedp.ByQuery))
}

// OptionTexts returns the rendered text of every option in the open
// selector, in document order. The list is read twice in single script
// evaluations; ErrStaleElement means it was redrawn between the reads.
func (s *Session) OptionTexts(ctx context.Context) ([]string, error) {
	expr := fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(e => e.innerText)`, s.sel.Option)

	var first, second []string
	err := s.run(ctx,
		chromedp.WaitVisible(s.sel.Option, chromedp.ByQuery),
		chromedp.Evaluate(expr, &first),
		chromedp.Evaluate(expr, &second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agency options: %w", err)
	}
	return stableOptions(first, second)
}

// stableOptions returns the option list if both snapshots agree.
func stableOptions(first, second []string) ([]string, error) {
	if len(first) != len(second) {
		return nil, fmt.Errorf("%w: option count changed from %d to %d", ErrStaleElement, len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			return nil, fmt.Errorf("%w: option %d changed while reading", ErrStaleElement, i)
		}
	}
	return first, nil
}

// SelectAgency clicks the option whose text contains "ORI: {ori}" and
// returns that option's text on one line.
func (s *Session) SelectAgency(ctx context.Context, ori string) (string, error) {
	xpath := s.sel.OptionXPath(domain.OptionLabel(ori))

	var text string
	err := s.run(ctx,
		chromedp.WaitVisible(xpath, chromedp.BySearch),
		chromedp.Text(xpath, &text, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.Click(xpath, chromedp.BySearch, chromedp.NodeVisible),
	)
	if err != nil {
		return "", fmt.Errorf("failed to select agency %s: %w", ori, err)
	}
	return strings.ReplaceAll(strings.TrimSpace(text), "\n", " "), nil
}

// WaitIdle waits until no busy overlay is displayed.
func (s *Session) WaitIdle(ctx context.Context) error {
	var idle bool
	expr := fmt.Sprintf(`!Array.from(document.querySelectorAll(%q)).some(e => e.offsetParent !== null)`, s.sel.Spinner)
	if err := s.run(ctx, chromedp.Poll(expr, &idle, chromedp.WithPollingInterval(100*time.Millisecond))); err != nil {
		return fmt.Errorf("busy overlay did not clear: %w", err)
	}
	return nil
}

// ExportCSV opens the chart menu and chooses the CSV download.
func (s *Session) ExportCSV(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.WaitVisible(s.sel.MenuButton, chromedp.BySearch),
		chromedp.Click(s.sel.MenuButton, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.WaitVisible(s.sel.DownloadCSV, chromedp.BySearch),
		chromedp.Click(s.sel.DownloadCSV, chromedp.BySearch, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("failed to trigger CSV export: %w", err)
	}
	return nil
}

// ClearSelection clicks the clear-agency control.
func (s *Session) ClearSelection(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.WaitVisible(s.sel.ClearAgency, chromedp.BySearch),
		chromedp.Click(s.sel.ClearAgency, chromedp.BySearch, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("failed to clear agency: %w", err)
	}
	return nil
}

// Reload reloads the portal page.
func (s *Session) Reload(ctx context.Context) error {
	return s.run(ctx, chromedp.Reload())
}

// classify maps DevTools errors raised when the page redraws under a script
// evaluation to ErrStaleElement.
func classify(err error) error {
	msg := err.Error()
	for _, marker := range staleMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrStaleElement, err)
		}
	}
	return err
}

var staleMarkers = []string{
	"Execution context was destroyed",
	"Cannot find context with specified id",
}
