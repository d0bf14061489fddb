package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/orisweep/internal/logger"
)

// ErrNotReady is returned when the portal never became ready for scraping.
var ErrNotReady = errors.New("portal page not ready")

// Gate blocks until the portal page is ready for the sweep to begin.
type Gate interface {
	Wait(ctx context.Context, page Page) error
}

// ManualGate waits for the operator to confirm the page is ready. It has no
// timeout.
type ManualGate struct {
	Console *Console
}

// Wait prompts and blocks until Enter is pressed.
func (g *ManualGate) Wait(ctx context.Context, _ Page) error {
	if err := g.Console.WaitForEnter(ctx, "Press Enter to continue..."); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

// AutoGate polls for the agency selector until it is visible or Timeout
// elapses.
type AutoGate struct {
	Timeout  time.Duration
	Interval time.Duration // pause between probes, default 1s
}

// Wait probes the page until it reports ready.
func (g *AutoGate) Wait(ctx context.Context, page Page) error {
	interval := g.Interval
	if interval <= 0 {
		interval = time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	for probe := 1; ; probe++ {
		err := page.WaitReady(waitCtx)
		if err == nil {
			logger.CtxInfo(ctx, "Portal ready after %d probe(s)", probe)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if waitCtx.Err() != nil {
			return fmt.Errorf("%w within %s: %v", ErrNotReady, g.Timeout, err)
		}
		logger.CtxDebug(ctx, "Portal not ready yet: %v", err)
		if err := sleepCtx(waitCtx, interval); err != nil && ctx.Err() == nil {
			return fmt.Errorf("%w within %s", ErrNotReady, g.Timeout)
		}
	}
}
