// Package portal checks that the crime data explorer is reachable before a
// browser is launched against it.
package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "orisweep/1.0 (+https://github.com/timmy/orisweep)"

// Checker probes the portal over plain HTTP.
type Checker struct {
	client *resty.Client
}

// NewChecker creates a Checker whose requests time out after timeout.
func NewChecker(timeout time.Duration) *Checker {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &Checker{client: client}
}

// Check fetches url and fails unless the server answers with a 2xx or 3xx
// status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - url: portal page; a fragment is not sent to the server.
// Returns:
//   - error: non-nil if the request fails or the status is an error.
func (c *Checker) Check(ctx context.Context, url string) error {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("portal unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("portal returned %s", resp.Status())
	}
	return nil
}
