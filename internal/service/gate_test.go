package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/orisweep/internal/browser"
)

func TestConsolePromptsShareInput(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("annual\n  CrimeTrend \n\n"), &out)
	ctx := context.Background()

	fileType, err := c.Ask(ctx, "Input file type:")
	require.NoError(t, err)
	prefix, err := c.Ask(ctx, "Input file example:")
	require.NoError(t, err)
	gate := &ManualGate{Console: c}
	require.NoError(t, gate.Wait(ctx, &fakePage{}))

	assert.Equal(t, "annual", fileType)
	assert.Equal(t, "CrimeTrend", prefix)
	assert.Equal(t, "Input file type:Input file example:Press Enter to continue...", out.String())
}

func TestConsoleAcceptsFinalLineWithoutNewline(t *testing.T) {
	c := NewConsole(strings.NewReader("annual"), io.Discard)
	got, err := c.Ask(context.Background(), "Input file type:")
	require.NoError(t, err)
	assert.Equal(t, "annual", got)
}

func TestManualGateFailsOnClosedInput(t *testing.T) {
	gate := &ManualGate{Console: NewConsole(strings.NewReader(""), io.Discard)}
	err := gate.Wait(context.Background(), &fakePage{})
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestManualGateHonorsCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	gate := &ManualGate{Console: NewConsole(pr, io.Discard)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := gate.Wait(ctx, &fakePage{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAutoGateProbesUntilReady(t *testing.T) {
	page := &fakePage{readyErrs: []error{browser.ErrWaitTimeout, browser.ErrWaitTimeout}}
	gate := &AutoGate{Timeout: time.Second, Interval: time.Millisecond}

	require.NoError(t, gate.Wait(context.Background(), page))
	assert.Empty(t, page.readyErrs)
}

func TestAutoGateTimesOut(t *testing.T) {
	errs := make([]error, 10000)
	for i := range errs {
		errs[i] = browser.ErrWaitTimeout
	}
	page := &fakePage{readyErrs: errs}
	gate := &AutoGate{Timeout: 20 * time.Millisecond, Interval: 5 * time.Millisecond}

	err := gate.Wait(context.Background(), page)
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestRetryPolicy(t *testing.T) {
	assert.Equal(t, 1, RetryPolicy{}.Attempts())
	assert.Equal(t, 1, RetryPolicy{MaxAttempts: -2}.Attempts())
	assert.Equal(t, 4, RetryPolicy{MaxAttempts: 4}.Attempts())

	b := RetryPolicy{InitialBackoff: time.Second, MaxBackoff: 5 * time.Second, Multiplier: 2}.NewBackOff()
	var got []time.Duration
	for i := 0; i < 5; i++ {
		got = append(got, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}, got)
}
