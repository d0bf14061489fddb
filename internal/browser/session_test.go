package browser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionXPath(t *testing.T) {
	assert.Equal(t, "//nb-option[contains(., 'ORI: AB0010000')]", DefaultSelectors.OptionXPath("ORI: AB0010000"))
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		name      string
		err       error
		wantStale bool
	}{
		{name: "context destroyed", err: errors.New("exception \"Uncaught\" (0:0): Execution context was destroyed. (-32000)"), wantStale: true},
		{name: "context gone", err: errors.New("Cannot find context with specified id (-32000)"), wantStale: true},
		{name: "unrelated", err: errors.New("net::ERR_CONNECTION_RESET"), wantStale: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			assert.Equal(t, tc.wantStale, errors.Is(got, ErrStaleElement))
		})
	}
}

func TestStableOptions(t *testing.T) {
	first := []string{"Agency A\nORI: AB0010000", "Agency B\nORI: CD0020000"}

	got, err := stableOptions(first, []string{"Agency A\nORI: AB0010000", "Agency B\nORI: CD0020000"})
	require.NoError(t, err)
	assert.Equal(t, first, got)

	testCases := []struct {
		name   string
		second []string
	}{
		{name: "options appended", second: append(append([]string{}, first...), "Agency C\nORI: EF0030000")},
		{name: "option replaced", second: []string{"Agency A\nORI: AB0010000", "Agency Z\nORI: ZZ0990000"}},
		{name: "list emptied", second: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stableOptions(first, tc.second)
			assert.True(t, errors.Is(err, ErrStaleElement))
		})
	}
}
