package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseORI(t *testing.T) {
	testCases := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "multi line option", text: "Springfield Police Department\nORI: AB0010000\nCity", want: "AB0010000", wantOK: true},
		{name: "single line", text: "ORI:CD0020000", want: "CD0020000", wantOK: true},
		{name: "marker mid line", text: "County Sheriff ORI: EF0030000 ", want: "EF0030000", wantOK: true},
		{name: "first marked line wins", text: "ORI: GH1\nORI: GH2", want: "GH1", wantOK: true},
		{name: "no marker", text: "Select an agency", wantOK: false},
		{name: "empty identifier", text: "ORI:   ", wantOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseORI(tc.text)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestParseORIsKeepsOrderAndDropsUnmarked(t *testing.T) {
	got := ParseORIs([]string{"A\nORI: AB0010000", "header", "B\nORI: CD0020000", "C\nORI: AB0010000"})
	assert.Equal(t, []string{"AB0010000", "CD0020000", "AB0010000"}, got)
}

func TestOptionLabel(t *testing.T) {
	assert.Equal(t, "ORI: AB0010000", OptionLabel("AB0010000"))
}

func TestExportJobSuccessPath(t *testing.T) {
	job := NewExportJob("AB0010000", 0)
	for _, s := range []JobState{JobStateSelecting, JobStateExporting, JobStateWaitingForFile, JobStateRenamed} {
		require.NoError(t, job.Advance(s))
	}
	job.Complete = true
	require.NoError(t, job.Advance(JobStateReset))
	require.NoError(t, job.Advance(JobStateDone))

	assert.Equal(t, OutcomeSucceeded, job.Outcome())
	assert.Equal(t, []JobState{
		JobStatePending, JobStateSelecting, JobStateExporting, JobStateWaitingForFile,
		JobStateRenamed, JobStateReset, JobStateDone,
	}, job.History)
}

func TestExportJobTimeoutSkipsReset(t *testing.T) {
	job := NewExportJob("CD0020000", 1)
	for _, s := range []JobState{JobStateSelecting, JobStateExporting, JobStateWaitingForFile, JobStateTimedOut} {
		require.NoError(t, job.Advance(s))
	}

	err := job.Advance(JobStateReset)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	require.NoError(t, job.Advance(JobStateDone))
	assert.Equal(t, OutcomeTimedOut, job.Outcome())
}

func TestExportJobErrorAndRetry(t *testing.T) {
	job := NewExportJob("EF0030000", 2)
	require.NoError(t, job.Advance(JobStateSelecting))

	boom := errors.New("element not clickable")
	job.Fail(boom)
	assert.Equal(t, JobStateError, job.State)
	assert.Equal(t, boom, job.Err)

	job.Fail(errors.New("second"))
	assert.Equal(t, boom, job.Err)

	require.NoError(t, job.Advance(JobStateReloaded))
	require.NoError(t, job.Advance(JobStatePending))
	assert.Equal(t, 2, job.Attempt)
	assert.Nil(t, job.Err)

	require.NoError(t, job.Advance(JobStateSelecting))
	job.Fail(boom)
	require.NoError(t, job.Advance(JobStateReloaded))
	require.NoError(t, job.Advance(JobStateDone))
	assert.Equal(t, OutcomeFailed, job.Outcome())
}

func TestExportJobPendingIsSkipped(t *testing.T) {
	job := NewExportJob("GH0040000", 3)
	assert.Equal(t, OutcomeSkipped, job.Outcome())
}

func TestExportRunTally(t *testing.T) {
	var run ExportRun
	for _, o := range []Outcome{OutcomeSucceeded, OutcomeSucceeded, OutcomeTimedOut, OutcomeFailed, OutcomeSkipped} {
		run.Tally(o)
	}
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.TimedOut)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Skipped)
}
