package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDir(t *testing.T) *Dir {
	t.Helper()
	d, err := Ensure(filepath.Join(t.TempDir(), "downloads"), Options{
		Timeout:  1500 * time.Millisecond,
		Interval: 500 * time.Millisecond,
	})
	require.NoError(t, err)
	return d
}

func writeFile(t *testing.T, dir, name string, modTime time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("year,count\n2023,1\n"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestEnsureCreatesAbsoluteDir(t *testing.T) {
	d := newDir(t)
	assert.True(t, filepath.IsAbs(d.Path()))

	info, err := os.Stat(d.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = Ensure(d.Path(), Options{Timeout: time.Second})
	assert.Error(t, err, "zero interval must be rejected")
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "X_T.csv", OutputName("X", "T"))
	assert.Equal(t, "AB0010000_annual.csv", OutputName("AB0010000", "annual"))
}

func TestSamples(t *testing.T) {
	testCases := []struct {
		timeout, interval time.Duration
		want              int
	}{
		{1500 * time.Millisecond, 500 * time.Millisecond, 3},
		{1600 * time.Millisecond, 500 * time.Millisecond, 4},
		{0, 500 * time.Millisecond, 1},
		{100 * time.Millisecond, 500 * time.Millisecond, 1},
	}
	for _, tc := range testCases {
		d := &Dir{timeout: tc.timeout, interval: tc.interval}
		assert.Equal(t, tc.want, d.Samples(), "timeout=%s interval=%s", tc.timeout, tc.interval)
	}
}

func TestMatchPredicate(t *testing.T) {
	d := newDir(t)
	now := time.Now()

	writeFile(t, d.Path(), "other.csv", now)
	writeFile(t, d.Path(), "xCrimeTrend.csv", now)
	writeFile(t, d.Path(), "CrimeTrend.csv.crdownload", now.Add(time.Minute))
	require.NoError(t, os.Mkdir(filepath.Join(d.Path(), "CrimeTrend-dir"), 0o755))

	match, err := d.Match("CrimeTrend")
	require.NoError(t, err)
	assert.Equal(t, "", match)

	writeFile(t, d.Path(), "CrimeTrend.csv", now)
	match, err = d.Match("CrimeTrend")
	require.NoError(t, err)
	assert.Equal(t, "CrimeTrend.csv", match)
}

func TestMatchTieBreak(t *testing.T) {
	d := newDir(t)
	base := time.Now().Add(-time.Hour)

	writeFile(t, d.Path(), "CrimeTrend (1).csv", base)
	writeFile(t, d.Path(), "CrimeTrend (3).csv", base.Add(2*time.Second))
	writeFile(t, d.Path(), "CrimeTrend (2).csv", base.Add(2*time.Second))

	match, err := d.Match("CrimeTrend")
	require.NoError(t, err)
	assert.Equal(t, "CrimeTrend (2).csv", match, "newest wins, equal times break by name")
}

func TestAwaitRenamesAndOverwrites(t *testing.T) {
	d := newDir(t)
	writeFile(t, d.Path(), "AB0010000_annual.csv", time.Now().Add(-time.Hour))
	writeFile(t, d.Path(), "CrimeTrend.csv", time.Now())

	res, err := d.Await(context.Background(), "CrimeTrend", "AB0010000", "annual")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Samples)
	assert.Equal(t, filepath.Join(d.Path(), "AB0010000_annual.csv"), res.Target)
	_, err = os.Stat(res.Source)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(d.Path())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAwaitBoundary(t *testing.T) {
	testCases := []struct {
		name        string
		appearAfter int // file is written after this many sleeps
		wantErr     bool
		wantSamples int
	}{
		{name: "before first sample", appearAfter: 0, wantSamples: 1},
		{name: "second sample", appearAfter: 1, wantSamples: 2},
		{name: "third sample", appearAfter: 2, wantSamples: 3},
		{name: "fourth interval is never seen", appearAfter: 3, wantErr: true, wantSamples: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := newDir(t)
			sleeps := 0
			d.sleep = func(ctx context.Context, _ time.Duration) error {
				sleeps++
				if sleeps == tc.appearAfter {
					writeFile(t, d.Path(), "CrimeTrend.csv", time.Now())
				}
				return nil
			}
			if tc.appearAfter == 0 {
				writeFile(t, d.Path(), "CrimeTrend.csv", time.Now())
			}

			res, err := d.Await(context.Background(), "CrimeTrend", "CD0020000", "annual")
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrDownloadTimeout))
				assert.Equal(t, 1000*time.Millisecond, res.Waited)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantSamples, res.Samples)
			assert.LessOrEqual(t, sleeps, 2)
		})
	}
}

func TestAwaitHonorsCancellation(t *testing.T) {
	d := newDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Await(ctx, "CrimeTrend", "AB0010000", "annual")
	assert.True(t, errors.Is(err, context.Canceled))
}

type fakeActivity struct {
	pending []int // returned in turn, the last value repeats
}

func (f *fakeActivity) Pending() int {
	n := f.pending[0]
	if len(f.pending) > 1 {
		f.pending = f.pending[1:]
	}
	return n
}

func TestAwaitWaitsForDownloadToFinish(t *testing.T) {
	d := newDir(t)
	d.sleep = func(context.Context, time.Duration) error { return nil }
	d.Track(&fakeActivity{pending: []int{1, 0}})
	writeFile(t, d.Path(), "CrimeTrend.csv", time.Now())

	res, err := d.Await(context.Background(), "CrimeTrend", "AB0010000", "annual")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Samples, "the first sample is held back while the download is in flight")
	assert.Equal(t, 500*time.Millisecond, res.Waited)
}

func TestAwaitTimesOutWhileDownloadStalls(t *testing.T) {
	d := newDir(t)
	d.sleep = func(context.Context, time.Duration) error { return nil }
	d.Track(&fakeActivity{pending: []int{1}})
	writeFile(t, d.Path(), "CrimeTrend.csv", time.Now())

	res, err := d.Await(context.Background(), "CrimeTrend", "AB0010000", "annual")
	assert.True(t, errors.Is(err, ErrDownloadTimeout))
	assert.Equal(t, 3, res.Samples)

	_, err = os.Stat(filepath.Join(d.Path(), "CrimeTrend.csv"))
	assert.NoError(t, err, "nothing is renamed until the browser reports completion")
}
