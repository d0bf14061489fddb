// Package staging watches the browser's download directory for exported CSVs
// and moves them to their per-agency names.
package staging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrDownloadTimeout is returned by Await when no matching file appears
// within the poll bound.
var ErrDownloadTimeout = errors.New("download did not appear in staging directory")

// partialSuffixes mark files a browser is still writing.
var partialSuffixes = []string{".crdownload", ".part", ".tmp"}

// Dir is a staging directory shared with the browser's download manager.
// Only one export may be in flight against a Dir at a time.
type Dir struct {
	path     string
	timeout  time.Duration
	interval time.Duration
	activity Activity
	sleep    func(ctx context.Context, d time.Duration) error
}

// Activity reports downloads the browser has started but not finished.
type Activity interface {
	Pending() int
}

// Options controls how long Await polls.
type Options struct {
	Timeout  time.Duration // total poll bound
	Interval time.Duration // pause between samples
}

// Ensure creates the staging directory if needed and returns a Dir rooted at
// its absolute path.
// Parameters:
//   - path: staging directory, relative or absolute.
//   - opts: poll bound and sampling interval.
// Returns:
//   - *Dir: staging directory handle.
//   - error: non-nil if the path cannot be resolved or created.
func Ensure(path string, opts Options) (*Dir, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve staging directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", opts.Interval)
	}
	return &Dir{
		path:     abs,
		timeout:  opts.Timeout,
		interval: opts.Interval,
		sleep:    sleepCtx,
	}, nil
}

// Path returns the absolute staging directory.
func (d *Dir) Path() string {
	return d.path
}

// Track makes Await hold back a match while a reports a download in flight.
func (d *Dir) Track(a Activity) {
	d.activity = a
}

// Samples is the number of directory listings Await makes before giving up:
// ceil(timeout/interval), at least one.
func (d *Dir) Samples() int {
	n := int((d.timeout + d.interval - 1) / d.interval)
	if n < 1 {
		return 1
	}
	return n
}

// OutputName is the name a downloaded export is renamed to.
func OutputName(ori, fileType string) string {
	return fmt.Sprintf("%s_%s.csv", ori, fileType)
}

// Result describes a completed rename.
type Result struct {
	Source  string        // original download path
	Target  string        // renamed path
	Samples int           // listings made, including the matching one
	Waited  time.Duration // time slept between listings
}

// Await polls for a download whose name starts with prefix and renames it to
// OutputName(ori, fileType), replacing any earlier export of the same name.
// Parameters:
//   - ctx: context for cancellation between samples.
//   - prefix: filename prefix identifying the export.
//   - ori: agency identifier used in the target name.
//   - fileType: file-type label used in the target name.
// Returns:
//   - *Result: rename details; on timeout it is returned with the error.
//   - error: ErrDownloadTimeout, a context error, or a filesystem error.
func (d *Dir) Await(ctx context.Context, prefix, ori, fileType string) (*Result, error) {
	res := &Result{}
	samples := d.Samples()

	for i := 0; i < samples; i++ {
		res.Samples++
		match, err := d.Match(prefix)
		if err != nil {
			return res, err
		}
		if match != "" && d.settled() {
			res.Source = filepath.Join(d.path, match)
			res.Target = filepath.Join(d.path, OutputName(ori, fileType))
			if err := os.Rename(res.Source, res.Target); err != nil {
				return res, fmt.Errorf("failed to rename %s: %w", match, err)
			}
			return res, nil
		}
		if i == samples-1 {
			break
		}
		if err := d.sleep(ctx, d.interval); err != nil {
			return res, err
		}
		res.Waited += d.interval
	}

	return res, fmt.Errorf("%w after %d samples (prefix %q)", ErrDownloadTimeout, res.Samples, prefix)
}

// Match lists the directory once and returns the name of the file that
// belongs to the current export, or "" when none does.
//
// A file matches when it is a regular file whose name starts with prefix and
// that the browser has finished writing. Several matches resolve to the most
// recently modified; equal times resolve to the smallest name.
func (d *Dir) Match(prefix string) (string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return "", fmt.Errorf("failed to list staging directory: %w", err)
	}

	type candidate struct {
		name    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, prefix) || isPartial(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Moved away between listing and stat.
			continue
		}
		candidates = append(candidates, candidate{name: name, modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return "", nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].modTime.After(candidates[j].modTime)
		}
		return candidates[i].name < candidates[j].name
	})
	return candidates[0].name, nil
}

// settled reports whether the browser has no download in flight.
func (d *Dir) settled() bool {
	return d.activity == nil || d.activity.Pending() == 0
}

func isPartial(name string) bool {
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
