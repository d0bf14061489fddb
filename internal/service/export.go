package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/orisweep/internal/browser"
	"github.com/timmy/orisweep/internal/domain"
	"github.com/timmy/orisweep/internal/logger"
	"github.com/timmy/orisweep/internal/staging"
)

// Page is the portal UI the sweep drives. browser.Session implements it.
type Page interface {
	WaitReady(ctx context.Context) error
	OpenSelector(ctx context.Context) error
	OptionTexts(ctx context.Context) ([]string, error)
	CloseSelector(ctx context.Context) error
	SelectAgency(ctx context.Context, ori string) (string, error)
	WaitIdle(ctx context.Context) error
	ExportCSV(ctx context.Context) error
	ClearSelection(ctx context.Context) error
	Reload(ctx context.Context) error
}

// RunRecorder persists run history. repository.RunRepository implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *domain.ExportRun) error
	AddResult(ctx context.Context, result *domain.ExportResult) error
	UpdateRun(ctx context.Context, run *domain.ExportRun) error
}

// Uploader stores renamed exports. storage.S3Storage implements it.
type Uploader interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
}

// ExportConfig holds the sweep's inputs and its fixed waits.
type ExportConfig struct {
	PortalURL     string
	FileType      string
	ExamplePrefix string

	SettleDelay            time.Duration // after clearing a successful selection
	ReloadDelay            time.Duration // after reloading on failure
	MaxEnumerationRestarts int

	Retry         RetryPolicy
	ArchivePrefix string
}

// ExportStats is the outcome of one sweep.
type ExportStats struct {
	Run     *domain.ExportRun
	Results []*domain.ExportResult
}

// ExportService runs the select, export, rename and reset cycle over every
// agency in the selector, one at a time.
type ExportService struct {
	page     Page
	dir      *staging.Dir
	gate     Gate
	recorder RunRecorder
	uploader Uploader
	logger   *logger.Logger
	cfg      ExportConfig
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewExportService creates a new export service.
// Parameters:
//   - page: portal page to drive.
//   - dir: staging directory the browser downloads into.
//   - gate: readiness gate passed before enumeration.
//   - recorder: run history store; nil disables history.
//   - uploader: archive for renamed exports; nil disables archiving.
//   - log: fallback logger.
//   - cfg: sweep configuration.
// Returns:
//   - *ExportService: configured service.
func NewExportService(
	page Page,
	dir *staging.Dir,
	gate Gate,
	recorder RunRecorder,
	uploader Uploader,
	log *logger.Logger,
	cfg *ExportConfig,
) *ExportService {
	return &ExportService{
		page:     page,
		dir:      dir,
		gate:     gate,
		recorder: recorder,
		uploader: uploader,
		logger:   log,
		cfg:      *cfg,
		sleep:    sleepCtx,
	}
}

// log returns a logger from context if available, otherwise the service logger
func (s *ExportService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Run passes the readiness gate, enumerates the agencies and exports each.
// Only setup failures are returned; per-agency failures are logged and
// recorded in the stats.
// Parameters:
//   - ctx: context; cancelling it ends the sweep after the current step.
// Returns:
//   - *ExportStats: run summary and per-agency results.
//   - error: non-nil if the page never became ready or enumeration failed.
func (s *ExportService) Run(ctx context.Context) (*ExportStats, error) {
	run := &domain.ExportRun{
		ID:            uuid.NewString(),
		PortalURL:     s.cfg.PortalURL,
		FileType:      s.cfg.FileType,
		ExamplePrefix: s.cfg.ExamplePrefix,
		Status:        domain.RunStatusRunning,
		StartedAt:     time.Now(),
	}
	stats := &ExportStats{Run: run}
	if s.logger != nil {
		ctx = s.logger.WithContext(ctx)
	}
	ctx = logger.SetRunID(logger.SetComponent(ctx, "export"), run.ID)

	if err := s.gate.Wait(ctx, s.page); err != nil {
		return stats, s.abort(ctx, run, err)
	}

	oris, err := s.Enumerate(ctx)
	if err != nil {
		return stats, s.abort(ctx, run, err)
	}
	run.TotalItems = len(oris)
	logger.With(nil).WithCount(len(oris)).Info(ctx, "Agency list loaded")

	if s.recorder != nil {
		if err := s.recorder.CreateRun(ctx, run); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to record run, continuing without history")
			s.recorder = nil
		}
	}

	for i, ori := range oris {
		var job *domain.ExportJob
		start := time.Now()
		if ctx.Err() != nil {
			job = domain.NewExportJob(ori, i)
		} else {
			job = s.exportOne(ctx, ori, i)
		}
		stats.Results = append(stats.Results, s.finish(ctx, run, job, time.Since(start)))
	}

	now := time.Now()
	run.CompletedAt = &now
	run.Status = domain.RunStatusCompleted
	if ctx.Err() != nil {
		run.Status = domain.RunStatusCancelled
	}
	if s.recorder != nil {
		// The run context may already be cancelled; the final update must land.
		if err := s.recorder.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to record run totals")
		}
	}

	logger.With(logger.Fields{
		"total":     run.TotalItems,
		"succeeded": run.Succeeded,
		"timed_out": run.TimedOut,
		"failed":    run.Failed,
		"skipped":   run.Skipped,
	}).WithStatus(string(run.Status)).WithDuration(now.Sub(run.StartedAt).Milliseconds()).Info(ctx, "Sweep finished")

	return stats, nil
}

// Enumerate opens the selector, reads every agency identifier and closes it
// again. A list redrawn mid-read is read again from the start.
func (s *ExportService) Enumerate(ctx context.Context) ([]string, error) {
	if err := s.page.OpenSelector(ctx); err != nil {
		return nil, fmt.Errorf("failed to open agency selector: %w", err)
	}

	var texts []string
	for restarts := 0; ; restarts++ {
		var err error
		texts, err = s.page.OptionTexts(ctx)
		if err == nil {
			break
		}
		if !errors.Is(err, browser.ErrStaleElement) || restarts >= s.cfg.MaxEnumerationRestarts {
			return nil, fmt.Errorf("failed to load the initial agency list: %w", err)
		}
		s.log(ctx).WithField("restart", restarts+1).Debug("Agency list redrawn during enumeration, starting over")
	}

	oris := domain.ParseORIs(texts)
	if len(oris) == 0 {
		return nil, domain.ErrNoIdentifiers
	}

	if err := s.page.CloseSelector(ctx); err != nil {
		return nil, fmt.Errorf("failed to close agency selector: %w", err)
	}
	return oris, nil
}

// exportOne drives a single identifier to completion, retrying after a
// reload while the retry policy allows.
func (s *ExportService) exportOne(ctx context.Context, ori string, position int) *domain.ExportJob {
	job := domain.NewExportJob(ori, position)
	ctx = logger.SetORI(ctx, ori)
	delays := s.cfg.Retry.NewBackOff()

	for {
		actx := logger.WithField(ctx, logger.FieldAttempt, job.Attempt)
		s.log(actx).Infof("--- Processing ORI: %s ---", ori)

		err := s.attempt(actx, job)
		if err == nil {
			return job
		}

		job.Fail(err)
		if ctx.Err() != nil {
			return job
		}
		s.log(actx).WithError(err).Errorf("An error occurred for ORI %s, refreshing page", ori)
		if rerr := s.page.Reload(ctx); rerr != nil {
			logger.CtxError(actx, "Page reload failed: %v", rerr)
		}
		if serr := s.sleep(ctx, s.cfg.ReloadDelay); serr != nil {
			return job
		}
		_ = job.Advance(domain.JobStateReloaded)

		if job.Complete || job.Attempt >= s.cfg.Retry.Attempts() {
			_ = job.Advance(domain.JobStateDone)
			if !job.Complete {
				logger.CtxWarn(actx, "Giving up on ORI %s after %d attempt(s)", ori, job.Attempt)
			}
			return job
		}

		delay := delays.NextBackOff()
		s.log(actx).WithField("backoff", delay.String()).Info("Retrying agency")
		if serr := s.sleep(ctx, delay); serr != nil {
			return job
		}
		_ = job.Advance(domain.JobStatePending)
	}
}

// attempt runs one select, export, wait and reset cycle. A download timeout
// ends the job without error and without the reset step.
func (s *ExportService) attempt(ctx context.Context, job *domain.ExportJob) error {
	if err := job.Advance(domain.JobStateSelecting); err != nil {
		return err
	}
	if err := s.page.OpenSelector(ctx); err != nil {
		return err
	}
	label, err := s.page.SelectAgency(ctx, job.ORI)
	if err != nil {
		return err
	}
	s.log(ctx).Infof("Selecting: %s", label)
	if err := s.page.WaitIdle(ctx); err != nil {
		return err
	}

	if err := job.Advance(domain.JobStateExporting); err != nil {
		return err
	}
	if err := s.page.ExportCSV(ctx); err != nil {
		return err
	}

	if err := job.Advance(domain.JobStateWaitingForFile); err != nil {
		return err
	}
	res, err := s.dir.Await(ctx, s.cfg.ExamplePrefix, job.ORI, s.cfg.FileType)
	if res != nil {
		job.Waited += res.Waited
	}
	if errors.Is(err, staging.ErrDownloadTimeout) {
		logger.CtxWarn(ctx, "Download timed out for ORI %s. Skipping.", job.ORI)
		if err := job.Advance(domain.JobStateTimedOut); err != nil {
			return err
		}
		return job.Advance(domain.JobStateDone)
	}
	if err != nil {
		return err
	}

	job.Complete = true
	job.OutputPath = res.Target
	if err := job.Advance(domain.JobStateRenamed); err != nil {
		return err
	}
	s.log(ctx).Infof("Downloaded and renamed to: %s", res.Target)

	if err := s.page.ClearSelection(ctx); err != nil {
		return err
	}
	if err := s.sleep(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}
	if err := job.Advance(domain.JobStateReset); err != nil {
		return err
	}
	return job.Advance(domain.JobStateDone)
}

// finish archives a successful export, records the result and tallies it.
func (s *ExportService) finish(ctx context.Context, run *domain.ExportRun, job *domain.ExportJob, elapsed time.Duration) *domain.ExportResult {
	result := &domain.ExportResult{
		RunID:      run.ID,
		Position:   job.Position,
		ORI:        job.ORI,
		Outcome:    job.Outcome(),
		Attempts:   job.Attempt,
		OutputPath: job.OutputPath,
		DurationMs: elapsed.Milliseconds(),
	}
	if job.Outcome() == domain.OutcomeSkipped {
		result.Attempts = 0
	}
	if job.Err != nil {
		result.Error = job.Err.Error()
	}
	ctx = logger.SetORI(ctx, job.ORI)

	if result.Outcome == domain.OutcomeSucceeded && s.uploader != nil {
		key := path.Join(s.cfg.ArchivePrefix, run.ID, filepath.Base(job.OutputPath))
		if err := s.uploader.UploadFile(ctx, key, job.OutputPath, "text/csv"); err != nil {
			logger.With(logger.Fields{"object_key": key, "error": err.Error()}).Warn(ctx, "Failed to archive export")
		} else {
			result.ObjectKey = key
		}
	}

	if s.recorder != nil {
		if err := s.recorder.AddResult(context.WithoutCancel(ctx), result); err != nil {
			s.log(ctx).WithError(err).Warn("Failed to record result")
		}
	}

	run.Tally(result.Outcome)
	logger.With(logger.Fields{"outcome": result.Outcome}).WithDuration(result.DurationMs).Info(ctx, "Agency done")
	return result
}

// abort marks the run failed and returns err.
func (s *ExportService) abort(ctx context.Context, run *domain.ExportRun, err error) error {
	now := time.Now()
	run.Status = domain.RunStatusFailed
	run.ErrorLog = err.Error()
	run.CompletedAt = &now
	logger.With(logger.Fields{"error": err.Error()}).WithStatus(string(run.Status)).Error(ctx, "Sweep setup failed")
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
