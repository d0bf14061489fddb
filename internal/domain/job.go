package domain

import (
	"errors"
	"fmt"
	"time"
)

// JobState is a step in the export of a single identifier.
type JobState string

const (
	JobStatePending        JobState = "pending"
	JobStateSelecting      JobState = "selecting"
	JobStateExporting      JobState = "exporting"
	JobStateWaitingForFile JobState = "waiting_for_file"
	JobStateRenamed        JobState = "renamed"
	JobStateTimedOut       JobState = "timed_out"
	JobStateReset          JobState = "reset"
	JobStateError          JobState = "error"
	JobStateReloaded       JobState = "reloaded"
	JobStateDone           JobState = "done"
)

// Outcome is the final result recorded for an identifier.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
)

// ErrInvalidTransition is returned by ExportJob.Advance for a move the
// state machine does not allow.
var ErrInvalidTransition = errors.New("invalid job state transition")

var transitions = map[JobState][]JobState{
	JobStatePending:        {JobStateSelecting, JobStateError},
	JobStateSelecting:      {JobStateExporting, JobStateError},
	JobStateExporting:      {JobStateWaitingForFile, JobStateError},
	JobStateWaitingForFile: {JobStateRenamed, JobStateTimedOut, JobStateError},
	JobStateRenamed:        {JobStateReset, JobStateError},
	JobStateReset:          {JobStateDone},
	JobStateTimedOut:       {JobStateDone},
	JobStateError:          {JobStateReloaded},
	JobStateReloaded:       {JobStateDone, JobStatePending},
}

// ExportJob is the loop-iteration state for one identifier. It is created
// when the identifier's turn comes and discarded once its result is recorded.
type ExportJob struct {
	ORI      string
	Position int // 0-based index in enumeration order
	Attempt  int // 1-based

	State      JobState
	History    []JobState
	Waited     time.Duration // time spent polling the staging directory
	Complete   bool
	OutputPath string
	Err        error
}

// NewExportJob creates a pending job for the first attempt at ori.
func NewExportJob(ori string, position int) *ExportJob {
	return &ExportJob{
		ORI:      ori,
		Position: position,
		Attempt:  1,
		State:    JobStatePending,
		History:  []JobState{JobStatePending},
	}
}

// Advance moves the job to the next state.
// Parameters:
//   - to: target state.
// Returns:
//   - error: wraps ErrInvalidTransition when the move is not allowed.
func (j *ExportJob) Advance(to JobState) error {
	for _, allowed := range transitions[j.State] {
		if allowed == to {
			j.State = to
			j.History = append(j.History, to)
			if to == JobStatePending {
				j.Attempt++
				j.Err = nil
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
}

// Fail records err and moves the job to the error state. A job already in
// the error state keeps its first error.
func (j *ExportJob) Fail(err error) {
	if j.State == JobStateError {
		return
	}
	j.Err = err
	// Every non-terminal state may move to error; terminal ones ignore it.
	_ = j.Advance(JobStateError)
}

// Outcome reports the job's result once it is done.
func (j *ExportJob) Outcome() Outcome {
	switch {
	case j.Complete:
		return OutcomeSucceeded
	case j.reached(JobStateTimedOut):
		return OutcomeTimedOut
	case j.reached(JobStateError):
		return OutcomeFailed
	default:
		return OutcomeSkipped
	}
}

func (j *ExportJob) reached(state JobState) bool {
	for _, s := range j.History {
		if s == state {
			return true
		}
	}
	return false
}
