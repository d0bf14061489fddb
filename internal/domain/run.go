package domain

import "time"

// RunStatus represents the status of a sweep run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// ExportRun is the history record of one sweep over the agency list.
// It is written for reporting only; a new run never reads it back.
type ExportRun struct {
	ID            string     `gorm:"type:text;primaryKey" json:"id"`
	PortalURL     string     `gorm:"type:text" json:"portal_url"`
	FileType      string     `gorm:"type:text;not null" json:"file_type"`
	ExamplePrefix string     `gorm:"type:text;not null" json:"example_prefix"`
	Status        RunStatus  `gorm:"type:text;default:running;index" json:"status"`
	TotalItems    int        `gorm:"default:0" json:"total_items"`
	Succeeded     int        `gorm:"default:0" json:"succeeded"`
	TimedOut      int        `gorm:"default:0" json:"timed_out"`
	Failed        int        `gorm:"default:0" json:"failed"`
	Skipped       int        `gorm:"default:0" json:"skipped"`
	ErrorLog      string     `json:"error_log,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ExportRun.
func (ExportRun) TableName() string {
	return "export_runs"
}

// ExportResult is the recorded outcome for one identifier within a run.
type ExportResult struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"type:text;not null;index:idx_run_position" json:"run_id"`
	Position   int       `gorm:"not null;index:idx_run_position" json:"position"`
	ORI        string    `gorm:"type:text;not null;index" json:"ori"`
	Outcome    Outcome   `gorm:"type:text;not null" json:"outcome"`
	Attempts   int       `gorm:"default:1" json:"attempts"`
	OutputPath string    `gorm:"type:text" json:"output_path,omitempty"`
	ObjectKey  string    `gorm:"type:text" json:"object_key,omitempty"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for ExportResult.
func (ExportResult) TableName() string {
	return "export_results"
}

// Tally adds a result's outcome to the run counters.
func (r *ExportRun) Tally(outcome Outcome) {
	switch outcome {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeTimedOut:
		r.TimedOut++
	case OutcomeFailed:
		r.Failed++
	case OutcomeSkipped:
		r.Skipped++
	}
}
