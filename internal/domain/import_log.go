package domain

import "time"

// OperationType is the kind of pipeline run an ImportLog describes.
type OperationType string

const (
	OperationImport OperationType = "import"
	OperationSync   OperationType = "sync"
	OperationRemap  OperationType = "remap"
)

// RunStatus represents the status of a pipeline run.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// ImportLog is the append-only audit record of one pipeline run.
// It is created when the run starts and finalized exactly once.
type ImportLog struct {
	ID            string        `gorm:"type:text;primaryKey" json:"id"`
	Source        string        `gorm:"type:text;not null;index:idx_import_logs_source" json:"source"`
	OperationType OperationType `gorm:"type:text;not null" json:"operation_type"`
	Status        RunStatus     `gorm:"type:text;default:running" json:"status"`

	TotalChecked    int `gorm:"default:0" json:"total_checked"`
	StillActive     int `gorm:"default:0" json:"still_active"`
	RemovedAtSource int `gorm:"default:0" json:"removed_at_source"`
	MarkedFilled    int `gorm:"default:0" json:"marked_filled"`
	Reactivated     int `gorm:"default:0" json:"reactivated"`

	TotalItems int `gorm:"default:0" json:"total_items"`
	Inserted   int `gorm:"default:0" json:"inserted"`
	Updated    int `gorm:"default:0" json:"updated"`
	Failed     int `gorm:"default:0" json:"failed"`

	Notes       string     `gorm:"type:text" json:"notes,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName returns the database table name for ImportLog.
func (ImportLog) TableName() string {
	return "import_logs"
}

// StatusFor picks the terminal status for a run that saw failed records.
func StatusFor(failed int) RunStatus {
	if failed > 0 {
		return RunStatusCompletedWithErrors
	}
	return RunStatusCompleted
}
