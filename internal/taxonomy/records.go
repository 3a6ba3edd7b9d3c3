package taxonomy

import "time"

// RecordStatus tracks the lifecycle of an organized file record.
type RecordStatus string

const (
	StatusMoved   RecordStatus = "moved"
	StatusTracked RecordStatus = "tracked"
	StatusUndone  RecordStatus = "undone"
	StatusDeleted RecordStatus = "deleted"
)

// FileMetadata is captured at move time and stored as JSON.
type FileMetadata struct {
	Size         int64     `json:"size"`
	ModTime      time.Time `json:"mod_time,omitzero"`
	Extension    string    `json:"extension,omitempty"`
	TypeCategory string    `json:"type,omitempty"`
	CrossDevice  bool      `json:"cross_device,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
}

// OrganizedFileRecord is the durable audit entry written for every move.
type OrganizedFileRecord struct {
	ID           int64
	Filename     string
	OriginalPath string
	CurrentPath  string
	FolderNumber string
	RuleID       *int64
	Metadata     FileMetadata
	Status       RecordStatus
	OrganizedAt  time.Time
	UpdatedAt    time.Time
}

// WatchedFolderConfig is a persisted monitored directory.
type WatchedFolderConfig struct {
	ID                    int64
	Path                  string
	Active                bool
	AutoOrganize          bool
	ConfidenceThreshold   Confidence
	IncludeSubdirectories bool
	FileTypes             []string
	NotifyOnOrganize      bool
	FilesProcessed        int64
	FilesOrganized        int64
	LastCheckedAt         *time.Time
	CreatedAt             time.Time
}

// ActivityAction names a decision point in the watch pipeline.
type ActivityAction string

const (
	ActionDetected      ActivityAction = "detected"
	ActionQueued        ActivityAction = "queued"
	ActionAutoOrganized ActivityAction = "auto_organized"
	ActionSkipped       ActivityAction = "skipped"
	ActionError         ActivityAction = "error"
)

// WatchActivityEntry is an append-only pipeline log row.
type WatchActivityEntry struct {
	ID           int64
	FolderID     int64
	Filename     string
	Path         string
	Action       ActivityAction
	RuleID       *int64
	TargetFolder string
	ErrorMessage string
	CreatedAt    time.Time
}
