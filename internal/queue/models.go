package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a queued subject.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPreprocessing Status = "preprocessing"
	StatusPreprocessed  Status = "preprocessed"
	StatusSeeding       Status = "seeding"
	StatusSeeded        Status = "seeded"
	StatusTracking      Status = "tracking"
	StatusTracked       Status = "tracked"
	StatusConnecting    Status = "connecting"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
	StatusReview        Status = "review"
)

// RunnerStopReason is the error message set on in-flight items when the
// batch runner shuts down.
const RunnerStopReason = "Batch runner stopped"

var allStatuses = []Status{
	StatusPending,
	StatusPreprocessing,
	StatusPreprocessed,
	StatusSeeding,
	StatusSeeded,
	StatusTracking,
	StatusTracked,
	StatusConnecting,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPreprocessing: {},
	StatusSeeding:       {},
	StatusTracking:      {},
	StatusConnecting:    {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions map each in-flight status back to the start of
// its stage, used when reclaiming items whose runner died mid-stage.
var stageRollbackTransitions = []statusTransition{
	{from: StatusPreprocessing, to: StatusPending},
	{from: StatusSeeding, to: StatusPreprocessed},
	{from: StatusTracking, to: StatusSeeded},
	{from: StatusConnecting, to: StatusTracked},
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Item represents a queued subject persisted in SQLite.
type Item struct {
	ID              int64
	SubjectID       string
	AnatPath        string
	BedpostxDir     string
	Parcellation    string
	Status          Status
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the item is mid-stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SetFailed marks the item as failed with the given error message and clears
// its heartbeat.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressStage = "Failed"
	i.ProgressMessage = message
	i.LastHeartbeat = nil
}

// MarkReview flags the item for manual intervention with a reason.
func (i *Item) MarkReview(reason string) {
	i.Status = StatusReview
	i.NeedsReview = true
	i.ReviewReason = reason
	i.LastHeartbeat = nil
}

// SetProgress updates the presentation fields for the current stage.
func (i *Item) SetProgress(stage, message string) {
	i.ProgressStage = stage
	i.ProgressMessage = message
}
