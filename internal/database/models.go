package database

import "time"

// Run statuses.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
)

// Run is one recorded resurrection.
type Run struct {
	ID             int64
	OutputName     string
	OutputPath     string
	Status         string
	ProjectCount   int
	SourceCounts   map[string]int
	CategoryCounts map[string]int
	StartedAt      time.Time
	Duration       time.Duration
	PublishedTo    *string
}

// RunProject is a project as it appeared in a run's portfolio.
type RunProject struct {
	RunID      int64
	Position   int
	ProjectID  string
	Title      string
	Category   string
	Source     string
	Confidence float64
	Summary    string
}

// Stats contains aggregate history statistics.
type Stats struct {
	TotalRuns          int
	SuccessfulRuns     int
	EmptyRuns          int
	FailedRuns         int
	TotalProjects      int
	ProjectsByCategory map[string]int
	LastRunAt          *time.Time
}
