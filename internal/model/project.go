package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidProject is returned by Validate for projects missing required fields.
var ErrInvalidProject = errors.New("invalid project")

// Project is a single piece of past work recovered from some source.
type Project struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    Category       `json:"category"`
	Source      Source         `json:"source"`
	Date        time.Time      `json:"date"`
	Tags        []string       `json:"tags,omitempty"`
	Images      []string       `json:"images,omitempty"`
	Links       []string       `json:"links,omitempty"`
	Client      string         `json:"client,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Raw         map[string]any `json:"raw_data,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// NewProject creates a project stamped with a time-ordered ID and the current date.
func NewProject(title, description string, category Category, source Source) *Project {
	if !category.Valid() {
		category = CategoryMisc
	}
	return &Project{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Category:    category,
		Source:      source,
		Date:        time.Now(),
	}
}

// NewID returns a UUIDv7 string. Falls back to a random UUID if the clock read fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SetConfidence stores v clamped to [0, 1].
func (p *Project) SetConfidence(v float64) {
	p.Confidence = clamp01(v)
}

// Boost raises confidence by delta, capped at 1.0.
func (p *Project) Boost(delta float64) {
	p.Confidence = clamp01(p.Confidence + delta)
}

// Validate checks the required fields.
func (p *Project) Validate() error {
	var missing []string
	if strings.TrimSpace(p.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(p.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	if !p.Category.Valid() {
		return &ValidationError{Fields: []string{"category"}}
	}
	return nil
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid project: missing or bad " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidProject }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
