package model

import "strings"

// Category is one of the four portfolio buckets a project can land in.
type Category string

const (
	CategoryWriting Category = "Writing"
	CategoryDesign  Category = "Design"
	CategoryCode    Category = "Code"
	CategoryMisc    Category = "Miscellaneous Unicorn Work"
)

// Categories lists every category in canonical order.
var Categories = []Category{CategoryWriting, CategoryDesign, CategoryCode, CategoryMisc}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryWriting, CategoryDesign, CategoryCode, CategoryMisc:
		return true
	}
	return false
}

// Slug returns the file-name form of the category, e.g. "miscellaneous_unicorn_work".
func (c Category) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(c)), " ", "_")
}

// ParseCategory accepts a wire value or a short name, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "writing":
		return CategoryWriting, true
	case "design":
		return CategoryDesign, true
	case "code":
		return CategoryCode, true
	case "miscellaneous unicorn work", "miscellaneous", "misc", "unicorn":
		return CategoryMisc, true
	}
	return "", false
}

// Source identifies where a project's evidence came from.
type Source string

const (
	SourceEmail       Source = "email"
	SourceGoogleDrive Source = "google_drive"
	SourceGoogleDocs  Source = "google_docs"
	SourceFigma       Source = "figma"
	SourceSlack       Source = "slack"
	SourceScreenshot  Source = "screenshot"
	SourceManual      Source = "manual"
	SourceFeed        Source = "feed"
	SourceGitHub      Source = "github"
)

// ParseSource maps a wire value to a Source. Unknown values map to SourceManual.
func ParseSource(s string) Source {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceEmail, SourceGoogleDrive, SourceGoogleDocs, SourceFigma, SourceSlack,
		SourceScreenshot, SourceFeed, SourceGitHub:
		return src
	}
	return SourceManual
}
