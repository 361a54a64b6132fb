package model

import (
	"errors"
	"fmt"
	"testing"
)

func makeProjects(n int) []*Project {
	cats := []Category{CategoryWriting, CategoryDesign, CategoryCode, CategoryMisc}
	out := make([]*Project, n)
	for i := range out {
		out[i] = NewProject(fmt.Sprintf("P%d", i), "desc", cats[i%len(cats)], SourceManual)
	}
	return out
}

func TestCountByCategorySumsToTotal(t *testing.T) {
	p := NewPortfolio("Ada", "ada@example.com", "Engineer", makeProjects(7))

	counts := p.CountByCategory()
	if len(counts) != 4 {
		t.Fatalf("expected all 4 categories present, got %d", len(counts))
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total != len(p.Projects) {
		t.Errorf("expected counts to sum to %d, got %d", len(p.Projects), total)
	}
	if counts[CategoryWriting] != 2 {
		t.Errorf("expected 2 writing, got %d", counts[CategoryWriting])
	}
}

func TestApplyTierCapKeepsFirstTwenty(t *testing.T) {
	projects := makeProjects(25)
	p := NewPortfolio("Ada", "ada@example.com", "Engineer", projects)

	dropped := p.ApplyTierCap(false)
	if dropped != 5 {
		t.Errorf("expected 5 dropped, got %d", dropped)
	}
	if len(p.Projects) != FreeTierLimit {
		t.Fatalf("expected %d projects, got %d", FreeTierLimit, len(p.Projects))
	}
	for i, proj := range p.Projects {
		if proj != projects[i] {
			t.Errorf("project %d out of order", i)
		}
	}
}

func TestApplyTierCapUnlimited(t *testing.T) {
	p := NewPortfolio("Ada", "ada@example.com", "Engineer", makeProjects(25))
	if dropped := p.ApplyTierCap(true); dropped != 0 {
		t.Errorf("expected nothing dropped, got %d", dropped)
	}
	if len(p.Projects) != 25 {
		t.Errorf("expected 25 projects, got %d", len(p.Projects))
	}
}

func TestConfidenceClamped(t *testing.T) {
	p := NewProject("T", "D", CategoryCode, SourceManual)
	p.SetConfidence(1.7)
	if p.Confidence != 1 {
		t.Errorf("expected 1, got %v", p.Confidence)
	}
	p.SetConfidence(-0.2)
	if p.Confidence != 0 {
		t.Errorf("expected 0, got %v", p.Confidence)
	}
	p.SetConfidence(0.9)
	p.Boost(0.2)
	if p.Confidence != 1 {
		t.Errorf("expected boost capped at 1, got %v", p.Confidence)
	}
}

func TestNewProjectIDsAreUnique(t *testing.T) {
	a := NewProject("A", "D", CategoryCode, SourceManual)
	b := NewProject("B", "D", CategoryCode, SourceManual)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestParseCategory(t *testing.T) {
	tests := map[string]Category{
		"Writing":                    CategoryWriting,
		"design":                     CategoryDesign,
		" CODE ":                     CategoryCode,
		"Miscellaneous Unicorn Work": CategoryMisc,
		"misc":                       CategoryMisc,
	}
	for in, want := range tests {
		got, ok := ParseCategory(in)
		if !ok || got != want {
			t.Errorf("ParseCategory(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseCategory("poetry"); ok {
		t.Error("expected unknown category to be rejected")
	}
}

func TestCategorySlug(t *testing.T) {
	if got := CategoryMisc.Slug(); got != "miscellaneous_unicorn_work" {
		t.Errorf("unexpected slug %q", got)
	}
	if got := CategoryWriting.Slug(); got != "writing" {
		t.Errorf("unexpected slug %q", got)
	}
}

func TestValidate(t *testing.T) {
	p := &Project{Category: CategoryCode}
	err := p.Validate()
	if !errors.Is(err, ErrInvalidProject) {
		t.Fatalf("expected ErrInvalidProject, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Errorf("expected two missing fields, got %v", err)
	}

	p = NewProject("Title", "Desc", CategoryCode, SourceManual)
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
