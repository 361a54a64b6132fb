package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
)

func TestRenderSummary(t *testing.T) {
	projects := []*model.Project{
		model.NewProject("API", "d", model.CategoryCode, model.SourceGitHub),
		model.NewProject("Logo", "d", model.CategoryDesign, model.SourceFigma),
	}
	pf := model.NewPortfolio("Ada Lovelace", "ada@example.com", "Engineer", projects)
	out := renderSummary(&pipeline.Result{
		Status:     pipeline.StatusSuccess,
		OutputPath: "/tmp/out/ada",
		Portfolio:  pf,
		Dropped:    3,
		Warnings:   []string{"publish failed: refused"},
	})

	for _, want := range []string{"Ada Lovelace", "Total Projects:", "Code: 1", "Design: 1", "/tmp/out/ada", "3 more", "refused", "Upgrade to Pro"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Writing:") {
		t.Error("empty categories should be omitted")
	}
}

func TestRenderStatus(t *testing.T) {
	last := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	target := "sftp://h/ada"
	out := renderStatus(
		&database.Stats{TotalRuns: 2, SuccessfulRuns: 1, EmptyRuns: 1, TotalProjects: 4,
			ProjectsByCategory: map[string]int{"Code": 4}, LastRunAt: &last},
		[]database.Run{{ID: 7, Status: "success", ProjectCount: 4, StartedAt: last, PublishedTo: &target}},
	)
	for _, want := range []string{"Total: 2", "Empty: 1", "Code: 4", "[7]", "-> sftp://h/ada"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status:\n%s", want, out)
		}
	}
}

func TestParseValue(t *testing.T) {
	if v := parseValue("true"); v != true {
		t.Errorf("expected bool, got %#v", v)
	}
	if v := parseValue("42"); v != 42 {
		t.Errorf("expected int, got %#v", v)
	}
	if v := parseValue("Ada"); v != "Ada" {
		t.Errorf("expected string, got %#v", v)
	}
}

func TestReportErrorSkipsEmptyRun(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, errNoProjects)
	reportError(&buf, fmt.Errorf("run: %w", errNoProjects))
	if buf.Len() != 0 {
		t.Errorf("expected no output for an empty run, got %q", buf.String())
	}
}

func TestReportErrorPrintsFailures(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, errors.New("rendering failed: disk full"))
	if got := buf.String(); got != "Error: rendering failed: disk full\n" {
		t.Errorf("unexpected output %q", got)
	}
}
