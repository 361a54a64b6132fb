package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/TobiSchelling/portfolio-necromancer/internal/collect"
	"github.com/TobiSchelling/portfolio-necromancer/internal/database"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
	"github.com/TobiSchelling/portfolio-necromancer/internal/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("5")).
			Padding(0, 2)
)

func renderSummary(r *pipeline.Result) string {
	pf := r.Portfolio
	var b strings.Builder

	b.WriteString(titleStyle.Render("Portfolio Successfully Resurrected!") + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Owner:"), pf.OwnerName)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("Total Projects:"), len(pf.Projects))
	if r.Dropped > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("(%d more left out by the %d-project limit)", r.Dropped, model.FreeTierLimit)) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("Projects by Category:") + "\n")
	counts := pf.CountByCategory()
	for _, c := range model.Categories {
		if counts[c] > 0 {
			fmt.Fprintf(&b, "  • %s: %d\n", c, counts[c])
		}
	}

	fmt.Fprintf(&b, "\n%s %s\n", labelStyle.Render("Portfolio Location:"), r.OutputPath)
	b.WriteString("Open index.html in your browser to view\n")
	if r.PublishedTo != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Published to:"), r.PublishedTo)
	}
	for _, w := range r.Warnings {
		b.WriteString(warnStyle.Render("Warning: "+w) + "\n")
	}
	if !pf.CustomBranding {
		b.WriteString("\n" + dimStyle.Render("Tip: Upgrade to Pro to remove watermark and add custom branding!") + "\n")
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func renderSources(sources []collect.Source) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Evidence sources") + "\n\n")
	for _, s := range sources {
		var state string
		switch {
		case collect.CanScrape(s):
			state = okStyle.Render("ready")
		case !s.Enabled():
			state = dimStyle.Render("disabled")
		default:
			state = warnStyle.Render("not configured")
		}
		fmt.Fprintf(&b, "  %-14s %s\n", s.Name(), state)
	}
	return b.String()
}

func renderStatus(stats *database.Stats, runs []database.Run) string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Runs:") + "\n")
	fmt.Fprintf(&b, "  Total: %d\n", stats.TotalRuns)
	fmt.Fprintf(&b, "  Successful: %d\n", stats.SuccessfulRuns)
	fmt.Fprintf(&b, "  Empty: %d\n", stats.EmptyRuns)
	fmt.Fprintf(&b, "  Failed: %d\n", stats.FailedRuns)
	if stats.LastRunAt != nil {
		fmt.Fprintf(&b, "  Last run: %s\n", stats.LastRunAt.Local().Format("2006-01-02 15:04"))
	}

	b.WriteString("\n" + labelStyle.Render("Projects recorded:") + "\n")
	fmt.Fprintf(&b, "  Total: %d\n", stats.TotalProjects)
	for _, c := range model.Categories {
		if n := stats.ProjectsByCategory[string(c)]; n > 0 {
			fmt.Fprintf(&b, "  %s: %d\n", c, n)
		}
	}

	if len(runs) > 0 {
		b.WriteString("\n" + labelStyle.Render("Recent:") + "\n")
		for _, r := range runs {
			line := fmt.Sprintf("  [%d] %s  %-7s %2d projects  %s",
				r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Status, r.ProjectCount, r.OutputPath)
			if r.PublishedTo != nil {
				line += "  -> " + *r.PublishedTo
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// parseValue turns a command-line string into an int, bool or string.
func parseValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// reportError prints a command error. An empty run has already explained
// itself, so only its exit status is kept.
func reportError(w io.Writer, err error) {
	if errors.Is(err, errNoProjects) {
		return
	}
	fmt.Fprintln(w, "Error:", err)
}
