package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const runColumns = `id, output_name, output_path, status, project_count, source_counts,
	category_counts, started_at, duration_ms, published_to`

// InsertRun records a run and its projects in one transaction and returns the run ID.
func (db *DB) InsertRun(run *Run, projects []RunProject) (int64, error) {
	sources, err := json.Marshal(run.SourceCounts)
	if err != nil {
		return 0, fmt.Errorf("encoding source counts: %w", err)
	}
	categories, err := json.Marshal(run.CategoryCounts)
	if err != nil {
		return 0, fmt.Errorf("encoding category counts: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO runs
		(output_name, output_path, status, project_count, source_counts, category_counts, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.OutputName, run.OutputPath, run.Status, run.ProjectCount, string(sources), string(categories),
		run.StartedAt.UTC().Format(time.RFC3339), run.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_projects
		(run_id, position, project_id, title, category, source, confidence, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, p := range projects {
		if _, err := stmt.Exec(id, i, p.ProjectID, p.Title, p.Category, p.Source, p.Confidence, p.Summary); err != nil {
			return 0, fmt.Errorf("inserting project %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// MarkPublished records where a run's site was uploaded.
func (db *DB) MarkPublished(runID int64, target string) error {
	_, err := db.conn.Exec("UPDATE runs SET published_to = ? WHERE id = ?", target, runID)
	return err
}

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(id int64) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRunByOutput returns the latest run that wrote outputName, or nil.
func (db *DB) GetRunByOutput(outputName string) (*Run, error) {
	row := db.conn.QueryRow(
		"SELECT "+runColumns+" FROM runs WHERE output_name = ? ORDER BY id DESC LIMIT 1", outputName,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRecentRuns returns up to limit runs, newest first.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query("SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRunProjects returns a run's projects in portfolio order.
func (db *DB) GetRunProjects(runID int64) ([]RunProject, error) {
	rows, err := db.conn.Query(
		`SELECT run_id, position, project_id, title, category, source, confidence, COALESCE(summary, '')
		FROM run_projects WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []RunProject
	for rows.Next() {
		var p RunProject
		if err := rows.Scan(&p.RunID, &p.Position, &p.ProjectID, &p.Title, &p.Category,
			&p.Source, &p.Confidence, &p.Summary); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetStats returns aggregate history statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{ProjectsByCategory: make(map[string]int)}

	var lastRun sql.NullString
	err := db.conn.QueryRow(`SELECT
		COUNT(*),
		COALESCE(SUM(status = 'success'), 0),
		COALESCE(SUM(status = 'empty'), 0),
		COALESCE(SUM(status = 'failed'), 0),
		MAX(started_at)
		FROM runs`,
	).Scan(&s.TotalRuns, &s.SuccessfulRuns, &s.EmptyRuns, &s.FailedRuns, &lastRun)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		if t, err := time.Parse(time.RFC3339, lastRun.String); err == nil {
			s.LastRunAt = &t
		}
	}

	rows, err := db.conn.Query("SELECT category, COUNT(*) FROM run_projects GROUP BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		s.ProjectsByCategory[cat] = n
		s.TotalProjects += n
	}
	return s, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r          Run
		outputPath sql.NullString
		sources    sql.NullString
		categories sql.NullString
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&r.ID, &r.OutputName, &outputPath, &r.Status, &r.ProjectCount,
		&sources, &categories, &startedAt, &durationMS, &r.PublishedTo); err != nil {
		return nil, err
	}

	r.OutputPath = outputPath.String
	r.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		r.StartedAt = t
	}
	r.SourceCounts = decodeCounts(sources)
	r.CategoryCounts = decodeCounts(categories)
	return &r, nil
}

func decodeCounts(v sql.NullString) map[string]int {
	counts := make(map[string]int)
	if v.Valid && v.String != "" {
		json.Unmarshal([]byte(v.String), &counts)
	}
	return counts
}
