package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/harvesthorizon/internal/climate"
)

// FetchRun is one NASA POWER request, kept for auditing.
type FetchRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	LocationID        string
	WindowStart       time.Time
	WindowEnd         time.Time
	HTTPStatus        sql.NullInt64
	ResponseSizeBytes sql.NullInt64
	DaysParsed        sql.NullInt64
	Success           bool
	ErrorMessage      sql.NullString
}

// ArchiveFetch records an upstream attempt and archives its body.
// It satisfies climate.Archive.
func (s *Store) ArchiveFetch(rec climate.FetchRecord, payload []byte) error {
	run := FetchRun{
		StartedAt:   rec.StartedAt,
		FinishedAt:  sql.NullTime{Time: rec.FinishedAt, Valid: !rec.FinishedAt.IsZero()},
		LocationID:  rec.LocationID,
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
		Success:     rec.Success,
	}
	if rec.HTTPStatus != 0 {
		run.HTTPStatus = sql.NullInt64{Int64: int64(rec.HTTPStatus), Valid: true}
	}
	run.ResponseSizeBytes = sql.NullInt64{Int64: int64(rec.ResponseSize), Valid: true}
	run.DaysParsed = sql.NullInt64{Int64: int64(rec.DaysParsed), Valid: true}
	if rec.Error != "" {
		run.ErrorMessage = sql.NullString{String: rec.Error, Valid: true}
	}

	id, err := s.InsertFetchRun(run)
	if err != nil {
		return fmt.Errorf("insert fetch run: %w", err)
	}
	if rec.Success && len(payload) > 0 {
		if _, err := s.StoreRawPayload(&id, rec.LocationID, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertFetchRun(run FetchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, finished_at, location_id, window_start, window_end,
			http_status, response_size_bytes, days_parsed, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.StartedAt, run.FinishedAt, run.LocationID, run.WindowStart.Format("2006-01-02"), run.WindowEnd.Format("2006-01-02"),
		run.HTTPStatus, run.ResponseSizeBytes, run.DaysParsed, run.Success, run.ErrorMessage)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FetchHealthSummary aggregates fetch runs per day and location.
type FetchHealthSummary struct {
	Date        string `json:"date"`
	LocationID  string `json:"location_id"`
	TotalRuns   int    `json:"total_runs"`
	SuccessRuns int    `json:"success_runs"`
	FailedRuns  int    `json:"failed_runs"`
	DaysParsed  int64  `json:"days_parsed"`
}

// FetchHealth returns per-day summaries for the last N days, newest first.
func (s *Store) FetchHealth(days int) ([]FetchHealthSummary, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			location_id,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(days_parsed), 0) as days_parsed
		FROM fetch_runs
		WHERE started_at > ?
		GROUP BY date, location_id
		ORDER BY date DESC, location_id
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealthSummary
	for rows.Next() {
		var h FetchHealthSummary
		if err := rows.Scan(&h.Date, &h.LocationID, &h.TotalRuns, &h.SuccessRuns, &h.FailedRuns, &h.DaysParsed); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// RecentFetchErrors returns the latest failed fetch runs.
func (s *Store) RecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, location_id, http_status, response_size_bytes,
			days_parsed, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.LocationID, &r.HTTPStatus,
			&r.ResponseSizeBytes, &r.DaysParsed, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
