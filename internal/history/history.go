// Package history persists speed test reports to a local SQLite database so
// `netctl speed history` and `netctl speed stats` can look back at past runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"netctl/internal/speed"
)

const schema = `
CREATE TABLE IF NOT EXISTS speed_results (
	id            TEXT PRIMARY KEY,
	at            INTEGER NOT NULL,
	server        TEXT NOT NULL,
	download_mbps REAL,
	download_ok   INTEGER NOT NULL,
	upload_mbps   REAL,
	upload_ok     INTEGER NOT NULL,
	ping_ms       REAL,
	jitter_ms     REAL,
	loss_pct      REAL,
	ping_ok       INTEGER NOT NULL,
	verdict       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_speed_results_at ON speed_results(at);
`

// Record is one stored run.
type Record struct {
	ID     string
	Report speed.Report
}

// Stats aggregates a window of runs, mirroring what `speed stats` prints.
type Stats struct {
	Count       int
	AvgDownload float64
	MaxDownload float64
	MinDownload float64
	AvgUpload   float64
	MaxUpload   float64
	MinUpload   float64
	AvgPing     float64
	First       time.Time
	Last        time.Time
}

// Store wraps the database. Safe for use from one process; SQLite prefers a
// single writer, so the pool is capped at one connection.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores one report and returns its record ID.
func (s *Store) Append(ctx context.Context, rep *speed.Report) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO speed_results(id, at, server, download_mbps, download_ok,
			upload_mbps, upload_ok, ping_ms, jitter_ms, loss_pct, ping_ok, verdict)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		id, rep.Timestamp.UnixMilli(), rep.Server,
		rep.DownloadMbps, boolInt(rep.DownloadOK),
		rep.UploadMbps, boolInt(rep.UploadOK),
		rep.PingMs, rep.JitterMs, rep.LossPct, boolInt(rep.PingOK),
		string(rep.Verdict),
	)
	if err != nil {
		return "", fmt.Errorf("append history: %w", err)
	}
	return id, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Record, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, server, download_mbps, download_ok, upload_mbps, upload_ok,
			ping_ms, jitter_ms, loss_pct, ping_ok, verdict
		 FROM speed_results ORDER BY at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var at int64
		var verdict string
		var dlOK, ulOK, pingOK int
		if err := rows.Scan(&rec.ID, &at, &rec.Report.Server,
			&rec.Report.DownloadMbps, &dlOK, &rec.Report.UploadMbps, &ulOK,
			&rec.Report.PingMs, &rec.Report.JitterMs, &rec.Report.LossPct, &pingOK,
			&verdict); err != nil {
			return nil, err
		}
		rec.Report.Timestamp = time.UnixMilli(at)
		rec.Report.DownloadOK = dlOK != 0
		rec.Report.UploadOK = ulOK != 0
		rec.Report.PingOK = pingOK != 0
		rec.Report.Verdict = speed.Verdict(verdict)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StatsSince aggregates runs newer than the cutoff. Unavailable legs are
// excluded from their aggregates.
func (s *Store) StatsSince(ctx context.Context, since time.Time) (*Stats, error) {
	recs, err := s.recentSince(ctx, since)
	if err != nil {
		return nil, err
	}

	st := &Stats{}
	var dlN, ulN, pingN int
	for _, rec := range recs {
		r := rec.Report
		st.Count++
		if st.First.IsZero() || r.Timestamp.Before(st.First) {
			st.First = r.Timestamp
		}
		if r.Timestamp.After(st.Last) {
			st.Last = r.Timestamp
		}
		if r.DownloadOK {
			if dlN == 0 || r.DownloadMbps < st.MinDownload {
				st.MinDownload = r.DownloadMbps
			}
			if r.DownloadMbps > st.MaxDownload {
				st.MaxDownload = r.DownloadMbps
			}
			st.AvgDownload += r.DownloadMbps
			dlN++
		}
		if r.UploadOK {
			if ulN == 0 || r.UploadMbps < st.MinUpload {
				st.MinUpload = r.UploadMbps
			}
			if r.UploadMbps > st.MaxUpload {
				st.MaxUpload = r.UploadMbps
			}
			st.AvgUpload += r.UploadMbps
			ulN++
		}
		if r.PingOK {
			st.AvgPing += r.PingMs
			pingN++
		}
	}
	if dlN > 0 {
		st.AvgDownload /= float64(dlN)
	}
	if ulN > 0 {
		st.AvgUpload /= float64(ulN)
	}
	if pingN > 0 {
		st.AvgPing /= float64(pingN)
	}
	return st, nil
}

func (s *Store) recentSince(ctx context.Context, since time.Time) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, server, download_mbps, download_ok, upload_mbps, upload_ok,
			ping_ms, jitter_ms, loss_pct, ping_ok, verdict
		 FROM speed_results WHERE at >= ? ORDER BY at ASC`,
		since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var at int64
		var verdict string
		var dlOK, ulOK, pingOK int
		if err := rows.Scan(&rec.ID, &at, &rec.Report.Server,
			&rec.Report.DownloadMbps, &dlOK, &rec.Report.UploadMbps, &ulOK,
			&rec.Report.PingMs, &rec.Report.JitterMs, &rec.Report.LossPct, &pingOK,
			&verdict); err != nil {
			return nil, err
		}
		rec.Report.Timestamp = time.UnixMilli(at)
		rec.Report.DownloadOK = dlOK != 0
		rec.Report.UploadOK = ulOK != 0
		rec.Report.PingOK = pingOK != 0
		rec.Report.Verdict = speed.Verdict(verdict)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
