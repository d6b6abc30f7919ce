package history

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"netctl/internal/speed"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(at time.Time, dl, ul, ping float64) *speed.Report {
	return &speed.Report{
		Timestamp: at, Server: "test",
		DownloadMbps: dl, DownloadOK: true,
		UploadMbps: ul, UploadOK: true,
		PingMs: ping, PingOK: true,
		Verdict: speed.VerdictGood,
	}
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		id, err := s.Append(ctx, report(base.Add(time.Duration(i)*time.Hour), 100+float64(i), 20, 12))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if id == "" {
			t.Fatal("empty record id")
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	// Newest first.
	if recs[0].Report.DownloadMbps != 102 || recs[1].Report.DownloadMbps != 101 {
		t.Fatalf("order wrong: %v then %v", recs[0].Report.DownloadMbps, recs[1].Report.DownloadMbps)
	}
	got := recs[0].Report
	if !got.Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, base.Add(2*time.Hour))
	}
	if got.Server != "test" || !got.DownloadOK || got.Verdict != speed.VerdictGood {
		t.Fatalf("fields lost in roundtrip: %+v", got)
	}
}

func TestStatsSince(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	seed := []struct{ dl, ul, ping float64 }{
		{100, 20, 10},
		{200, 40, 20},
		{300, 60, 30},
	}
	for i, v := range seed {
		if _, err := s.Append(ctx, report(base.Add(time.Duration(i)*time.Hour), v.dl, v.ul, v.ping)); err != nil {
			t.Fatal(err)
		}
	}
	// A run outside the window must not count.
	if _, err := s.Append(ctx, report(base.Add(-48*time.Hour), 1, 1, 1)); err != nil {
		t.Fatal(err)
	}
	// A run with a failed download leg counts for upload/ping only.
	broken := report(base.Add(3*time.Hour), 0, 80, 40)
	broken.DownloadOK = false
	if _, err := s.Append(ctx, broken); err != nil {
		t.Fatal(err)
	}

	st, err := s.StatsSince(ctx, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("StatsSince: %v", err)
	}
	if st.Count != 4 {
		t.Fatalf("Count = %d, want 4", st.Count)
	}
	if st.AvgDownload != 200 {
		t.Fatalf("AvgDownload = %v, want 200 (unavailable leg excluded)", st.AvgDownload)
	}
	if st.MinDownload != 100 || st.MaxDownload != 300 {
		t.Fatalf("download min/max = %v/%v", st.MinDownload, st.MaxDownload)
	}
	if st.AvgUpload != 50 {
		t.Fatalf("AvgUpload = %v, want 50", st.AvgUpload)
	}
	if math.Abs(st.AvgPing-25) > 1e-9 {
		t.Fatalf("AvgPing = %v, want 25", st.AvgPing)
	}
	if !st.First.Equal(base) || !st.Last.Equal(base.Add(3*time.Hour)) {
		t.Fatalf("window = %v .. %v", st.First, st.Last)
	}
}

func TestStatsEmptyWindow(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	st, err := s.StatsSince(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("StatsSince: %v", err)
	}
	if st.Count != 0 {
		t.Fatalf("Count = %d, want 0", st.Count)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(""); err == nil {
		t.Fatal("Open(\"\") should fail")
	}
}
