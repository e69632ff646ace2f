package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func historyFixture(now time.Time) []HistoryRecord {
	return []HistoryRecord{
		{
			SessionID:  "s1",
			Strategy:   StrategyFull,
			Status:     StatusCompleted,
			StartTime:  now.Add(-3 * time.Hour),
			EndTime:    now.Add(-3 * time.Hour).Add(40 * time.Second),
			DurationMs: 40_000,
			Categories: []DataCategory{CategoryBusinessInfo, CategoryReviews},
		},
		{
			SessionID:  "s2",
			Strategy:   StrategyIncremental,
			Status:     StatusCompleted,
			StartTime:  now.Add(-2 * time.Hour),
			EndTime:    now.Add(-2 * time.Hour).Add(20 * time.Second),
			DurationMs: 20_000,
			Categories: []DataCategory{CategoryReviews},
		},
		{
			SessionID:  "s3",
			Strategy:   StrategyIncremental,
			Status:     StatusFailed,
			StartTime:  now.Add(-time.Hour),
			EndTime:    now.Add(-time.Hour).Add(5 * time.Second),
			DurationMs: 5_000,
			Categories: []DataCategory{CategoryReviews},
			Errors: []SyncError{
				{Code: "CATEGORY_SYNC_FAILED", Message: "status 503", Category: CategoryReviews, Retryable: true},
			},
		},
	}
}

func TestGenerateSyncReportAggregates(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)
	now := time.Now()
	env.history.records = historyFixture(now)

	report, err := env.service.GenerateSyncReport(context.Background(), biz.ID.Hex(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("GenerateSyncReport: %v", err)
	}

	if report.TotalRuns != 3 {
		t.Errorf("TotalRuns = %d, want 3", report.TotalRuns)
	}
	if report.SuccessfulRuns != 2 || report.FailedRuns != 1 {
		t.Errorf("runs = %d/%d, want 2 successful and 1 failed", report.SuccessfulRuns, report.FailedRuns)
	}
	if want := int64((40_000 + 20_000 + 5_000) / 3); report.AverageDurationMs != want {
		t.Errorf("AverageDurationMs = %d, want %d", report.AverageDurationMs, want)
	}
	if report.MostSyncedCategory != CategoryReviews {
		t.Errorf("MostSyncedCategory = %q, want reviews", report.MostSyncedCategory)
	}
	if len(report.RecentErrors) != 1 || report.RecentErrors[0].Code != "CATEGORY_SYNC_FAILED" {
		t.Errorf("RecentErrors = %v", report.RecentErrors)
	}

	// One failure in three runs is a 33% failure rate.
	if !containsRecommendation(report.Recommendations, "failure rate") {
		t.Errorf("Recommendations = %v, want a failure-rate entry", report.Recommendations)
	}
	if containsRecommendation(report.Recommendations, "exceeds 60s") {
		t.Errorf("Recommendations = %v, average is well under 60s", report.Recommendations)
	}
	if containsRecommendation(report.Recommendations, "24 hours") {
		t.Errorf("Recommendations = %v, last success was 2 hours ago", report.Recommendations)
	}
}

func TestBuildRecommendations(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name        string
		report      *Report
		lastSuccess time.Time
		want        []string
		wantAbsent  []string
	}{
		{
			name:        "healthy history",
			report:      &Report{TotalRuns: 10, SuccessfulRuns: 10, AverageDurationMs: 8_000},
			lastSuccess: now.Add(-time.Hour),
		},
		{
			name:        "high failure rate",
			report:      &Report{TotalRuns: 10, SuccessfulRuns: 8, FailedRuns: 2, AverageDurationMs: 8_000},
			lastSuccess: now.Add(-time.Hour),
			want:        []string{"failure rate is 20%"},
		},
		{
			name:        "ten percent is not flagged",
			report:      &Report{TotalRuns: 10, SuccessfulRuns: 9, FailedRuns: 1, AverageDurationMs: 8_000},
			lastSuccess: now.Add(-time.Hour),
			wantAbsent:  []string{"failure rate"},
		},
		{
			name:        "slow syncs",
			report:      &Report{TotalRuns: 5, SuccessfulRuns: 5, AverageDurationMs: 75_000},
			lastSuccess: now.Add(-time.Hour),
			want:        []string{"incremental or selective"},
		},
		{
			name:        "stale success",
			report:      &Report{TotalRuns: 5, SuccessfulRuns: 5, AverageDurationMs: 8_000},
			lastSuccess: now.Add(-48 * time.Hour),
			want:        []string{"24 hours"},
		},
		{
			name:   "no runs produce no noise",
			report: &Report{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := buildRecommendations(tt.report, tt.lastSuccess)
			for _, want := range tt.want {
				if !containsRecommendation(recs, want) {
					t.Errorf("recommendations = %v, want one containing %q", recs, want)
				}
			}
			for _, absent := range tt.wantAbsent {
				if containsRecommendation(recs, absent) {
					t.Errorf("recommendations = %v, want none containing %q", recs, absent)
				}
			}
			if tt.want == nil && tt.wantAbsent == nil && len(recs) != 0 {
				t.Errorf("recommendations = %v, want none", recs)
			}
		})
	}
}

func TestExportSyncReportProducesWorkbook(t *testing.T) {
	biz := testBusiness()
	env := newTestEnv(biz)
	env.history.records = historyFixture(time.Now())

	data, err := env.service.ExportSyncReport(context.Background(), biz.ID.Hex(), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ExportSyncReport: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}
	// An xlsx file is a zip archive.
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Errorf("unexpected file header %q", data[:2])
	}
}

func containsRecommendation(recs []string, substr string) bool {
	for _, r := range recs {
		if strings.Contains(r, substr) {
			return true
		}
	}
	return false
}
