package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const reportHistoryLimit = 500

// GenerateSyncReport aggregates history records in the given window into
// run counts, duration averages and operational recommendations.
func (s *SyncServiceImpl) GenerateSyncReport(ctx context.Context, businessID string, start, end time.Time) (*Report, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}

	records, err := s.history.List(ctx, businessID, HistoryQuery{
		Limit: reportHistoryLimit,
		Start: start,
		End:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	report := &Report{
		BusinessID:     businessID,
		RangeStart:     start,
		RangeEnd:       end,
		TotalRuns:      len(records),
		CategoryCounts: map[string]int{},
	}

	var totalDuration int64
	var lastSuccess time.Time
	for _, rec := range records {
		totalDuration += rec.DurationMs
		if rec.Status == StatusCompleted {
			report.SuccessfulRuns++
			if rec.EndTime.After(lastSuccess) {
				lastSuccess = rec.EndTime
			}
		} else {
			report.FailedRuns++
		}
		for _, cat := range rec.Categories {
			report.CategoryCounts[string(cat)]++
		}
		for _, e := range rec.Errors {
			if len(report.RecentErrors) < 5 {
				report.RecentErrors = append(report.RecentErrors, e)
			}
		}
	}

	if report.TotalRuns > 0 {
		report.AverageDurationMs = totalDuration / int64(report.TotalRuns)
	}

	best := 0
	for cat, count := range report.CategoryCounts {
		if count > best {
			best = count
			report.MostSyncedCategory = DataCategory(cat)
		}
	}

	report.Recommendations = buildRecommendations(report, lastSuccess)
	return report, nil
}

func buildRecommendations(report *Report, lastSuccess time.Time) []string {
	var recs []string

	if report.TotalRuns > 0 {
		failureRate := float64(report.FailedRuns) / float64(report.TotalRuns)
		if failureRate > 0.10 {
			recs = append(recs, fmt.Sprintf(
				"failure rate is %.0f%%; review recent errors and check the listing provider connection",
				failureRate*100))
		}
	}

	if report.AverageDurationMs > 60_000 {
		recs = append(recs,
			"average sync duration exceeds 60s; consider an incremental or selective strategy")
	}

	if report.TotalRuns > 0 && time.Since(lastSuccess) > 24*time.Hour {
		recs = append(recs,
			"no successful sync in the last 24 hours; verify credentials and connectivity")
	}

	return recs
}

// ExportSyncReport renders the report plus its underlying runs as an
// xlsx workbook.
func (s *SyncServiceImpl) ExportSyncReport(ctx context.Context, businessID string, start, end time.Time) ([]byte, error) {
	report, err := s.GenerateSyncReport(ctx, businessID, start, end)
	if err != nil {
		return nil, err
	}
	records, err := s.history.List(ctx, businessID, HistoryQuery{
		Limit: reportHistoryLimit,
		Start: report.RangeStart,
		End:   report.RangeEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const summary = "Summary"
	f.SetSheetName("Sheet1", summary)

	summaryRows := [][]any{
		{"Business ID", report.BusinessID},
		{"Range Start", report.RangeStart.Format(time.RFC3339)},
		{"Range End", report.RangeEnd.Format(time.RFC3339)},
		{"Total Runs", report.TotalRuns},
		{"Successful Runs", report.SuccessfulRuns},
		{"Failed Runs", report.FailedRuns},
		{"Average Duration (ms)", report.AverageDurationMs},
		{"Most Synced Category", string(report.MostSyncedCategory)},
	}
	for i, row := range summaryRows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, err
		}
	}

	recRow := len(summaryRows) + 2
	for i, rec := range report.Recommendations {
		cell, _ := excelize.CoordinatesToCellName(1, recRow+i)
		if err := f.SetSheetRow(summary, cell, &[]any{"Recommendation", rec}); err != nil {
			return nil, err
		}
	}

	const runs = "Runs"
	if _, err := f.NewSheet(runs); err != nil {
		return nil, err
	}
	header := []any{"Session ID", "Strategy", "Status", "Start", "End", "Duration (ms)",
		"Processed", "Created", "Updated", "Failed", "API Calls", "Warnings"}
	if err := f.SetSheetRow(runs, "A1", &header); err != nil {
		return nil, err
	}
	for i, rec := range records {
		row := []any{
			rec.SessionID,
			string(rec.Strategy),
			string(rec.Status),
			rec.StartTime.Format(time.RFC3339),
			rec.EndTime.Format(time.RFC3339),
			rec.DurationMs,
			rec.ItemsProcessed,
			rec.ItemsCreated,
			rec.ItemsUpdated,
			rec.ItemsFailed,
			rec.APICalls,
			len(rec.Warnings),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(runs, cell, &row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
