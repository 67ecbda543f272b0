package store

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
)

const (
	defaultAnalyticsWindowDays = 30
	maxAnalyticsWindowDays     = 365
)

type dailyActivityRow struct {
	Day           time.Time `db:"day"`
	TemplateType  string    `db:"template_type"`
	Count         int64     `db:"count"`
	AvgDurationMs float64   `db:"avg_duration_ms"`
}

// UserAnalytics aggregates the user's successful generations per day
// and template type over the trailing window, plus a summary across
// stored documents.
func (s *Store) UserAnalytics(ctx context.Context, userID string, windowDays int) (*Analytics, error) {
	if windowDays <= 0 {
		windowDays = defaultAnalyticsWindowDays
	}
	if windowDays > maxAnalyticsWindowDays {
		windowDays = maxAnalyticsWindowDays
	}
	since := s.now().AddDate(0, 0, -windowDays)

	var daily []dailyActivityRow
	err := pgxscan.Select(ctx, s.pool, &daily, `
		SELECT DATE(created_at) AS day,
		       template_type,
		       COUNT(*) AS count,
		       COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM generation_logs
		WHERE user_id = $1 AND success AND created_at >= $2
		GROUP BY day, template_type
		ORDER BY day DESC, template_type`, userID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate daily activity: %w", err)
	}

	var summary AnalyticsSummary
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT template_type),
		       COALESCE(SUM(file_size), 0),
		       COUNT(*) FILTER (WHERE is_favorite)
		FROM documents
		WHERE user_id = $1`, userID).
		Scan(&summary.TotalDocuments, &summary.TemplateTypes, &summary.TotalBytes, &summary.Favorites)
	if err != nil {
		return nil, fmt.Errorf("aggregate document summary: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(AVG(duration_ms), 0)
		FROM generation_logs
		WHERE user_id = $1 AND success`, userID).
		Scan(&summary.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("aggregate generation latency: %w", err)
	}

	out := &Analytics{
		DailyActivity: make([]DailyActivity, 0, len(daily)),
		Summary:       summary,
	}
	for _, row := range daily {
		out.DailyActivity = append(out.DailyActivity, DailyActivity{
			Day:           row.Day,
			TemplateType:  row.TemplateType,
			Count:         row.Count,
			AvgDurationMs: row.AvgDurationMs,
		})
	}
	return out, nil
}
