package store

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectAnalyticsQueries(mock pgxmock.PgxPoolIface, userID string, since any) {
	mock.ExpectQuery("SELECT DATE").
		WithArgs(userID, since).
		WillReturnRows(pgxmock.NewRows([]string{"day", "template_type", "count", "avg_duration_ms"}).
			AddRow(fixedNow, "rca", int64(3), float64(120.5)))
	mock.ExpectQuery("FROM documents").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"count", "types", "bytes", "favorites"}).
			AddRow(int64(5), int64(2), int64(2048), int64(1)))
	mock.ExpectQuery("FROM generation_logs").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"avg"}).AddRow(float64(98.5)))
}

func TestUserAnalytics(t *testing.T) {
	st, mock := newMockStore(t, t.TempDir())

	expectAnalyticsQueries(mock, "user-1", fixedNow.AddDate(0, 0, -7))

	got, err := st.UserAnalytics(context.Background(), "user-1", 7)
	require.NoError(t, err)

	require.Len(t, got.DailyActivity, 1)
	assert.Equal(t, "rca", got.DailyActivity[0].TemplateType)
	assert.Equal(t, int64(3), got.DailyActivity[0].Count)
	assert.Equal(t, int64(5), got.Summary.TotalDocuments)
	assert.Equal(t, int64(2), got.Summary.TemplateTypes)
	assert.Equal(t, int64(2048), got.Summary.TotalBytes)
	assert.Equal(t, int64(1), got.Summary.Favorites)
	assert.Equal(t, 98.5, got.Summary.AvgDurationMs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAnalytics_WindowClamping(t *testing.T) {
	tests := []struct {
		name      string
		days      int
		wantSince any
	}{
		{name: "zero defaults", days: 0, wantSince: fixedNow.AddDate(0, 0, -defaultAnalyticsWindowDays)},
		{name: "negative defaults", days: -3, wantSince: fixedNow.AddDate(0, 0, -defaultAnalyticsWindowDays)},
		{name: "oversized clamps", days: 100000, wantSince: fixedNow.AddDate(0, 0, -maxAnalyticsWindowDays)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, mock := newMockStore(t, t.TempDir())
			expectAnalyticsQueries(mock, "user-1", tt.wantSince)

			_, err := st.UserAnalytics(context.Background(), "user-1", tt.days)
			require.NoError(t, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
