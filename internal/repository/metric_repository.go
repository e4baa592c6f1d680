package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/94R1K/student-metrics-backend/internal/models"
)

// MetricRepository provides keyed storage for computed metric results.
type MetricRepository struct {
	db *sqlx.DB
}

// NewMetricRepository creates a new instance of MetricRepository.
func NewMetricRepository(db *sqlx.DB) *MetricRepository {
	return &MetricRepository{db: db}
}

// UpsertBatch reconciles freshly computed rows against stored ones. For
// each (user, value) row it overwrites the existing result at the exact
// scope tuple or inserts a new one; calculated_at is refreshed either
// way. The conflict target is the partial unique index over the
// course-scoped tuple (module_id IS NULL), so concurrent recomputes of
// the same fresh scope resolve to last-writer-wins at row granularity
// instead of two committed rows.
func (r *MetricRepository) UpsertBatch(
	ctx context.Context,
	metric models.MetricName,
	courseID string,
	periodStart, periodEnd time.Time,
	rows []models.MetricRow,
) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsertQuery = `INSERT INTO metric_results
		(id, metric_name, user_id, course_id, module_id, value, period_start, period_end, calculated_at)
		VALUES ($1, $2, $3, $4, NULL, $5, $6, $7, $8)
		ON CONFLICT (metric_name, user_id, course_id, period_start, period_end) WHERE module_id IS NULL
		DO UPDATE SET value = EXCLUDED.value, calculated_at = EXCLUDED.calculated_at`

	now := time.Now().UTC()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, upsertQuery,
			uuid.NewString(), metric, row.UserID, courseID, row.Value, periodStart, periodEnd, now); err != nil {
			return fmt.Errorf("upsert metric result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}

// GetUserMetrics returns stored results for one user/course/window scope,
// optionally filtered by metric names, ordered by metric_name.
func (r *MetricRepository) GetUserMetrics(ctx context.Context, q models.UserMetricsQuery) ([]models.MetricResult, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT id, metric_name, user_id, course_id, module_id, value, period_start, period_end, calculated_at
		FROM metric_results
		WHERE user_id = $1 AND course_id = $2 AND period_start = $3 AND period_end = $4`)
	args := []interface{}{q.UserID, q.CourseID, q.PeriodStart, q.PeriodEnd}

	if len(q.Metrics) > 0 {
		placeholders := make([]string, 0, len(q.Metrics))
		for _, m := range q.Metrics {
			args = append(args, m)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		builder.WriteString(fmt.Sprintf(" AND metric_name IN (%s)", strings.Join(placeholders, ", ")))
	}
	builder.WriteString(" ORDER BY metric_name")

	// Non-nil so an empty scope renders as [] rather than null.
	results := []models.MetricResult{}
	if err := r.db.SelectContext(ctx, &results, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query user metrics: %w", err)
	}
	return results, nil
}

// GetCourseAggregates returns the arithmetic mean of value per metric
// across all users of the scope. Metrics without rows are absent.
func (r *MetricRepository) GetCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery) ([]models.MetricAggregate, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT metric_name, AVG(value) AS average_value
		FROM metric_results
		WHERE course_id = $1 AND period_start = $2 AND period_end = $3`)
	args := []interface{}{q.CourseID, q.PeriodStart, q.PeriodEnd}

	if len(q.Metrics) > 0 {
		placeholders := make([]string, 0, len(q.Metrics))
		for _, m := range q.Metrics {
			args = append(args, m)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		builder.WriteString(fmt.Sprintf(" AND metric_name IN (%s)", strings.Join(placeholders, ", ")))
	}
	builder.WriteString(" GROUP BY metric_name ORDER BY metric_name")

	type row struct {
		MetricName   models.MetricName `db:"metric_name"`
		AverageValue float64           `db:"average_value"`
	}
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query course aggregates: %w", err)
	}

	aggregates := make([]models.MetricAggregate, 0, len(rows))
	for _, rrow := range rows {
		aggregates = append(aggregates, models.MetricAggregate{
			MetricName:   rrow.MetricName,
			CourseID:     q.CourseID,
			PeriodStart:  q.PeriodStart,
			PeriodEnd:    q.PeriodEnd,
			AverageValue: rrow.AverageValue,
		})
	}
	return aggregates, nil
}
