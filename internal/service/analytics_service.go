package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
	"github.com/94R1K/student-metrics-backend/pkg/export"
)

// metricResultReader reads stored metric results.
type metricResultReader interface {
	GetUserMetrics(ctx context.Context, q models.UserMetricsQuery) ([]models.MetricResult, error)
	GetCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery) ([]models.MetricAggregate, error)
}

// AnalyticsService serves stored metric results without recomputation.
// Course aggregates are cached; per-user reads always hit the store.
type AnalyticsService struct {
	repo   metricResultReader
	cache  *CacheService
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(repo metricResultReader, cache *CacheService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:   repo,
		cache:  cache,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// GetUserMetrics returns all stored rows for the user/course/window
// scope, ordered by metric name.
func (s *AnalyticsService) GetUserMetrics(ctx context.Context, q models.UserMetricsQuery) ([]models.MetricResult, error) {
	results, err := s.repo.GetUserMetrics(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "metric store read failed")
	}
	return results, nil
}

// GetCourseAggregates returns the per-metric means for the course scope.
// The boolean reports whether the response was served from cache.
func (s *AnalyticsService) GetCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery) ([]models.MetricAggregate, bool, error) {
	key := courseAggregatesKey(q)

	var cached []models.MetricAggregate
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	aggregates, err := s.repo.GetCourseAggregates(ctx, q)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "metric store read failed")
	}

	if err := s.cache.Set(ctx, key, aggregates, 0); err != nil {
		s.logger.Warn("failed to cache course aggregates", zap.String("course_id", q.CourseID), zap.Error(err))
	}

	return aggregates, false, nil
}

// ExportCourseAggregates renders the course aggregates as CSV or PDF.
func (s *AnalyticsService) ExportCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery, format string) ([]byte, string, error) {
	aggregates, _, err := s.GetCourseAggregates(ctx, q)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"metric_name", "average_value", "period_start", "period_end"},
	}
	for _, agg := range aggregates {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"metric_name":   string(agg.MetricName),
			"average_value": strconv.FormatFloat(agg.AverageValue, 'f', 4, 64),
			"period_start":  agg.PeriodStart.UTC().Format("2006-01-02 15:04:05"),
			"period_end":    agg.PeriodEnd.UTC().Format("2006-01-02 15:04:05"),
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "csv export failed")
		}
		return payload, "text/csv", nil
	case "pdf":
		title := fmt.Sprintf("Course %s metrics", q.CourseID)
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "pdf export failed")
		}
		return payload, "application/pdf", nil
	}
	return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
}

func courseAggregatesKey(q models.CourseAggregatesQuery) string {
	names := make([]string, 0, len(q.Metrics))
	for _, m := range q.Metrics {
		names = append(names, string(m))
	}
	metricsPart := "all"
	if len(names) > 0 {
		metricsPart = strings.Join(names, ",")
	}
	return fmt.Sprintf("analytics:course:%s:%d:%d:%s",
		q.CourseID, q.PeriodStart.UTC().Unix(), q.PeriodEnd.UTC().Unix(), metricsPart)
}
