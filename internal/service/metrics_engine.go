package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
)

// metricFetcher produces per-user scalars for one metric over a window.
type metricFetcher interface {
	FetchMetric(ctx context.Context, metric models.MetricName, courseID string, start, end time.Time) ([]models.MetricRow, error)
}

// metricResultWriter reconciles computed rows into the keyed store.
type metricResultWriter interface {
	UpsertBatch(ctx context.Context, metric models.MetricName, courseID string, periodStart, periodEnd time.Time, rows []models.MetricRow) error
}

// MetricsEngine drives "compute metrics X for course C over window [S,E)".
// Metrics are computed independently and sequentially: a failure aborts
// only its own metric, and results already upserted stay committed.
type MetricsEngine struct {
	fetcher   metricFetcher
	store     metricResultWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMetricsEngine constructs the engine.
func NewMetricsEngine(fetcher metricFetcher, store metricResultWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *MetricsEngine {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsEngine{fetcher: fetcher, store: store, cache: cache, validator: validate, logger: logger}
}

// CalculateForCourse computes the requested metrics (all six when the
// request names none) and returns the names that were actually computed
// and stored. The whole request is rejected before any side effect when
// it is malformed or names an unknown metric.
func (s *MetricsEngine) CalculateForCourse(ctx context.Context, req models.MetricsCalculationRequest) ([]models.MetricName, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calculation payload")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period_end must be after period_start")
	}

	metrics := req.Metrics
	if len(metrics) == 0 {
		metrics = models.AllMetricNames()
	}
	for _, m := range metrics {
		if _, err := models.ParseMetricName(string(m)); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown metric name %q", m))
		}
	}

	calculated := make([]models.MetricName, 0, len(metrics))
	var lastErr error
	for _, metric := range metrics {
		rows, err := s.fetcher.FetchMetric(ctx, metric, req.CourseID, req.PeriodStart, req.PeriodEnd)
		if err != nil {
			s.logger.Warn("metric computation failed",
				zap.String("metric", string(metric)),
				zap.String("course_id", req.CourseID),
				zap.Error(err))
			lastErr = err
			continue
		}
		if err := s.store.UpsertBatch(ctx, metric, req.CourseID, req.PeriodStart, req.PeriodEnd, rows); err != nil {
			s.logger.Warn("metric upsert failed",
				zap.String("metric", string(metric)),
				zap.String("course_id", req.CourseID),
				zap.Error(err))
			lastErr = appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "metric store write failed")
			continue
		}
		calculated = append(calculated, metric)
	}

	if len(calculated) == 0 && lastErr != nil {
		return nil, lastErr
	}

	if len(calculated) > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("analytics:course:%s:*", req.CourseID)); err != nil {
			s.logger.Warn("aggregate cache invalidation failed", zap.String("course_id", req.CourseID), zap.Error(err))
		}
	}

	return calculated, nil
}
