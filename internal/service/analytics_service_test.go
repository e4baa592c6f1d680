package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/94R1K/student-metrics-backend/internal/models"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
)

type mockMetricReader struct {
	results    []models.MetricResult
	aggregates []models.MetricAggregate
	err        error
	reads      int
}

func (m *mockMetricReader) GetUserMetrics(ctx context.Context, q models.UserMetricsQuery) ([]models.MetricResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockMetricReader) GetCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery) ([]models.MetricAggregate, error) {
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	return m.aggregates, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if r.entries == nil {
		r.entries = make(map[string][]byte)
	}
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
		}
	}
	return nil
}

func aggregatesQuery() models.CourseAggregatesQuery {
	return models.CourseAggregatesQuery{
		CourseID:    "course-1",
		PeriodStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
	}
}

func TestGetCourseAggregatesCachesSecondRead(t *testing.T) {
	reader := &mockMetricReader{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricRetention, AverageValue: 0.5},
	}}
	cacheSvc := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewAnalyticsService(reader, cacheSvc, nil)

	first, hit, err := svc.GetCourseAggregates(context.Background(), aggregatesQuery())
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, first, 1)

	second, hit, err := svc.GetCourseAggregates(context.Background(), aggregatesQuery())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, reader.reads)
}

func TestGetCourseAggregatesDistinctScopesMiss(t *testing.T) {
	reader := &mockMetricReader{}
	cacheSvc := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewAnalyticsService(reader, cacheSvc, nil)

	_, _, err := svc.GetCourseAggregates(context.Background(), aggregatesQuery())
	require.NoError(t, err)

	shifted := aggregatesQuery()
	shifted.PeriodEnd = shifted.PeriodEnd.Add(24 * time.Hour)
	_, hit, err := svc.GetCourseAggregates(context.Background(), shifted)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, reader.reads)
}

func TestGetCourseAggregatesStoreFailure(t *testing.T) {
	reader := &mockMetricReader{err: errors.New("connection reset")}
	svc := NewAnalyticsService(reader, nil, nil)

	_, _, err := svc.GetCourseAggregates(context.Background(), aggregatesQuery())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)
}

func TestGetUserMetrics(t *testing.T) {
	reader := &mockMetricReader{results: []models.MetricResult{
		{MetricName: models.MetricRetention, UserID: "u1", Value: 1.0},
	}}
	svc := NewAnalyticsService(reader, nil, nil)

	results, err := svc.GetUserMetrics(context.Background(), models.UserMetricsQuery{UserID: "u1", CourseID: "course-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.MetricRetention, results[0].MetricName)
}

func TestExportCourseAggregatesCSV(t *testing.T) {
	reader := &mockMetricReader{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricCompletionRate, AverageValue: 0.75,
			PeriodStart: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewAnalyticsService(reader, nil, nil)

	payload, contentType, err := svc.ExportCourseAggregates(context.Background(), aggregatesQuery(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	text := string(payload)
	assert.Contains(t, text, "metric_name")
	assert.Contains(t, text, "completion_rate")
	assert.Contains(t, text, "0.7500")
}

func TestExportCourseAggregatesPDF(t *testing.T) {
	reader := &mockMetricReader{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricRetention, AverageValue: 1.0},
	}}
	svc := NewAnalyticsService(reader, nil, nil)

	payload, contentType, err := svc.ExportCourseAggregates(context.Background(), aggregatesQuery(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestExportCourseAggregatesUnknownFormat(t *testing.T) {
	svc := NewAnalyticsService(&mockMetricReader{}, nil, nil)

	_, _, err := svc.ExportCourseAggregates(context.Background(), aggregatesQuery(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
