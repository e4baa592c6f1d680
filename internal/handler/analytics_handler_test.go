package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/internal/service"
)

type metricReaderMock struct {
	results    []models.MetricResult
	aggregates []models.MetricAggregate
	lastUser   models.UserMetricsQuery
	lastCourse models.CourseAggregatesQuery
}

func (m *metricReaderMock) GetUserMetrics(ctx context.Context, q models.UserMetricsQuery) ([]models.MetricResult, error) {
	m.lastUser = q
	return m.results, nil
}

func (m *metricReaderMock) GetCourseAggregates(ctx context.Context, q models.CourseAggregatesQuery) ([]models.MetricAggregate, error) {
	m.lastCourse = q
	return m.aggregates, nil
}

func analyticsRouter(reader *metricReaderMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(service.NewAnalyticsService(reader, nil, nil))
	r := gin.New()
	r.GET("/metrics/user/:id", handler.UserMetrics)
	r.GET("/analytics/course/:id", handler.CourseAggregates)
	r.GET("/analytics/course/:id/export", handler.ExportCourseAggregates)
	return r
}

const windowQuery = "period_start=2026-03-02T00:00:00Z&period_end=2026-03-09T00:00:00Z"

func TestUserMetrics(t *testing.T) {
	reader := &metricReaderMock{results: []models.MetricResult{
		{MetricName: models.MetricRetention, UserID: "u1", CourseID: "course-1", Value: 1.0},
	}}
	r := analyticsRouter(reader)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics/user/u1?course_id=course-1&"+windowQuery, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", reader.lastUser.UserID)
	assert.Equal(t, "course-1", reader.lastUser.CourseID)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), reader.lastUser.PeriodStart)
}

func TestUserMetricsMissingCourseID(t *testing.T) {
	r := analyticsRouter(&metricReaderMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics/user/u1?"+windowQuery, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserMetricsInvalidWindow(t *testing.T) {
	r := analyticsRouter(&metricReaderMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics/user/u1?course_id=c1&period_start=yesterday&period_end=2026-03-09T00:00:00Z", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserMetricsReversedWindow(t *testing.T) {
	r := analyticsRouter(&metricReaderMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics/user/u1?course_id=c1&period_start=2026-03-09T00:00:00Z&period_end=2026-03-02T00:00:00Z", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserMetricsUnknownMetricFilter(t *testing.T) {
	r := analyticsRouter(&metricReaderMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics/user/u1?course_id=c1&"+windowQuery+"&metrics=velocity", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseAggregates(t *testing.T) {
	reader := &metricReaderMock{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricEngagementScore, CourseID: "course-1", AverageValue: 4.2},
	}}
	r := analyticsRouter(reader)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/analytics/course/course-1?"+windowQuery+"&metrics=engagement_score&metrics=retention", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.MetricName{models.MetricEngagementScore, models.MetricRetention}, reader.lastCourse.Metrics)

	var envelope struct {
		Data []models.MetricAggregate `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestExportCourseAggregatesCSV(t *testing.T) {
	reader := &metricReaderMock{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricCompletionRate, CourseID: "course-1", AverageValue: 0.75},
	}}
	r := analyticsRouter(reader)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/analytics/course/course-1/export?"+windowQuery+"&format=csv", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "course-course-1-metrics.csv")
	assert.Contains(t, w.Body.String(), "completion_rate")
}

func TestExportCourseAggregatesPDF(t *testing.T) {
	reader := &metricReaderMock{aggregates: []models.MetricAggregate{
		{MetricName: models.MetricRetention, CourseID: "course-1", AverageValue: 0.5},
	}}
	r := analyticsRouter(reader)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/analytics/course/course-1/export?"+windowQuery+"&format=pdf", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestExportCourseAggregatesUnknownFormat(t *testing.T) {
	r := analyticsRouter(&metricReaderMock{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/analytics/course/course-1/export?"+windowQuery+"&format=xlsx", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
