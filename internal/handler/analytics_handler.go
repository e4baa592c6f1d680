package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/94R1K/student-metrics-backend/internal/models"
	"github.com/94R1K/student-metrics-backend/internal/service"
	appErrors "github.com/94R1K/student-metrics-backend/pkg/errors"
	"github.com/94R1K/student-metrics-backend/pkg/response"
)

// AnalyticsHandler serves stored metric results to privileged roles.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// UserMetrics returns stored rows for one user/course/window scope.
func (h *AnalyticsHandler) UserMetrics(c *gin.Context) {
	userID := c.Param("id")
	courseID := c.Query("course_id")
	if courseID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "course_id is required"))
		return
	}

	start, end, err := parseWindow(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics, err := parseMetricsFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	results, err := h.analytics.GetUserMetrics(c.Request.Context(), models.UserMetricsQuery{
		UserID:      userID,
		CourseID:    courseID,
		PeriodStart: start,
		PeriodEnd:   end,
		Metrics:     metrics,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, results)
}

// CourseAggregates returns per-metric means across all users of a course.
func (h *AnalyticsHandler) CourseAggregates(c *gin.Context) {
	query, err := parseCourseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	aggregates, cacheHit, err := h.analytics.GetCourseAggregates(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, aggregates, map[string]interface{}{"cache_hit": cacheHit})
}

// ExportCourseAggregates renders course aggregates as CSV or PDF.
func (h *AnalyticsHandler) ExportCourseAggregates(c *gin.Context) {
	query, err := parseCourseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.analytics.ExportCourseAggregates(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("course-%s-metrics.%s", query.CourseID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

func parseCourseQuery(c *gin.Context) (models.CourseAggregatesQuery, error) {
	courseID := c.Param("id")
	start, end, err := parseWindow(c)
	if err != nil {
		return models.CourseAggregatesQuery{}, err
	}
	metrics, err := parseMetricsFilter(c)
	if err != nil {
		return models.CourseAggregatesQuery{}, err
	}
	return models.CourseAggregatesQuery{
		CourseID:    courseID,
		PeriodStart: start,
		PeriodEnd:   end,
		Metrics:     metrics,
	}, nil
}

func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	rawStart := c.Query("period_start")
	rawEnd := c.Query("period_end")
	if rawStart == "" || rawEnd == "" {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "period_start and period_end are required")
	}

	start, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid period_start parameter")
	}
	end, err := time.Parse(time.RFC3339, rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid period_end parameter")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "period_end must be after period_start")
	}
	return start, end, nil
}

func parseMetricsFilter(c *gin.Context) ([]models.MetricName, error) {
	raw := c.QueryArray("metrics")
	if len(raw) == 0 {
		return nil, nil
	}
	metrics := make([]models.MetricName, 0, len(raw))
	for _, name := range raw {
		metric, err := models.ParseMetricName(name)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown metric name %q", name))
		}
		metrics = append(metrics, metric)
	}
	return metrics, nil
}
