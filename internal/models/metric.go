package models

import (
	"fmt"
	"time"
)

// MetricName identifies one of the supported behavioural metrics. The set
// is closed; adding a metric is a design change that must extend the
// definition switch as well.
type MetricName string

const (
	MetricRetention       MetricName = "retention"
	MetricEngagementScore MetricName = "engagement_score"
	MetricCompletionRate  MetricName = "completion_rate"
	MetricTimeOnTask      MetricName = "time_on_task"
	MetricActivityIndex   MetricName = "activity_index"
	MetricFocusRatio      MetricName = "focus_ratio"
)

// AllMetricNames returns the full default set in its canonical order.
func AllMetricNames() []MetricName {
	return []MetricName{
		MetricRetention,
		MetricEngagementScore,
		MetricCompletionRate,
		MetricTimeOnTask,
		MetricActivityIndex,
		MetricFocusRatio,
	}
}

// ParseMetricName validates a raw metric name against the closed set.
func ParseMetricName(raw string) (MetricName, error) {
	switch MetricName(raw) {
	case MetricRetention, MetricEngagementScore, MetricCompletionRate,
		MetricTimeOnTask, MetricActivityIndex, MetricFocusRatio:
		return MetricName(raw), nil
	}
	return "", fmt.Errorf("unknown metric name %q", raw)
}

// MetricResult stores the computed value of one metric for one
// (user, course, module, period) scope. The scope tuple is unique:
// recomputation overwrites value and calculated_at in place.
type MetricResult struct {
	ID           string     `db:"id" json:"id"`
	MetricName   MetricName `db:"metric_name" json:"metric_name"`
	UserID       string     `db:"user_id" json:"user_id"`
	CourseID     string     `db:"course_id" json:"course_id"`
	ModuleID     *string    `db:"module_id" json:"module_id,omitempty"`
	Value        float64    `db:"value" json:"value"`
	PeriodStart  time.Time  `db:"period_start" json:"period_start"`
	PeriodEnd    time.Time  `db:"period_end" json:"period_end"`
	CalculatedAt time.Time  `db:"calculated_at" json:"calculated_at"`
}

// MetricRow is one per-user scalar produced by a metric definition.
type MetricRow struct {
	UserID string
	Value  float64
}

// MetricAggregate is the unweighted mean of a metric across all users of
// a course scope.
type MetricAggregate struct {
	MetricName   MetricName `db:"metric_name" json:"metric_name"`
	CourseID     string     `json:"course_id"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	AverageValue float64    `db:"average_value" json:"average_value"`
}

// MetricsCalculationRequest asks for a compute pass over one course and
// window. An empty Metrics slice selects the full default set.
type MetricsCalculationRequest struct {
	CourseID    string       `json:"course_id" validate:"required"`
	PeriodStart time.Time    `json:"period_start" validate:"required"`
	PeriodEnd   time.Time    `json:"period_end" validate:"required"`
	Metrics     []MetricName `json:"metrics,omitempty"`
}

// MetricsCalculationResponse lists the metrics that were actually
// computed and upserted. Metrics that failed mid-request are absent;
// earlier successes stay committed.
type MetricsCalculationResponse struct {
	Calculated []MetricName `json:"calculated"`
}

// UserMetricsQuery scopes a per-user read of stored metric results.
type UserMetricsQuery struct {
	UserID      string
	CourseID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Metrics     []MetricName
}

// CourseAggregatesQuery scopes a per-course aggregate read.
type CourseAggregatesQuery struct {
	CourseID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Metrics     []MetricName
}
