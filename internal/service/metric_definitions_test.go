package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/94R1K/student-metrics-backend/internal/models"
)

func ev(userID, eventType string, ts time.Time) models.Event {
	return models.Event{
		ID:        fmt.Sprintf("%s-%s-%d", userID, eventType, ts.UnixNano()),
		UserID:    userID,
		CourseID:  "course-1",
		EventType: eventType,
		Timestamp: ts,
	}
}

var windowStart = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(offset time.Duration) time.Time {
	return windowStart.Add(offset)
}

func TestRetentionSingleDay(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(1*time.Hour)),
		ev("u1", "scroll", at(2*time.Hour)),
		ev("u1", "video_play", at(5*time.Hour)),
	}

	values, err := ComputeMetric(models.MetricRetention, events)
	require.NoError(t, err)
	assert.Equal(t, 0.0, values["u1"])
}

func TestRetentionTwoDates(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(1*time.Hour)),
		ev("u1", "page_view", at(26*time.Hour)),
	}

	values, err := ComputeMetric(models.MetricRetention, events)
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["u1"])
}

func TestRetentionMidnightBoundary(t *testing.T) {
	// 23:59 and 00:01 are two calendar dates even though only two
	// minutes apart.
	events := []models.Event{
		ev("u1", "page_view", at(23*time.Hour+59*time.Minute)),
		ev("u1", "page_view", at(24*time.Hour+1*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricRetention, events)
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["u1"])
}

func TestEngagementScoreWeights(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(time.Minute)),
		ev("u1", "task_success", at(2*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricEngagementScore, events)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, values["u1"], 1e-9)
}

func TestEngagementScoreUnknownTypeContributesZero(t *testing.T) {
	events := []models.Event{
		ev("u1", "hover", at(time.Minute)),
		ev("u1", "scroll", at(2*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricEngagementScore, events)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, values["u1"], 1e-9)
}

func TestCompletionRate(t *testing.T) {
	events := []models.Event{
		ev("u1", "task_success", at(1*time.Minute)),
		ev("u1", "task_success", at(2*time.Minute)),
		ev("u1", "task_success", at(3*time.Minute)),
		ev("u1", "task_fail", at(4*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricCompletionRate, events)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, values["u1"], 1e-9)
}

func TestCompletionRateNoOutcomes(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(1*time.Minute)),
		ev("u1", "task_start", at(2*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricCompletionRate, events)
	require.NoError(t, err)
	assert.Equal(t, 0.0, values["u1"])
}

func TestTimeOnTaskSumsGaps(t *testing.T) {
	events := []models.Event{
		ev("u1", "task_start", at(0)),
		ev("u1", "task_success", at(5*time.Minute)),
		ev("u1", "task_start", at(10*time.Minute)),
		ev("u1", "task_fail", at(12*time.Minute)),
	}

	values, err := ComputeMetric(models.MetricTimeOnTask, events)
	require.NoError(t, err)
	assert.InDelta(t, 420.0, values["u1"], 1e-9)
}

func TestTimeOnTaskCapsLongGaps(t *testing.T) {
	events := []models.Event{
		ev("u1", "task_start", at(0)),
		ev("u1", "page_view", at(2*time.Hour)),
	}

	values, err := ComputeMetric(models.MetricTimeOnTask, events)
	require.NoError(t, err)
	assert.InDelta(t, 1800.0, values["u1"], 1e-9)
}

func TestTimeOnTaskTrailingStartContributesNothing(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(0)),
		ev("u1", "task_start", at(time.Minute)),
	}

	values, err := ComputeMetric(models.MetricTimeOnTask, events)
	require.NoError(t, err)
	assert.Equal(t, 0.0, values["u1"])
}

func TestTimeOnTaskSkipsUsersWithoutStarts(t *testing.T) {
	events := []models.Event{
		ev("u1", "task_start", at(0)),
		ev("u1", "task_success", at(time.Minute)),
		ev("u2", "page_view", at(0)),
	}

	values, err := ComputeMetric(models.MetricTimeOnTask, events)
	require.NoError(t, err)
	assert.Contains(t, values, "u1")
	assert.NotContains(t, values, "u2")
}

func TestActivityIndexMultiDay(t *testing.T) {
	// 6 events over 3 calendar days.
	events := []models.Event{
		ev("u1", "page_view", at(1*time.Hour)),
		ev("u1", "page_view", at(2*time.Hour)),
		ev("u1", "page_view", at(25*time.Hour)),
		ev("u1", "page_view", at(26*time.Hour)),
		ev("u1", "page_view", at(49*time.Hour)),
		ev("u1", "page_view", at(50*time.Hour)),
	}

	values, err := ComputeMetric(models.MetricActivityIndex, events)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, values["u1"], 1e-9)
}

func TestActivityIndexSingleEvent(t *testing.T) {
	events := []models.Event{
		ev("u1", "page_view", at(time.Hour)),
	}

	values, err := ComputeMetric(models.MetricActivityIndex, events)
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["u1"])
}

func TestFocusRatio(t *testing.T) {
	// 300s of capped task time across a 1000s active span.
	events := []models.Event{
		ev("u1", "task_start", at(0)),
		ev("u1", "task_success", at(300*time.Second)),
		ev("u1", "page_view", at(1000*time.Second)),
	}

	values, err := ComputeMetric(models.MetricFocusRatio, events)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, values["u1"], 1e-9)
}

func TestFocusRatioZeroSpan(t *testing.T) {
	ts := at(time.Hour)
	events := []models.Event{
		ev("u1", "task_start", ts),
		{ID: "zzz", UserID: "u1", CourseID: "course-1", EventType: "page_view", Timestamp: ts},
	}

	values, err := ComputeMetric(models.MetricFocusRatio, events)
	require.NoError(t, err)
	assert.Equal(t, 0.0, values["u1"])
}

func TestEqualTimestampsOrderedByID(t *testing.T) {
	ts := at(time.Hour)
	// Both follow-ups share the start's timestamp; the id order decides
	// which one is "next", and either way the gap is zero.
	events := []models.Event{
		{ID: "b", UserID: "u1", CourseID: "course-1", EventType: "task_start", Timestamp: ts},
		{ID: "a", UserID: "u1", CourseID: "course-1", EventType: "page_view", Timestamp: ts},
		{ID: "c", UserID: "u1", CourseID: "course-1", EventType: "task_success", Timestamp: ts.Add(10 * time.Second)},
	}

	values, err := ComputeMetric(models.MetricTimeOnTask, events)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, values["u1"], 1e-9)
}

func TestRetentionAcrossUsers(t *testing.T) {
	events := []models.Event{
		ev("a", "page_view", at(1*time.Hour)),
		ev("a", "page_view", at(30*time.Hour)),
		ev("b", "page_view", at(2*time.Hour)),
		ev("b", "scroll", at(3*time.Hour)),
	}

	values, err := ComputeMetric(models.MetricRetention, events)
	require.NoError(t, err)
	assert.Equal(t, 1.0, values["a"])
	assert.Equal(t, 0.0, values["b"])
}

func TestComputeMetricUnknownName(t *testing.T) {
	_, err := ComputeMetric(models.MetricName("velocity"), nil)
	assert.Error(t, err)
}

func TestComputeMetricEmptyWindow(t *testing.T) {
	for _, metric := range models.AllMetricNames() {
		values, err := ComputeMetric(metric, nil)
		require.NoError(t, err)
		assert.Empty(t, values, string(metric))
	}
}
