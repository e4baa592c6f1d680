package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/94R1K/student-metrics-backend/internal/models"
)

// Metric definitions are pure functions over a course's event window:
// given the events whose course_id matches and whose timestamp falls in
// [period_start, period_end), each produces one scalar per user. They are
// independent of how the event store executes reads, which keeps the
// semantics testable against in-memory fixtures.
//
// Events with equal timestamps are ordered by event id, so every
// "next event" computation is deterministic across recomputations.

// engagementWeights scores one event by its type. The vocabulary is open;
// types outside this table contribute nothing.
var engagementWeights = map[string]float64{
	"page_view":    1.0,
	"scroll":       0.2,
	"video_play":   1.5,
	"task_attempt": 2.0,
	"task_start":   1.0,
	"task_success": 2.5,
	"task_fail":    1.5,
}

// taskGapCapSeconds caps a single task_start-to-next-event gap at 30 minutes.
const taskGapCapSeconds = 1800.0

// ComputeMetric evaluates the named metric over the event window and
// returns per-user values. Users without events in the window are absent
// from the result. The switch is exhaustive over the closed metric set;
// an unknown name is a programming error surfaced to the caller.
func ComputeMetric(metric models.MetricName, events []models.Event) (map[string]float64, error) {
	byUser := groupByUser(events)

	switch metric {
	case models.MetricRetention:
		return computeRetention(byUser), nil
	case models.MetricEngagementScore:
		return computeEngagementScore(byUser), nil
	case models.MetricCompletionRate:
		return computeCompletionRate(byUser), nil
	case models.MetricTimeOnTask:
		return computeTimeOnTask(byUser), nil
	case models.MetricActivityIndex:
		return computeActivityIndex(byUser), nil
	case models.MetricFocusRatio:
		return computeFocusRatio(byUser), nil
	}
	return nil, fmt.Errorf("no definition for metric %q", metric)
}

// groupByUser partitions events per user and sorts each sequence by
// (timestamp, id).
func groupByUser(events []models.Event) map[string][]models.Event {
	byUser := make(map[string][]models.Event)
	for _, ev := range events {
		byUser[ev.UserID] = append(byUser[ev.UserID], ev)
	}
	for _, seq := range byUser {
		sort.SliceStable(seq, func(i, j int) bool {
			if seq[i].Timestamp.Equal(seq[j].Timestamp) {
				return seq[i].ID < seq[j].ID
			}
			return seq[i].Timestamp.Before(seq[j].Timestamp)
		})
	}
	return byUser
}

// computeRetention yields 1.0 when the user was active on at least two
// distinct calendar dates inside the window, else 0.0.
func computeRetention(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		dates := make(map[string]struct{}, len(seq))
		for _, ev := range seq {
			dates[ev.Timestamp.UTC().Format("2006-01-02")] = struct{}{}
		}
		if len(dates) > 1 {
			values[userID] = 1.0
		} else {
			values[userID] = 0.0
		}
	}
	return values
}

// computeEngagementScore sums the per-type weights of the user's events.
func computeEngagementScore(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		var score float64
		for _, ev := range seq {
			score += engagementWeights[ev.EventType]
		}
		values[userID] = score
	}
	return values
}

// computeCompletionRate yields successes / (successes + failures) over
// task_success and task_fail events, 0.0 when the user attempted nothing.
func computeCompletionRate(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		var successes, failures float64
		for _, ev := range seq {
			switch ev.EventType {
			case "task_success":
				successes++
			case "task_fail":
				failures++
			}
		}
		if successes+failures == 0 {
			values[userID] = 0.0
			continue
		}
		values[userID] = successes / (successes + failures)
	}
	return values
}

// computeTimeOnTask sums, for every task_start event, the seconds until
// the user's chronologically next event of any type, capped per gap. A
// trailing task_start has no next event and contributes nothing. Users
// without any task_start are absent from the result.
func computeTimeOnTask(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		total, started := taskGapSum(seq)
		if !started {
			continue
		}
		values[userID] = total
	}
	return values
}

// computeActivityIndex divides the user's event count by the inclusive
// calendar-day span between first and last event (floor 1).
func computeActivityIndex(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		first := seq[0].Timestamp.UTC()
		last := seq[len(seq)-1].Timestamp.UTC()
		days := calendarDaysBetween(first, last) + 1
		if days < 1 {
			days = 1
		}
		values[userID] = float64(len(seq)) / float64(days)
	}
	return values
}

// computeFocusRatio divides the user's time_on_task sum by the seconds
// between their first and last event, 0.0 when that span is not positive.
func computeFocusRatio(byUser map[string][]models.Event) map[string]float64 {
	values := make(map[string]float64, len(byUser))
	for userID, seq := range byUser {
		span := seq[len(seq)-1].Timestamp.Sub(seq[0].Timestamp).Seconds()
		if span <= 0 {
			values[userID] = 0.0
			continue
		}
		total, _ := taskGapSum(seq)
		values[userID] = total / span
	}
	return values
}

// taskGapSum walks a user's chronologically sorted events and accumulates
// the clamped gap from each task_start to the following event. The second
// return reports whether any task_start was seen at all.
func taskGapSum(seq []models.Event) (float64, bool) {
	var total float64
	var started bool
	for i, ev := range seq {
		if ev.EventType != "task_start" {
			continue
		}
		started = true
		if i+1 >= len(seq) {
			continue
		}
		gap := seq[i+1].Timestamp.Sub(ev.Timestamp).Seconds()
		if gap < 0 {
			gap = 0
		}
		if gap > taskGapCapSeconds {
			gap = taskGapCapSeconds
		}
		total += gap
	}
	return total, started
}

// calendarDaysBetween counts whole calendar-date steps between two
// instants, ignoring the time of day.
func calendarDaysBetween(first, last time.Time) int {
	firstDay := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	return int(lastDay.Sub(firstDay) / (24 * time.Hour))
}
