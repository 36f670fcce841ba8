// Package metrics defines the prometheus counters exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts class sessions opened, including silent restarts.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_started_total",
		Help: "Class sessions started.",
	})

	// SessionsEnded counts class sessions ended, including re-ends.
	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_ended_total",
		Help: "Class sessions ended.",
	})

	// LateStarts counts sessions that started past the grace period.
	LateStarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_late_starts_total",
		Help: "Sessions started more than five minutes late.",
	})

	// ShortClasses counts sessions ended more than five minutes short.
	ShortClasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_short_classes_total",
		Help: "Sessions ended more than five minutes under schedule.",
	})

	// LogsSaved counts attendance log upserts.
	LogsSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_logs_saved_total",
		Help: "Attendance log entries saved.",
	})

	// SubjectsPurged counts cascade deletions of a subject and its data.
	SubjectsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_subjects_purged_total",
		Help: "Subjects purged together with their attendance data.",
	})

	// CacheRebuilds counts worker rebuilds of per-pair attendance keys.
	CacheRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_cache_rebuilds_total",
		Help: "Per-pair attendance cache keys rebuilt from the log array.",
	})
)
