// Package report computes read-only statistics over attendance log entries.
// Everything here is a pure function of loaded data; callers read a snapshot
// of the store first and aggregate after.
package report

import (
	"math"
	"sort"
	"time"

	"classtrack/internal/logbook"
	"classtrack/internal/roster"
	"classtrack/internal/session"
)

// Period selects a trailing time window for reports.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Days returns the trailing window length; unknown periods read as a week.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

// AllFaculty passes every faculty code through FilterByDateAndTeacher.
const AllFaculty = "all"

// FilterByPeriod keeps logs dated on or after today minus the period's days.
// Dates are "YYYY-MM-DD" so the comparison is lexicographic; the cutoff day
// itself is included.
func FilterByPeriod(logs []logbook.Entry, period Period, today time.Time) []logbook.Entry {
	cutoff := today.AddDate(0, 0, -period.Days()).Format("2006-01-02")
	var out []logbook.Entry
	for _, log := range logs {
		if log.Date >= cutoff {
			out = append(out, log)
		}
	}
	return out
}

// FilterByDateAndTeacher keeps logs matching the exact date string, and the
// exact faculty code unless it is "all".
func FilterByDateAndTeacher(logs []logbook.Entry, date, faculty string) []logbook.Entry {
	var out []logbook.Entry
	for _, log := range logs {
		if log.Date != date {
			continue
		}
		if faculty != AllFaculty && faculty != "" && log.Faculty != faculty {
			continue
		}
		out = append(out, log)
	}
	return out
}

// FilterByFaculty keeps logs for one faculty code, for teacher self-reports.
func FilterByFaculty(logs []logbook.Entry, faculty string) []logbook.Entry {
	var out []logbook.Entry
	for _, log := range logs {
		if log.Faculty == faculty {
			out = append(out, log)
		}
	}
	return out
}

// OverviewStats summarizes a set of logs.
type OverviewStats struct {
	TotalClasses          int             `json:"totalClasses"`
	TotalPresent          int             `json:"totalPresent"`
	TotalLate             int             `json:"totalLate"`
	TotalAbsent           int             `json:"totalAbsent"`
	TotalPossible         int             `json:"totalPossible"`
	AverageAttendance     int             `json:"averageAttendance"`
	LateStarts            int             `json:"lateStarts"`
	ShortClasses          int             `json:"shortClasses"`
	ActiveFaculty         []string        `json:"activeFaculty"`
	TotalScheduledMinutes int             `json:"totalScheduledMinutes"`
	TotalActualMinutes    int             `json:"totalActualMinutes"`
	TimeEfficiency        int             `json:"timeEfficiency"`
	PunctualityRate       int             `json:"punctualityRate"`
	CompletionRate        int             `json:"completionRate"`
	Recent                []logbook.Entry `json:"recent"`
}

// Overview aggregates marks and session timing across logs. ActiveFaculty
// lists distinct codes in first-appearance order; Recent holds the last five
// logs newest first.
func Overview(logs []logbook.Entry) OverviewStats {
	stats := OverviewStats{TotalClasses: len(logs), ActiveFaculty: []string{}}
	seenFaculty := make(map[string]bool)

	for _, log := range logs {
		for _, mark := range log.Attendance {
			stats.TotalPossible++
			switch mark.Status {
			case session.StatusPresent:
				stats.TotalPresent++
			case session.StatusLate:
				stats.TotalLate++
			case session.StatusAbsent:
				stats.TotalAbsent++
			}
		}
		if log.IsLateStart() {
			stats.LateStarts++
		}
		if log.IsShortClass() {
			stats.ShortClasses++
		}
		if log.Faculty != "" && !seenFaculty[log.Faculty] {
			seenFaculty[log.Faculty] = true
			stats.ActiveFaculty = append(stats.ActiveFaculty, log.Faculty)
		}
		stats.TotalScheduledMinutes += log.ScheduledDuration()
		if log.ActualDuration != nil {
			stats.TotalActualMinutes += *log.ActualDuration
		}
	}

	stats.AverageAttendance = pct(stats.TotalPresent, stats.TotalPossible)
	stats.TimeEfficiency = pct(stats.TotalActualMinutes, stats.TotalScheduledMinutes)
	if stats.TotalClasses > 0 {
		stats.PunctualityRate = pct(stats.TotalClasses-stats.LateStarts, stats.TotalClasses)
		stats.CompletionRate = pct(stats.TotalClasses-stats.ShortClasses, stats.TotalClasses)
	} else {
		stats.PunctualityRate = 100
		stats.CompletionRate = 100
	}

	recent := logs
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	stats.Recent = make([]logbook.Entry, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		stats.Recent = append(stats.Recent, recent[i])
	}
	return stats
}

// SubjectStats is one subject's aggregate row.
type SubjectStats struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Faculty       string `json:"faculty"`
	Day           string `json:"day"`
	Time          string `json:"time"`
	TotalClasses  int    `json:"totalClasses"`
	TotalPresent  int    `json:"totalPresent"`
	TotalPossible int    `json:"totalPossible"`
	AttendancePct int    `json:"attendancePct"`
	LateStarts    int    `json:"lateStarts"`
	ShortClasses  int    `json:"shortClasses"`
	Efficiency    int    `json:"efficiency"`
}

// PerSubject aggregates logs per subject, returning one row per subject that
// held at least one class, in the subjects' order. Efficiency is the ratio of
// average actual to average scheduled duration.
func PerSubject(logs []logbook.Entry, subjects []roster.Subject) []SubjectStats {
	index := make(map[string]int, len(subjects))
	rows := make([]SubjectStats, len(subjects))
	totalDuration := make([]int, len(subjects))
	totalScheduled := make([]int, len(subjects))
	for i, s := range subjects {
		index[s.ID] = i
		rows[i] = SubjectStats{ID: s.ID, Name: s.Name, Faculty: s.Faculty, Day: s.Day, Time: s.Time}
	}

	for _, log := range logs {
		i, ok := index[log.SubjectID]
		if !ok {
			continue
		}
		rows[i].TotalClasses++
		if log.IsLateStart() {
			rows[i].LateStarts++
		}
		if log.IsShortClass() {
			rows[i].ShortClasses++
		}
		if log.ActualDuration != nil {
			totalDuration[i] += *log.ActualDuration
		}
		totalScheduled[i] += log.ScheduledDuration()
		for _, mark := range log.Attendance {
			rows[i].TotalPossible++
			if mark.Status == session.StatusPresent {
				rows[i].TotalPresent++
			}
		}
	}

	var out []SubjectStats
	for i := range rows {
		if rows[i].TotalClasses == 0 {
			continue
		}
		rows[i].AttendancePct = pct(rows[i].TotalPresent, rows[i].TotalPossible)
		avgActual := roundDiv(totalDuration[i], rows[i].TotalClasses)
		avgScheduled := roundDiv(totalScheduled[i], rows[i].TotalClasses)
		rows[i].Efficiency = pct(avgActual, avgScheduled)
		out = append(out, rows[i])
	}
	return out
}

// StudentClass is one attended (or missed) class in a student's report.
type StudentClass struct {
	SubjectName string         `json:"subjectName"`
	Faculty     string         `json:"faculty"`
	Time        string         `json:"time"`
	Status      session.Status `json:"status"`
	Timestamp   *time.Time     `json:"timestamp,omitempty"`
}

// StudentStats is one student's aggregate row.
type StudentStats struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	RollNumber           string         `json:"rollNumber"`
	ClassName            string         `json:"className"`
	Classes              []StudentClass `json:"classes"`
	TotalPresent         int            `json:"totalPresent"`
	TotalAbsent          int            `json:"totalAbsent"`
	TotalLate            int            `json:"totalLate"`
	TotalClasses         int            `json:"totalClasses"`
	AttendancePercentage int            `json:"attendancePercentage"`
}

// PerStudent aggregates logs per student: one row per student marked in at
// least one log, classes listed in log order, rows sorted by attendance
// percentage descending with ties keeping roster order. Legacy string marks
// carry no timestamp.
func PerStudent(logs []logbook.Entry, students []roster.Student) []StudentStats {
	index := make(map[string]int, len(students))
	rows := make([]StudentStats, len(students))
	for i, st := range students {
		index[st.ID] = i
		rows[i] = StudentStats{ID: st.ID, Name: st.Name, RollNumber: st.RollNumber, ClassName: st.ClassName}
	}

	for _, log := range logs {
		for studentID, mark := range log.Attendance {
			i, ok := index[studentID]
			if !ok {
				continue
			}
			class := StudentClass{
				SubjectName: log.SubjectName,
				Faculty:     log.Faculty,
				Time:        log.ScheduledTime,
				Status:      mark.Status,
			}
			if !mark.IsLegacy() && !mark.Timestamp.IsZero() {
				ts := mark.Timestamp
				class.Timestamp = &ts
			}
			rows[i].Classes = append(rows[i].Classes, class)
			rows[i].TotalClasses++
			switch mark.Status {
			case session.StatusPresent:
				rows[i].TotalPresent++
			case session.StatusAbsent:
				rows[i].TotalAbsent++
			case session.StatusLate:
				rows[i].TotalLate++
			}
		}
	}

	var out []StudentStats
	for i := range rows {
		if rows[i].TotalClasses == 0 {
			continue
		}
		rows[i].AttendancePercentage = pct(rows[i].TotalPresent, rows[i].TotalClasses)
		out = append(out, rows[i])
	}
	sort.SliceStable(out, func(a, b int) bool {
		pa := float64(out[a].TotalPresent) / float64(out[a].TotalClasses)
		pb := float64(out[b].TotalPresent) / float64(out[b].TotalClasses)
		return pa > pb
	})
	return out
}

func pct(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

func roundDiv(sum, n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(n)))
}
