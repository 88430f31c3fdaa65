package tracker

import (
	"log/slog"
	"strconv"
	"strings"

	"coursetrack/services/tracker/store"
)

type Report struct {
	// rows with a strictly positive minute count
	Courses        int
	Excluded       int
	TotalMinutes   int
	AverageMinutes float64
	Rows           []store.Record
}

// quiz and practice-test entries leak into the course listing and render
// their size as "N questions" instead of a duration
const artifactMarker = "questions"

func isArtifact(r store.Record) bool {
	return strings.Contains(r.Link, artifactMarker) ||
		strings.Contains(r.Title, artifactMarker) ||
		strings.Contains(r.Time, artifactMarker)
}

// Normalize rewrites the duration column of every persisted record into
// integer minutes and reports totals over the rows that produced a positive
// count. Non-course artifacts are dropped from the rewritten table.
func Normalize(st store.DetailStore) (Report, error) {
	rows, err := st.Load()
	if err != nil {
		return Report{}, err
	}

	var report Report
	kept := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		if isArtifact(r) {
			slog.Warn("excluding non-course artifact", "link", r.Link, "title", r.Title)
			report.Excluded++
			continue
		}
		mins := ToMinutes(r.Time)
		r.Time = strconv.Itoa(mins)
		kept = append(kept, r)
		if mins > 0 {
			report.Courses++
			report.TotalMinutes += mins
		}
	}
	if report.Courses > 0 {
		report.AverageMinutes = float64(report.TotalMinutes) / float64(report.Courses)
	}
	report.Rows = kept

	if err := st.Replace(kept); err != nil {
		return Report{}, err
	}
	return report, nil
}
