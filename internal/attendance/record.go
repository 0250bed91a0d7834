package attendance

import "time"

// Record is one student's presence in one section on one local calendar date.
// It is keyed by (student, section, date), not by which token redeemed it.
type Record struct {
	ID        int64      `json:"id"`
	StudentID int64      `json:"student_id"`
	SectionID int64      `json:"section_id"`
	Date      time.Time  `json:"date"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
