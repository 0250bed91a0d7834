package session

import "time"

// Status is the session lifecycle state.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Session is one bounded occurrence of a class meeting for a section.
// Active duplicates status == ACTIVE for query paths.
type Session struct {
	ID          int64      `json:"id"`
	SectionID   int64      `json:"section_id"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      Status     `json:"status"`
	Active      bool       `json:"active"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
