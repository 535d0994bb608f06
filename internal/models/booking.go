package models

import "time"

// Booking is one scheduled lesson occurrence. TutorID always names the
// tutor currently responsible; BusyTutorID is set only while a
// substitution is active and names the displaced home tutor.
type Booking struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	ChildID         string    `db:"child_id" json:"child_id"`
	ChildName       string    `db:"child_name" json:"child"`
	Grade           string    `db:"grade" json:"grade"`
	Course          string    `db:"course" json:"course"`
	DayOfWeek       string    `db:"day_of_week" json:"day"`
	TimeSlot        string    `db:"time_slot" json:"time"`
	LessonDate      time.Time `db:"lesson_date" json:"date"`
	TutorID         string    `db:"tutor_id" json:"tutor_id"`
	TutorName       string    `db:"tutor_name" json:"tutor"`
	BusyTutorID     *string   `db:"busy_tutor_id" json:"busy_tutor_id,omitempty"`
	BusyTutorName   *string   `db:"busy_tutor_name" json:"busyTutor,omitempty"`
	MeetLink        *string   `db:"meet_link" json:"meetLink,omitempty"`
	EventLink       *string   `db:"event_link" json:"eventLink,omitempty"`
	NeedsReschedule bool      `db:"needs_reschedule" json:"needs_reschedule"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ChildCourseTutor is the materialized home-tutor index: the tutor who
// first taught the (child, course) pair and owns its continuity.
type ChildCourseTutor struct {
	ChildID   string    `db:"child_id" json:"child_id"`
	Course    string    `db:"course" json:"course"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
