package models

import "time"

// Tutor is a member of the tutoring roster. SortOrder fixes the scan
// order used by assignment and substitution.
type Tutor struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WorkWindow restricts a tutor to a time range on one day of the week.
// A tutor with no windows for a day is open the whole day; with
// windows, only minutes inside a window (inclusive bounds) are open.
type WorkWindow struct {
	TutorID   string `db:"tutor_id" json:"tutor_id"`
	DayOfWeek string `db:"day_of_week" json:"day_of_week"`
	StartMin  int    `db:"start_min" json:"start_min"`
	EndMin    int    `db:"end_min" json:"end_min"`
}

// TutorDetail pairs a tutor with their intrinsic weekly windows.
type TutorDetail struct {
	Tutor
	Windows []WorkWindow `json:"windows,omitempty"`
}

// WithinWindow reports whether the tutor's intrinsic weekly schedule
// admits the given day and minutes-since-midnight.
func (t *TutorDetail) WithinWindow(day string, minutes int) bool {
	restricted := false
	for _, w := range t.Windows {
		if w.DayOfWeek != day {
			continue
		}
		restricted = true
		if minutes >= w.StartMin && minutes <= w.EndMin {
			return true
		}
	}
	return !restricted
}
