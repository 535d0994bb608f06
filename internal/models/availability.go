package models

import "time"

// UnavailableSlot is one availability block owned by a tutor. Week
// blocks carry the epoch-millisecond Monday of the week they apply to;
// recurring blocks store zero.
type UnavailableSlot struct {
	TutorID     string    `db:"tutor_id" json:"tutor_id"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	TimeSlot    string    `db:"time_slot" json:"time_slot"`
	Kind        BlockKind `db:"kind" json:"kind"`
	WeekStartMs *int64    `db:"week_start_ms" json:"week_start_ms,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Key renders the slot's lookup key in the documented wire format.
func (s *UnavailableSlot) Key() string {
	if s.Kind == BlockWeek && s.WeekStartMs != nil {
		return WeekKey(s.DayOfWeek, s.TimeSlot, *s.WeekStartMs)
	}
	return RecurringKey(s.DayOfWeek, s.TimeSlot)
}

// ScheduleDocument is the availability document shape consumed by the
// schedule grid: slot key to block kind.
type ScheduleDocument struct {
	UnavailableSlots map[string]BlockKind `json:"unavailableSlots"`
}

// BuildScheduleDocument folds block rows into the document form.
func BuildScheduleDocument(slots []UnavailableSlot) ScheduleDocument {
	doc := ScheduleDocument{UnavailableSlots: make(map[string]BlockKind, len(slots))}
	for i := range slots {
		doc.UnavailableSlots[slots[i].Key()] = slots[i].Kind
	}
	return doc
}

// ToggleResult reports the outcome of one three-state toggle click
// together with the reconciliation it triggered.
type ToggleResult struct {
	DayOfWeek string          `json:"day_of_week"`
	TimeSlot  string          `json:"time_slot"`
	State     SlotState       `json:"state"`
	Reconcile ReconcileResult `json:"reconcile"`
}

// ReconcileResult aggregates the booking rewrites performed after an
// availability change.
type ReconcileResult struct {
	Substitutions   int `json:"substitutions"`
	Restorations    int `json:"restorations"`
	NeedsReschedule int `json:"needs_reschedule"`
	BookingsScanned int `json:"bookings_scanned"`
}
