package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

// BookingRepository persists lesson bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingSelect = `
SELECT b.id, b.user_id, b.child_id, b.child_name, b.grade, b.course, b.day_of_week, b.time_slot,
       b.lesson_date, b.tutor_id, t.name AS tutor_name, b.busy_tutor_id, bt.name AS busy_tutor_name,
       b.meet_link, b.event_link, b.needs_reschedule, b.created_at
FROM bookings b
JOIN tutors t ON t.id = b.tutor_id
LEFT JOIN tutors bt ON bt.id = b.busy_tutor_id`

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookings (id, user_id, child_id, child_name, grade, course, day_of_week, time_slot,
		lesson_date, tutor_id, busy_tutor_id, meet_link, event_link, needs_reschedule, created_at)
	VALUES (:id, :user_id, :child_id, :child_name, :grade, :course, :day_of_week, :time_slot,
		:lesson_date, :tutor_id, :busy_tutor_id, :meet_link, :event_link, :needs_reschedule, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID loads one booking with tutor names resolved.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := bookingSelect + ` WHERE b.id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Delete removes a booking owned by the given user.
func (r *BookingRepository) Delete(ctx context.Context, userID, bookingID string) error {
	const query = `DELETE FROM bookings WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, bookingID, userID)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted booking rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByUser returns the caller's bookings ordered by lesson date.
func (r *BookingRepository) ListByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	query := bookingSelect + ` WHERE b.user_id = $1 ORDER BY b.lesson_date ASC, b.time_slot ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("list bookings by user: %w", err)
	}
	return bookings, nil
}

// ListFutureByTutor returns bookings on or after the cutoff where the
// tutor is currently the assigned party.
func (r *BookingRepository) ListFutureByTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	query := bookingSelect + ` WHERE b.tutor_id = $1 AND b.lesson_date >= $2 ORDER BY b.lesson_date ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, from); err != nil {
		return nil, fmt.Errorf("list future bookings by tutor: %w", err)
	}
	return bookings, nil
}

// ListFutureByBusyTutor returns bookings on or after the cutoff where
// the tutor is the displaced home tutor.
func (r *BookingRepository) ListFutureByBusyTutor(ctx context.Context, tutorID string, from time.Time) ([]models.Booking, error) {
	query := bookingSelect + ` WHERE b.busy_tutor_id = $1 AND b.lesson_date >= $2 ORDER BY b.lesson_date ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, tutorID, from); err != nil {
		return nil, fmt.Errorf("list future bookings by busy tutor: %w", err)
	}
	return bookings, nil
}

// CountByChildCourse counts live bookings for a (child, course) pair.
func (r *BookingRepository) CountByChildCourse(ctx context.Context, childID, course string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE child_id = $1 AND course = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, childID, course); err != nil {
		return 0, fmt.Errorf("count bookings by child and course: %w", err)
	}
	return count, nil
}

// CountByTutor returns the total booking count per tutor id, the load
// figure used for least-busy assignment.
func (r *BookingRepository) CountByTutor(ctx context.Context) (map[string]int, error) {
	const query = `SELECT tutor_id, COUNT(*) AS total FROM bookings GROUP BY tutor_id`
	rows := []struct {
		TutorID string `db:"tutor_id"`
		Total   int    `db:"total"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count bookings by tutor: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.TutorID] = row.Total
	}
	return counts, nil
}

// UpdateAssignment rewrites the responsible tutor and the displaced
// tutor marker, clearing the reschedule flag on success.
func (r *BookingRepository) UpdateAssignment(ctx context.Context, bookingID, tutorID string, busyTutorID *string) error {
	const query = `UPDATE bookings SET tutor_id = $2, busy_tutor_id = $3, needs_reschedule = FALSE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookingID, tutorID, busyTutorID); err != nil {
		return fmt.Errorf("update booking assignment: %w", err)
	}
	return nil
}

// MarkNeedsReschedule flags a booking no substitute could cover.
func (r *BookingRepository) MarkNeedsReschedule(ctx context.Context, bookingID string) error {
	const query = `UPDATE bookings SET needs_reschedule = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookingID); err != nil {
		return fmt.Errorf("mark booking for reschedule: %w", err)
	}
	return nil
}

// SetLinks stores meeting links returned by the calendar service.
func (r *BookingRepository) SetLinks(ctx context.Context, bookingID string, meetLink, eventLink *string) error {
	const query = `UPDATE bookings SET meet_link = $2, event_link = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, bookingID, meetLink, eventLink); err != nil {
		return fmt.Errorf("set booking links: %w", err)
	}
	return nil
}
