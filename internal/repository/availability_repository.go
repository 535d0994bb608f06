package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

// AvailabilityRepository persists tutor availability blocks. A slot can
// carry at most one recurring row and one row per calendar week.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs the repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByTutor returns every block owned by the tutor.
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.UnavailableSlot, error) {
	const query = `SELECT tutor_id, day_of_week, time_slot, kind, week_start_ms, created_at
FROM tutor_unavailability WHERE tutor_id = $1 ORDER BY day_of_week, time_slot, kind`
	var slots []models.UnavailableSlot
	if err := r.db.SelectContext(ctx, &slots, query, tutorID); err != nil {
		return nil, fmt.Errorf("list availability blocks: %w", err)
	}
	return slots, nil
}

// IsBlocked reports whether either the recurring block or the
// week-specific block exists for the slot. A zero weekStartMs checks
// the recurring block only, which is the pre-check path used before a
// concrete lesson date is chosen.
func (r *AvailabilityRepository) IsBlocked(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (bool, error) {
	const query = `SELECT 1 FROM tutor_unavailability
WHERE tutor_id = $1 AND day_of_week = $2 AND time_slot = $3
  AND (kind = $4 OR ($5 > 0 AND kind = $6 AND week_start_ms = $5))
LIMIT 1`
	var one int
	err := r.db.GetContext(ctx, &one, query, tutorID, day, timeSlot,
		models.BlockRecurring, weekStartMs, models.BlockWeek)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check slot block: %w", err)
	}
	return true, nil
}

// SlotState resolves the effective toggle state of a slot for the
// given week: week-specific block wins for display, recurring block
// otherwise, else available.
func (r *AvailabilityRepository) SlotState(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) (models.SlotState, error) {
	const query = `SELECT kind FROM tutor_unavailability
WHERE tutor_id = $1 AND day_of_week = $2 AND time_slot = $3
  AND (kind = $4 OR (kind = $5 AND week_start_ms = $6))`
	var kinds []models.BlockKind
	if err := r.db.SelectContext(ctx, &kinds, query, tutorID, day, timeSlot,
		models.BlockRecurring, models.BlockWeek, weekStartMs); err != nil {
		return models.SlotAvailable, fmt.Errorf("resolve slot state: %w", err)
	}
	state := models.SlotAvailable
	for _, kind := range kinds {
		switch kind {
		case models.BlockRecurring:
			return models.SlotRecurring, nil
		case models.BlockWeek:
			state = models.SlotWeek
		}
	}
	return state, nil
}

// SetWeekBlock writes the single-week block for the slot.
func (r *AvailabilityRepository) SetWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error {
	const query = `INSERT INTO tutor_unavailability (tutor_id, day_of_week, time_slot, kind, week_start_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (tutor_id, day_of_week, time_slot, week_start_ms) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, tutorID, day, timeSlot, models.BlockWeek, weekStartMs, time.Now().UTC()); err != nil {
		return fmt.Errorf("set week block: %w", err)
	}
	return nil
}

// SetRecurringBlock writes the every-week block for the slot.
// Recurring rows live at week_start_ms = 0.
func (r *AvailabilityRepository) SetRecurringBlock(ctx context.Context, tutorID, day, timeSlot string) error {
	const query = `INSERT INTO tutor_unavailability (tutor_id, day_of_week, time_slot, kind, week_start_ms, created_at)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (tutor_id, day_of_week, time_slot, week_start_ms) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, tutorID, day, timeSlot, models.BlockRecurring, time.Now().UTC()); err != nil {
		return fmt.Errorf("set recurring block: %w", err)
	}
	return nil
}

// DeleteWeekBlock removes the week-specific block for one week only.
func (r *AvailabilityRepository) DeleteWeekBlock(ctx context.Context, tutorID, day, timeSlot string, weekStartMs int64) error {
	const query = `DELETE FROM tutor_unavailability
WHERE tutor_id = $1 AND day_of_week = $2 AND time_slot = $3 AND kind = $4 AND week_start_ms = $5`
	if _, err := r.db.ExecContext(ctx, query, tutorID, day, timeSlot, models.BlockWeek, weekStartMs); err != nil {
		return fmt.Errorf("delete week block: %w", err)
	}
	return nil
}

// ClearSlot removes the recurring block and every week-specific block
// ever written for the day and time, across all weeks.
func (r *AvailabilityRepository) ClearSlot(ctx context.Context, tutorID, day, timeSlot string) error {
	const query = `DELETE FROM tutor_unavailability
WHERE tutor_id = $1 AND day_of_week = $2 AND time_slot = $3`
	if _, err := r.db.ExecContext(ctx, query, tutorID, day, timeSlot); err != nil {
		return fmt.Errorf("clear slot blocks: %w", err)
	}
	return nil
}
