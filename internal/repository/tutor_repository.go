package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/eastbay-tutoring/scheduler-api/internal/models"
)

// TutorRepository provides persistence for the tutor roster.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository creates a new tutor repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

const tutorColumns = `id, user_id, name, email, sort_order, active, created_at`

// ListActive returns active tutors with their intrinsic work windows,
// ordered by sort_order then name. This order is the fixed scan order
// the assignment engine relies on.
func (r *TutorRepository) ListActive(ctx context.Context) ([]models.TutorDetail, error) {
	const query = `SELECT ` + tutorColumns + ` FROM tutors WHERE active = TRUE ORDER BY sort_order ASC, name ASC`
	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, query); err != nil {
		return nil, fmt.Errorf("list active tutors: %w", err)
	}

	const windowQuery = `SELECT tutor_id, day_of_week, start_min, end_min FROM tutor_work_windows ORDER BY tutor_id, day_of_week, start_min`
	var windows []models.WorkWindow
	if err := r.db.SelectContext(ctx, &windows, windowQuery); err != nil {
		return nil, fmt.Errorf("list tutor work windows: %w", err)
	}

	byTutor := make(map[string][]models.WorkWindow, len(tutors))
	for _, w := range windows {
		byTutor[w.TutorID] = append(byTutor[w.TutorID], w)
	}

	details := make([]models.TutorDetail, 0, len(tutors))
	for _, t := range tutors {
		details = append(details, models.TutorDetail{Tutor: t, Windows: byTutor[t.ID]})
	}
	return details, nil
}

// FindByID loads a tutor by id.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	const query = `SELECT ` + tutorColumns + ` FROM tutors WHERE id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// FindByUserID resolves the tutor linked to an authenticated account.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	const query = `SELECT ` + tutorColumns + ` FROM tutors WHERE user_id = $1`
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, query, userID); err != nil {
		return nil, err
	}
	return &tutor, nil
}
