package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ChildCourseRepository maintains the materialized home-tutor index:
// one row per (child, course) pair naming the tutor who owns its
// continuity.
type ChildCourseRepository struct {
	db *sqlx.DB
}

// NewChildCourseRepository constructs the repository.
func NewChildCourseRepository(db *sqlx.DB) *ChildCourseRepository {
	return &ChildCourseRepository{db: db}
}

// HomeTutor returns the home tutor id for the pair, or "" when the
// pair has no established tutor yet.
func (r *ChildCourseRepository) HomeTutor(ctx context.Context, childID, course string) (string, error) {
	const query = `SELECT tutor_id FROM child_course_tutors WHERE child_id = $1 AND course = $2`
	var tutorID string
	if err := r.db.GetContext(ctx, &tutorID, query, childID, course); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("resolve home tutor: %w", err)
	}
	return tutorID, nil
}

// Establish records the home tutor for a pair if none exists yet. The
// first booking wins; later bookings never overwrite it.
func (r *ChildCourseRepository) Establish(ctx context.Context, childID, course, tutorID string) error {
	const query = `INSERT INTO child_course_tutors (child_id, course, tutor_id, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (child_id, course) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, childID, course, tutorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("establish home tutor: %w", err)
	}
	return nil
}

// Release drops the pair's home tutor. Called when the last booking
// for the pair is cancelled so a later booking starts fresh.
func (r *ChildCourseRepository) Release(ctx context.Context, childID, course string) error {
	const query = `DELETE FROM child_course_tutors WHERE child_id = $1 AND course = $2`
	if _, err := r.db.ExecContext(ctx, query, childID, course); err != nil {
		return fmt.Errorf("release home tutor: %w", err)
	}
	return nil
}
