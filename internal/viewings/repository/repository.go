package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estatefunnel_backend/internal/viewings/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("viewing not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrUserNotFound     = errors.New("user not found")
	// ErrVersionConflict signals a concurrent mutation detected by the
	// versioned write.
	ErrVersionConflict = errors.New("viewing was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const viewingColumns = `id, lead_id, property_id, scheduled_by, scheduled_at, duration_minutes,
	viewing_type, status, is_ai_generated, ai_reasoning, attendees, confirmation, reminders,
	outcome, rescheduled_from, version, created_at, updated_at`

func scanViewing(row pgx.Row) (domain.Viewing, error) {
	var v domain.Viewing
	err := row.Scan(
		&v.ID, &v.LeadID, &v.PropertyID, &v.ScheduledBy, &v.ScheduledAt, &v.DurationMinutes,
		&v.ViewingType, &v.Status, &v.IsAIGenerated, &v.AIReasoning, &v.Attendees, &v.Confirmation, &v.Reminders,
		&v.Outcome, &v.RescheduledFrom, &v.Version, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.Viewing{}, err
	}
	return v, nil
}

func (r *Repository) Create(ctx context.Context, v *domain.Viewing) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO viewings
			(id, lead_id, property_id, scheduled_by, scheduled_at, duration_minutes,
			 viewing_type, status, is_ai_generated, ai_reasoning, attendees, confirmation,
			 reminders, rescheduled_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING version, created_at, updated_at
	`,
		v.ID, v.LeadID, v.PropertyID, v.ScheduledBy, v.ScheduledAt, v.DurationMinutes,
		v.ViewingType, v.Status, v.IsAIGenerated, v.AIReasoning, v.Attendees, v.Confirmation,
		v.Reminders, v.RescheduledFrom,
	)
	if err := row.Scan(&v.Version, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create viewing: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Viewing, error) {
	v, err := scanViewing(r.pool.QueryRow(ctx, `
		SELECT `+viewingColumns+`
		FROM viewings
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Viewing{}, ErrNotFound
		}
		return domain.Viewing{}, fmt.Errorf("failed to get viewing: %w", err)
	}
	return v, nil
}

// Save writes the mutable viewing fields with an optimistic version check.
func (r *Repository) Save(ctx context.Context, v *domain.Viewing) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE viewings
		SET status = $3,
			confirmation = $4,
			reminders = $5,
			outcome = $6,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, v.ID, v.Version, v.Status, v.Confirmation, v.Reminders, v.Outcome)

	if err := row.Scan(&v.Version, &v.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, v.ID); errors.Is(getErr, ErrNotFound) {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to save viewing: %w", err)
	}
	return nil
}

// ListActiveByProperty returns scheduled or confirmed viewings for slot
// conflict checks.
func (r *Repository) ListActiveByProperty(ctx context.Context, propertyID uuid.UUID) ([]domain.Viewing, error) {
	return r.list(ctx, `
		SELECT `+viewingColumns+`
		FROM viewings
		WHERE property_id = $1
		  AND status IN ('scheduled', 'confirmed')
		ORDER BY scheduled_at ASC
	`, propertyID)
}

// ListUpcoming returns active viewings starting within the given window,
// used by the reminder job.
func (r *Repository) ListUpcoming(ctx context.Context, from, until time.Time) ([]domain.Viewing, error) {
	return r.list(ctx, `
		SELECT `+viewingColumns+`
		FROM viewings
		WHERE status IN ('scheduled', 'confirmed')
		  AND scheduled_at > $1
		  AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, from, until)
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Viewing, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list viewings: %w", err)
	}
	defer rows.Close()

	viewings := make([]domain.Viewing, 0)
	for rows.Next() {
		v, err := scanViewing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan viewing: %w", err)
		}
		viewings = append(viewings, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return viewings, nil
}

// HasInterestedCompleted reports whether the lead has at least one
// completed viewing with an interested outcome.
func (r *Repository) HasInterestedCompleted(ctx context.Context, leadID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM viewings
			WHERE lead_id = $1
			  AND status = 'completed'
			  AND (outcome->>'interested')::boolean = true
		)
	`, leadID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check viewing outcomes: %w", err)
	}
	return exists, nil
}

// Property is the read-only property reference used for invitations.
type Property struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Title          string
	Location       string
	ListPriceCents int64
}

func (r *Repository) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	var p Property
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, location, list_price_cents
		FROM properties
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Location, &p.ListPriceCents)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// User is the read-only user reference for owner attendees.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
