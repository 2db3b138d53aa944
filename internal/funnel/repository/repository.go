package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"estatefunnel_backend/internal/funnel/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound         = errors.New("lead not found")
	ErrPropertyNotFound = errors.New("property not found")
	ErrUserNotFound     = errors.New("user not found")
	// ErrVersionConflict signals a concurrent mutation detected by the
	// versioned write. Callers surface it as a retryable conflict.
	ErrVersionConflict = errors.New("lead was modified concurrently")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, property_id, created_by, client_name, client_email, client_phone,
	stage, score, buying_intent, stage_history, negotiation, deal_closure, ai_engagement,
	next_follow_up_at, last_follow_up_at, follow_up_count, auto_follow_up_enabled,
	version, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	err := row.Scan(
		&lead.ID, &lead.PropertyID, &lead.CreatedBy, &lead.ClientName, &lead.ClientEmail, &lead.ClientPhone,
		&lead.Stage, &lead.Score, &lead.BuyingIntent, &lead.StageHistory, &lead.Negotiation, &lead.DealClosure, &lead.AIEngagement,
		&lead.NextFollowUpDate, &lead.LastFollowUpDate, &lead.FollowUpCount, &lead.AutoFollowUpEnabled,
		&lead.Version, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// Save writes all funnel-owned fields with an optimistic version check.
// Returns ErrVersionConflict when the row changed since the lead was read.
func (r *Repository) Save(ctx context.Context, lead *domain.Lead) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE leads
		SET stage = $3,
			stage_history = $4,
			negotiation = $5,
			deal_closure = $6,
			ai_engagement = $7,
			next_follow_up_at = $8,
			last_follow_up_at = $9,
			follow_up_count = $10,
			auto_follow_up_enabled = $11,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`,
		lead.ID, lead.Version,
		lead.Stage, lead.StageHistory, lead.Negotiation, lead.DealClosure, lead.AIEngagement,
		lead.NextFollowUpDate, lead.LastFollowUpDate, lead.FollowUpCount, lead.AutoFollowUpEnabled,
	)

	if err := row.Scan(&lead.Version, &lead.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the lead is gone or the version moved underneath us.
			if _, getErr := r.GetByID(ctx, lead.ID); errors.Is(getErr, ErrNotFound) {
				return ErrNotFound
			}
			return ErrVersionConflict
		}
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

// AppendAIAction atomically appends one audit entry and bumps the
// interaction counters without a version check. Audit appends are
// commutative, so concurrent appends never need to conflict.
func (r *Repository) AppendAIAction(ctx context.Context, leadID uuid.UUID, action domain.AIAction) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to encode ai action: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET ai_engagement = jsonb_set(
				jsonb_set(
					jsonb_set(
						ai_engagement,
						'{actions}',
						COALESCE(ai_engagement->'actions', '[]'::jsonb) || $2::jsonb
					),
					'{totalInteractions}',
					to_jsonb(COALESCE((ai_engagement->>'totalInteractions')::int, 0) + 1)
				),
				'{lastAIAction}',
				to_jsonb($3::timestamptz)
			),
			updated_at = now()
		WHERE id = $1
	`, leadID, payload, action.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append ai action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueFollowUps returns non-terminal leads whose automated follow-up is
// due at or before the given time.
func (r *Repository) ListDueFollowUps(ctx context.Context, now time.Time, limit int) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE auto_follow_up_enabled = true
		  AND next_follow_up_at IS NOT NULL
		  AND next_follow_up_at <= $1
		  AND stage NOT IN ('won', 'lost', 'disqualified')
		ORDER BY next_follow_up_at ASC
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due follow-ups: %w", err)
	}
	defer rows.Close()

	leads := make([]domain.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}

// StageAggregate is one row of the pipeline aggregation.
type StageAggregate struct {
	Stage        domain.Stage
	Count        int
	RevenueCents int64
}

// AggregateByStage groups leads by stage with won revenue totals,
// optionally scoped to one owning user.
func (r *Repository) AggregateByStage(ctx context.Context, createdBy *uuid.UUID) ([]StageAggregate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stage,
			COUNT(*),
			COALESCE(SUM((deal_closure->>'revenueCents')::bigint) FILTER (WHERE stage = 'won'), 0)
		FROM leads
		WHERE ($1::uuid IS NULL OR created_by = $1)
		GROUP BY stage
	`, createdBy)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate pipeline: %w", err)
	}
	defer rows.Close()

	aggregates := make([]StageAggregate, 0)
	for rows.Next() {
		var agg StageAggregate
		if err := rows.Scan(&agg.Stage, &agg.Count, &agg.RevenueCents); err != nil {
			return nil, err
		}
		aggregates = append(aggregates, agg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return aggregates, nil
}

// Property is the read-only property reference used by the funnel.
type Property struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Title          string
	Location       string
	PropertyType   string
	ListPriceCents int64
	Currency       string
}

func (r *Repository) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	var p Property
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, title, location, property_type, list_price_cents, currency
		FROM properties
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OwnerID, &p.Title, &p.Location, &p.PropertyType, &p.ListPriceCents, &p.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, fmt.Errorf("failed to get property: %w", err)
	}
	return p, nil
}

// User is the read-only user reference used for owner notifications.
type User struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
	Role  string
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, role
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
