// AngelaMos | 2026
// repository.go

package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/localmart/localmart/internal/core"
)

type Repository interface {
	CustomerFor(ctx context.Context, userID string) (string, error)
	SaveCustomer(ctx context.Context, userID, stripeCustomerID string) error

	ListCards(ctx context.Context, userID string) ([]Card, error)
	GetCard(ctx context.Context, id string) (*Card, error)
	SaveDefaultCard(ctx context.Context, card *Card) error
	DeleteCard(ctx context.Context, id string) error
}

const cardColumns = `
	id, user_id, stripe_payment_method_id, last4, brand, exp_month, exp_year,
	is_default, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CustomerFor(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `
		SELECT stripe_customer_id FROM stripe_customers
		WHERE user_id = $1
		ORDER BY created_at
		LIMIT 1`, userID)
	if err != nil {
		return "", core.MapError("get stripe customer", err)
	}
	return id, nil
}

func (r *repository) SaveCustomer(ctx context.Context, userID, stripeCustomerID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stripe_customers (id, user_id, stripe_customer_id)
		VALUES ($1, $2, $3)`, uuid.New().String(), userID, stripeCustomerID)
	return core.MapError("save stripe customer", err)
}

func (r *repository) ListCards(ctx context.Context, userID string) ([]Card, error) {
	var cards []Card
	err := r.db.SelectContext(ctx, &cards, `
		SELECT`+cardColumns+` FROM payment_methods
		WHERE user_id = $1
		ORDER BY created_at
		LIMIT 50`, userID)
	if err != nil {
		return nil, core.MapError("list payment methods", err)
	}
	return cards, nil
}

func (r *repository) GetCard(ctx context.Context, id string) (*Card, error) {
	var card Card
	err := r.db.GetContext(ctx, &card,
		`SELECT`+cardColumns+` FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return nil, core.MapError("get payment method", err)
	}
	return &card, nil
}

// SaveDefaultCard clears the user's other defaults and inserts card as the
// new default in one transaction.
func (r *repository) SaveDefaultCard(ctx context.Context, card *Card) error {
	card.IsDefault = true

	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payment_methods
			SET is_default = FALSE, updated_at = NOW()
			WHERE user_id = $1 AND is_default`, card.UserID); err != nil {
			return core.MapError("clear default payment method", err)
		}

		err := tx.QueryRowxContext(ctx, `
			INSERT INTO payment_methods
				(id, user_id, stripe_payment_method_id, last4, brand, exp_month, exp_year, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at`,
			card.ID,
			card.UserID,
			card.StripePaymentMethodID,
			card.Last4,
			card.Brand,
			card.ExpMonth,
			card.ExpYear,
			card.IsDefault,
		).Scan(&card.CreatedAt, &card.UpdatedAt)
		return core.MapError("save payment method", err)
	})
}

func (r *repository) DeleteCard(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return core.MapError("delete payment method", err)
	}
	return core.RequireRows("delete payment method", result)
}
