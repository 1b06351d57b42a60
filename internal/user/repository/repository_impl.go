package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/huddle/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, email, name, stripe_account_id, stripe_onboarding_complete, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.StripeAccountID,
		user.StripeOnboardingComplete,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var item domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, stripe_account_id, stripe_onboarding_complete, created_at, updated_at
		 FROM users
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) AssignMerchantAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE users
		 SET stripe_account_id = ?, updated_at = ?
		 WHERE id = ? AND (stripe_account_id IS NULL OR stripe_account_id = '')`,
		accountID,
		now,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetOnboardingComplete(ctx context.Context, db *gorm.DB, id snowflake.ID, complete bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users
		 SET stripe_onboarding_complete = ?, updated_at = ?
		 WHERE id = ?`,
		complete,
		now,
		id,
	).Error
}

func (r *repo) ListPendingOnboarding(ctx context.Context, db *gorm.DB, limit int) ([]domain.User, error) {
	var items []domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, name, stripe_account_id, stripe_onboarding_complete, created_at, updated_at
		 FROM users
		 WHERE stripe_account_id IS NOT NULL AND stripe_account_id <> ''
		   AND stripe_onboarding_complete = ?
		 ORDER BY updated_at, id
		 LIMIT ?`,
		false,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
