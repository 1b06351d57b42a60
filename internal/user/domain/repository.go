package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	// AssignMerchantAccount stores accountID only if the user has none yet and
	// reports whether it was stored.
	AssignMerchantAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, accountID string, now time.Time) (bool, error)
	SetOnboardingComplete(ctx context.Context, db *gorm.DB, id snowflake.ID, complete bool, now time.Time) error
	// ListPendingOnboarding returns organizers holding a merchant account
	// whose onboarding has not completed, oldest update first.
	ListPendingOnboarding(ctx context.Context, db *gorm.DB, limit int) ([]User, error)
}
