package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNotFound = errors.New("user_not_found")

// User is an account on the platform. Organizers additionally carry a
// merchant account at the payment gateway.
type User struct {
	ID                       snowflake.ID `json:"id" gorm:"primaryKey"`
	Email                    string       `json:"email" gorm:"type:text;not null"`
	Name                     string       `json:"name" gorm:"type:text;not null"`
	StripeAccountID          *string      `json:"stripe_account_id,omitempty" gorm:"type:text"`
	StripeOnboardingComplete bool         `json:"stripe_onboarding_complete" gorm:"not null"`
	CreatedAt                time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt                time.Time    `json:"updated_at" gorm:"not null"`
}

func (User) TableName() string { return "users" }

// MerchantAccountID returns the gateway account id, or "" when the user has
// never started onboarding.
func (u User) MerchantAccountID() string {
	if u.StripeAccountID == nil {
		return ""
	}
	return *u.StripeAccountID
}

// CanReceivePayments reports whether checkouts may route money to this user.
func (u User) CanReceivePayments() bool {
	return u.MerchantAccountID() != "" && u.StripeOnboardingComplete
}
