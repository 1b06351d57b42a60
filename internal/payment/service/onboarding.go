package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/huddle/internal/payment/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Onboard makes sure the organizer has a merchant account and returns a
// fresh onboarding link for it. The account is created at most once; a
// concurrent caller that loses the assignment reuses the stored id.
func (s *Service) Onboard(ctx context.Context, userID snowflake.ID) (link paymentdomain.OnboardingLink, err error) {
	ctx, span := startSpan(ctx, "payment.Onboard", attribute.String("user_id", userID.String()))
	defer func() { endSpan(span, err) }()

	if userID == 0 {
		return paymentdomain.OnboardingLink{}, paymentdomain.ErrInvalidRequest
	}
	user, err := s.loadUser(ctx, userID, paymentdomain.ErrUserNotFound)
	if err != nil {
		return paymentdomain.OnboardingLink{}, err
	}

	accountID := user.MerchantAccountID()
	if accountID == "" {
		created, err := s.gateway.CreateAccount(ctx, paymentdomain.CreateAccountInput{
			Email:          user.Email,
			Country:        s.cfg.AccountCountry,
			IdempotencyKey: fmt.Sprintf("account:%s", userID),
		})
		if err != nil {
			return paymentdomain.OnboardingLink{}, err
		}

		stored, err := s.users.AssignMerchantAccount(ctx, s.db, userID, created, s.clock.Now())
		if err != nil {
			return paymentdomain.OnboardingLink{}, err
		}
		accountID = created
		if !stored {
			user, err = s.loadUser(ctx, userID, paymentdomain.ErrUserNotFound)
			if err != nil {
				return paymentdomain.OnboardingLink{}, err
			}
			accountID = user.MerchantAccountID()
		}
		s.log.Info("merchant account assigned",
			zap.String("user_id", userID.String()),
			zap.String("account_id", accountID),
		)
	}

	url, err := s.gateway.CreateAccountLink(ctx, paymentdomain.AccountLinkInput{
		AccountID:  accountID,
		ReturnURL:  s.cfg.OnboardingReturnURL,
		RefreshURL: s.cfg.OnboardingRefreshURL,
	})
	if err != nil {
		return paymentdomain.OnboardingLink{}, err
	}
	return paymentdomain.OnboardingLink{AccountID: accountID, URL: url}, nil
}

// RefreshOnboarding polls the gateway and stores whether the organizer can
// now take payments.
func (s *Service) RefreshOnboarding(ctx context.Context, userID snowflake.ID) (status paymentdomain.OrganizerStatus, err error) {
	ctx, span := startSpan(ctx, "payment.RefreshOnboarding", attribute.String("user_id", userID.String()))
	defer func() { endSpan(span, err) }()

	if userID == 0 {
		return paymentdomain.OrganizerStatus{}, paymentdomain.ErrInvalidRequest
	}
	user, err := s.loadUser(ctx, userID, paymentdomain.ErrUserNotFound)
	if err != nil {
		return paymentdomain.OrganizerStatus{}, err
	}
	accountID := user.MerchantAccountID()
	if accountID == "" {
		return paymentdomain.OrganizerStatus{}, nil
	}

	account, err := s.gateway.RetrieveAccount(ctx, accountID)
	if err != nil {
		return paymentdomain.OrganizerStatus{}, err
	}
	enabled := account.PaymentsEnabled()
	if enabled != user.StripeOnboardingComplete {
		if err := s.users.SetOnboardingComplete(ctx, s.db, userID, enabled, s.clock.Now()); err != nil {
			return paymentdomain.OrganizerStatus{}, err
		}
		s.log.Info("organizer payments status changed",
			zap.String("user_id", userID.String()),
			zap.Bool("payments_enabled", enabled),
		)
	}

	return paymentdomain.OrganizerStatus{
		AccountID:        accountID,
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		PaymentsEnabled:  enabled,
	}, nil
}
