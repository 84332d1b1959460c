package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

const (
	invalidTokenMessage = "confirmation token is invalid or expired"
	confirmKeyBytes     = 16
)

// RegisterService handles sign-up and email confirmation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) error
	Confirm(ctx context.Context, req ConfirmRequest) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             txRunner
	Outbox         outbox.Emitter
	PasswordConfig config.PasswordConfig
	ConfirmConfig  config.EmailConfirmConfig
	Now            func() time.Time
}

type registerService struct {
	tx          txRunner
	outbox      outbox.Emitter
	passwordCfg config.PasswordConfig
	tokenTTL    time.Duration
	now         func() time.Time
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	ttl := params.ConfirmConfig.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &registerService{
		tx:          params.DB,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		tokenTTL:    ttl,
		now:         now,
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	userType := req.Type
	if userType == "" {
		userType = enums.UserTypeBuyer
	}
	if !userType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid user type").
			WithDetails(map[string][]string{"type": {"must be one of [buyer shop]"}})
	}
	if problems := security.ValidatePasswordStrength(req.Password, email, s.passwordCfg.MinLength); len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "password rejected").
			WithDetails(map[string][]string{"password": problems})
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		tokenRepo := users.NewTokenRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Company:      strings.TrimSpace(req.Company),
			Position:     strings.TrimSpace(req.Position),
			Type:         userType,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		token, err := tokenRepo.CreateConfirmToken(ctx, user.ID, confirmKeyBytes)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create confirm token")
		}

		err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Role: string(user.Type)},
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				FirstName:    user.FirstName,
				ConfirmToken: token.Key,
			},
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue confirmation mail")
		}
		return nil
	})
}

func (s *registerService) Confirm(ctx context.Context, req ConfirmRequest) error {
	email := normalizeEmail(req.Email)
	key := strings.TrimSpace(req.Token)
	if email == "" || key == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		tokenRepo := users.NewTokenRepository(tx)

		token, err := tokenRepo.FindConfirmToken(ctx, key)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load confirm token")
		}
		if s.now().After(token.CreatedAt.Add(s.tokenTTL)) {
			return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
		}

		user, err := userRepo.FindByID(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		if user.Email != email {
			return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
		}

		deleted, err := tokenRepo.DeleteConfirmToken(ctx, token.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume confirm token")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
		}

		if err := userRepo.Activate(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate user")
		}
		return nil
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
