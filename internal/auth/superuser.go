package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

// SuperuserRequest describes an operator account created from the CLI.
type SuperuserRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// CreateSuperuser inserts an active staff+superuser account. Email
// confirmation is skipped for operator accounts.
func CreateSuperuser(ctx context.Context, runner txRunner, passwordCfg config.PasswordConfig, req SuperuserRequest) (*users.UserDTO, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if problems := security.ValidatePasswordStrength(req.Password, email, passwordCfg.MinLength); len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, strings.Join(problems, "; "))
	}

	passwordHash, err := security.HashPassword(req.Password, passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *users.UserDTO
	err = runner.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

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
			IsActive:     true,
			IsStaff:      true,
			IsSuperuser:  true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
