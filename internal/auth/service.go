package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid email or password"

// Service covers customer login, token resolution and the admin panel session.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (string, error)
	ResolveToken(ctx context.Context, key string) (pkgAuth.Principal, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*AdminLoginResponse, error)
	AdminRefresh(ctx context.Context, accessID, refreshToken string) (*AdminLoginResponse, error)
	AdminLogout(ctx context.Context, accessID string) error
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type tokenRepository interface {
	GetOrCreateAuthToken(ctx context.Context, userID uuid.UUID, keyBytes int) (*models.AuthToken, error)
	FindAuthToken(ctx context.Context, key string) (*models.AuthToken, error)
}

type sessionManager interface {
	Start(ctx context.Context, userID uuid.UUID) (session.Session, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (session.Session, error)
	Revoke(ctx context.Context, accessID string) error
}

type service struct {
	users    userRepository
	tokens   tokenRepository
	session  sessionManager
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	keyBytes int
	logg     *logger.Logger
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	TokenRepo      tokenRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	TokenConfig    config.AuthTokenConfig
	// PasswordConfig is the target for upgrading stale hashes on login.
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.TokenRepo == nil {
		return nil, fmt.Errorf("token repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:    params.UserRepo,
		tokens:   params.TokenRepo,
		session:  params.SessionManager,
		jwtCfg:   params.JWTConfig,
		pwCfg:    params.PasswordConfig,
		keyBytes: params.TokenConfig.KeyBytes,
		logg:     params.Logger,
		now:      now,
	}, nil
}

// Login returns the caller's persistent API token, creating it on first use.
func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return "", err
	}
	if _, err := s.recordLogin(ctx, user); err != nil {
		return "", err
	}
	token, err := s.tokens.GetOrCreateAuthToken(ctx, user.ID, s.keyBytes)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue token")
	}
	return token.Key, nil
}

func (s *service) ResolveToken(ctx context.Context, key string) (pkgAuth.Principal, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	token, err := s.tokens.FindAuthToken(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
		}
		return pkgAuth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup token")
	}
	user, err := s.users.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
		}
		return pkgAuth.Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "account is inactive")
	}
	return pkgAuth.Principal{UserID: user.ID, Email: user.Email, Type: user.Type}, nil
}

func (s *service) AdminLogin(ctx context.Context, req LoginRequest) (*AdminLoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	role, ok := enums.StaffRoleFor(user.IsStaff, user.IsSuperuser)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff account required")
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	sess, err := s.session.Start(ctx, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start session")
	}
	return s.issue(now, user, role, sess)
}

// AdminRefresh rotates the session. The staff flags are re-read so a revoked
// staff member cannot keep refreshing.
func (s *service) AdminRefresh(ctx context.Context, accessID, refreshToken string) (*AdminLoginResponse, error) {
	sess, err := s.session.Rotate(ctx, accessID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil {
		_ = s.session.Revoke(ctx, sess.AccessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	role, ok := enums.StaffRoleFor(user.IsStaff, user.IsSuperuser)
	if !ok || !user.IsActive {
		_ = s.session.Revoke(ctx, sess.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff account required")
	}
	return s.issue(s.now().UTC(), user, role, sess)
}

func (s *service) AdminLogout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) issue(now time.Time, user *models.User, role enums.StaffRole, sess session.Session) (*AdminLoginResponse, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
		JTI:    sess.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &AdminLoginResponse{
		AccessToken:  accessToken,
		RefreshToken: sess.RefreshToken,
		Role:         string(role),
		User:         users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	s.upgradeHash(ctx, user, password)
	return user, nil
}

// upgradeHash re-hashes with the current argon2 settings. Failure only
// costs the upgrade, never the login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	if s.pwCfg.ArgonMemoryKB == 0 || !security.NeedsRehash(user.PasswordHash, s.pwCfg) {
		return
	}
	hash, err := security.HashPassword(password, s.pwCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "auth.rehash_failed")
		return
	}
	user.PasswordHash = hash
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}
