package auth

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/users"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopfront-backend/pkg/db/models"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopfront-backend/pkg/security"
)

var testPasswordCfg = config.PasswordConfig{
	ArgonMemoryKB:    8 * 1024,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
	MinLength:        8,
}

var testJWTConfig = config.JWTConfig{Secret: "secret", Issuer: "shopfront", ExpirationMinutes: 30, RefreshTokenTTLMinutes: 120}

type fixture struct {
	client   *db.Client
	conn     *gorm.DB
	register RegisterService
	svc      Service
	sessions *stubSessions
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	f := &fixture{client: client, conn: client.DB(), sessions: newStubSessions(), now: time.Now()}

	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	register, err := NewRegisterService(RegisterServiceParams{
		DB:             client,
		Outbox:         emitter,
		PasswordConfig: testPasswordCfg,
		ConfirmConfig:  config.EmailConfirmConfig{TokenTTL: time.Hour},
		Now:            func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.register = register

	svc, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(client.DB()),
		TokenRepo:      users.NewTokenRepository(client.DB()),
		SessionManager: f.sessions,
		JWTConfig:      testJWTConfig,
		TokenConfig:    config.AuthTokenConfig{KeyBytes: 20},
		PasswordConfig: testPasswordCfg,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) registerUser(t *testing.T, email, password string) string {
	t.Helper()
	err := f.register.Register(context.Background(), RegisterRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     email,
		Password:  password,
		Company:   "Acme",
		Position:  "Buyer",
	})
	require.NoError(t, err)

	user, err := users.NewRepository(f.conn).FindByEmail(context.Background(), normalizeEmail(email))
	require.NoError(t, err)
	var row models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ? AND aggregate_id = ?", enums.EventUserRegistered, user.ID).First(&row).Error)
	envelope, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	var event payloads.UserRegisteredEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &event))
	return event.ConfirmToken
}

func TestRegisterCreatesInactiveUserAndQueuesMail(t *testing.T) {
	f := newFixture(t)
	token := f.registerUser(t, "  Ivan@Example.com ", "s3cure-pass")
	assert.NotEmpty(t, token)

	user, err := users.NewRepository(f.conn).FindByEmail(context.Background(), "ivan@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, enums.UserTypeBuyer, user.Type)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.registerUser(t, "dup@example.com", "s3cure-pass")

	err := f.register.Register(context.Background(), RegisterRequest{
		FirstName: "A", LastName: "B", Email: "DUP@example.com", Password: "s3cure-pass", Company: "C", Position: "D",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newFixture(t)
	err := f.register.Register(context.Background(), RegisterRequest{
		FirstName: "A", LastName: "B", Email: "weak@example.com", Password: "12345678", Company: "C", Position: "D",
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConfirmActivatesOnceThenRejectsReuse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.registerUser(t, "ok@example.com", "s3cure-pass")

	require.NoError(t, f.register.Confirm(ctx, ConfirmRequest{Email: "OK@example.com", Token: token}))
	user, err := users.NewRepository(f.conn).FindByEmail(ctx, "ok@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive)

	err = f.register.Confirm(ctx, ConfirmRequest{Email: "ok@example.com", Token: token})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken))
}

func TestConfirmRejectsMismatchedEmailAndExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.registerUser(t, "owner@example.com", "s3cure-pass")
	f.registerUser(t, "other@example.com", "s3cure-pass")

	err := f.register.Confirm(ctx, ConfirmRequest{Email: "other@example.com", Token: token})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken))

	f.now = f.now.Add(2 * time.Hour)
	err = f.register.Confirm(ctx, ConfirmRequest{Email: "owner@example.com", Token: token})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken))

	user, err := users.NewRepository(f.conn).FindByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
}

func TestLoginRequiresActiveAccountAndReusesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.registerUser(t, "login@example.com", "s3cure-pass")

	_, err := f.svc.Login(ctx, LoginRequest{Email: "login@example.com", Password: "s3cure-pass"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "inactive account must not log in")

	require.NoError(t, f.register.Confirm(ctx, ConfirmRequest{Email: "login@example.com", Token: token}))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "login@example.com", Password: "wrong-pass"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	first, err := f.svc.Login(ctx, LoginRequest{Email: "login@example.com", Password: "s3cure-pass"})
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, LoginRequest{Email: "Login@Example.com", Password: "s3cure-pass"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	principal, err := f.svc.ResolveToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "login@example.com", principal.Email)
	assert.Equal(t, enums.UserTypeBuyer, principal.Type)

	_, err = f.svc.ResolveToken(ctx, "unknown")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginUpgradesStaleHash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.registerUser(t, "legacy@example.com", "s3cure-pass")
	require.NoError(t, f.register.Confirm(ctx, ConfirmRequest{Email: "legacy@example.com", Token: token}))

	weaker := testPasswordCfg
	weaker.ArgonKeyLen = 16
	stale, err := security.HashPassword("s3cure-pass", weaker)
	require.NoError(t, err)
	repo := users.NewRepository(f.conn)
	user, err := repo.FindByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, stale))

	_, err = f.svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: "s3cure-pass"})
	require.NoError(t, err)

	user, err = repo.FindByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, stale, user.PasswordHash)
	assert.False(t, security.NeedsRehash(user.PasswordHash, testPasswordCfg))
}

func TestAdminLoginRequiresStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.registerUser(t, "plain@example.com", "s3cure-pass")
	require.NoError(t, f.register.Confirm(ctx, ConfirmRequest{Email: "plain@example.com", Token: token}))

	_, err := f.svc.AdminLogin(ctx, LoginRequest{Email: "plain@example.com", Password: "s3cure-pass"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = CreateSuperuser(ctx, f.client, testPasswordCfg, SuperuserRequest{Email: "root@example.com", Password: "r00t-pass"})
	require.NoError(t, err)

	resp, err := f.svc.AdminLogin(ctx, LoginRequest{Email: "root@example.com", Password: "r00t-pass"})
	require.NoError(t, err)
	assert.Equal(t, string(enums.StaffRoleSuperuser), resp.Role)

	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, enums.StaffRoleSuperuser, claims.Role)
	assert.Contains(t, f.sessions.active, claims.ID)
}

func TestAdminRefreshRotatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := CreateSuperuser(ctx, f.client, testPasswordCfg, SuperuserRequest{Email: "ops@example.com", Password: "0ps-pass-word"})
	require.NoError(t, err)

	login, err := f.svc.AdminLogin(ctx, LoginRequest{Email: "ops@example.com", Password: "0ps-pass-word"})
	require.NoError(t, err)
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, login.AccessToken)
	require.NoError(t, err)

	refreshed, err := f.svc.AdminRefresh(ctx, claims.ID, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.NotContains(t, f.sessions.active, claims.ID)

	_, err = f.svc.AdminRefresh(ctx, claims.ID, login.RefreshToken)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	newClaims, err := pkgAuth.ParseAccessToken(testJWTConfig, refreshed.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.svc.AdminLogout(ctx, newClaims.ID))
	assert.Empty(t, f.sessions.active)
}

type stubSessions struct {
	active map[string]session.Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{active: map[string]session.Session{}}
}

func (s *stubSessions) Start(_ context.Context, userID uuid.UUID) (session.Session, error) {
	sess := session.Session{AccessID: session.NewAccessID(), RefreshToken: uuid.NewString(), UserID: userID}
	s.active[sess.AccessID] = sess
	return sess, nil
}

func (s *stubSessions) Rotate(ctx context.Context, oldAccessID, provided string) (session.Session, error) {
	current, ok := s.active[oldAccessID]
	if !ok || current.RefreshToken != provided {
		return session.Session{}, session.ErrInvalidRefreshToken
	}
	delete(s.active, oldAccessID)
	return s.Start(ctx, current.UserID)
}

func (s *stubSessions) Revoke(_ context.Context, accessID string) error {
	delete(s.active, accessID)
	return nil
}
