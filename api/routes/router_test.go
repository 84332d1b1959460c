package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/internal/admin"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type stubAuth struct {
	principals map[string]pkgAuth.Principal
}

func (s stubAuth) Login(ctx context.Context, req auth.LoginRequest) (string, error) {
	if req.Password != "correct-horse" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return "opaque-key", nil
}

func (s stubAuth) ResolveToken(ctx context.Context, key string) (pkgAuth.Principal, error) {
	p, ok := s.principals[key]
	if !ok {
		return pkgAuth.Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return p, nil
}

func (stubAuth) AdminLogin(ctx context.Context, req auth.LoginRequest) (*auth.AdminLoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff only")
}

func (stubAuth) AdminRefresh(ctx context.Context, accessID, refreshToken string) (*auth.AdminLoginResponse, error) {
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
}

func (stubAuth) AdminLogout(ctx context.Context, accessID string) error {
	return nil
}

type stubSessions struct{}

func (stubSessions) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

type stubAdmin struct {
	entity string
	staff  admin.Staff
}

func (s *stubAdmin) List(ctx context.Context, staff admin.Staff, entity string, query admin.ListQuery, base *url.URL) (pagination.Page[admin.Row], error) {
	s.entity, s.staff = entity, staff
	return pagination.NewPage([]admin.Row{{"id": "x"}}, 1, query.Params, base), nil
}

func (s *stubAdmin) Get(ctx context.Context, staff admin.Staff, entity string, id uuid.UUID) (admin.Row, error) {
	s.entity = entity
	return admin.Row{"id": id.String()}, nil
}

func (s *stubAdmin) Patch(ctx context.Context, staff admin.Staff, entity string, id uuid.UUID, fields map[string]any) (admin.Row, error) {
	s.entity = entity
	return admin.Row{"id": id.String()}, nil
}

func (s *stubAdmin) Delete(ctx context.Context, staff admin.Staff, entity string, id uuid.UUID) error {
	s.entity = entity
	return nil
}

func (s *stubAdmin) ChangeOrderState(ctx context.Context, staff admin.Staff, orderID uuid.UUID, state string) (*orders.OrderDTO, error) {
	s.entity = admin.EntityOrders
	return &orders.OrderDTO{ID: orderID, State: enums.OrderState(state)}, nil
}

var (
	buyerID = uuid.New()
	shopID  = uuid.New()
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "shopfront", ExpirationMinutes: 30},
	}
}

func newTestRouter(t *testing.T, adm admin.Service, reg *prometheus.Registry) http.Handler {
	t.Helper()
	deps := Deps{
		Sessions: stubSessions{},
		Auth: stubAuth{principals: map[string]pkgAuth.Principal{
			"buyer-key": {UserID: buyerID, Email: "buyer@example.com", Type: enums.UserTypeBuyer},
			"shop-key":  {UserID: shopID, Email: "shop@example.com", Type: enums.UserTypeShop},
		}},
		Admin: adm,
	}
	if reg != nil {
		deps.Gatherer = reg
		deps.HTTP = metrics.NewHTTPMetrics(reg)
	}
	return NewRouter(testConfig(), nil, deps)
}

func do(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func staffToken(t *testing.T, role enums.StaffRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func TestHealthLive(t *testing.T) {
	rec := do(newTestRouter(t, nil, nil), http.MethodGet, "/health/live", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["Status"])
	assert.Equal(t, "test", rec.Header().Get("X-Shopfront-Env"))
}

func TestLoginReturnsToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rec := do(h, http.MethodPost, "/api/v1/user/login", "", `{"email":"buyer@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["Status"])
	assert.Equal(t, "opaque-key", body["Token"])

	rec = do(h, http.MethodPost, "/api/v1/user/login", "", `{"email":"buyer@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, false, body["Status"])
	assert.NotContains(t, body, "Token")
}

func TestCustomerRoutesRequireToken(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	for _, path := range []string{"/api/v1/basket", "/api/v1/order", "/api/v1/user/details", "/api/v1/partner/state"} {
		rec := do(h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, string(pkgerrors.CodeUnauthorized), decode(t, rec)["Code"], path)
	}
}

func TestPartnerRoutesRejectBuyers(t *testing.T) {
	h := newTestRouter(t, nil, nil)

	rec := do(h, http.MethodGet, "/api/v1/partner/state", "Token buyer-key", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the shop passes the role gate and reaches the unwired service
	rec = do(h, http.MethodGet, "/api/v1/partner/state", "Token shop-key", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	adm := &stubAdmin{}
	h := newTestRouter(t, adm, nil)

	rec := do(h, http.MethodGet, "/api/admin/v1/users", "Token buyer-key", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := staffToken(t, enums.StaffRoleStaff)
	rec = do(h, http.MethodGet, "/api/admin/v1/product-infos?q=phone&shop=1", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.EntityProductInfos, adm.entity)
	assert.Equal(t, enums.StaffRoleStaff, adm.staff.Role)
	assert.EqualValues(t, 1, decode(t, rec)["count"])

	id := uuid.New()
	rec = do(h, http.MethodPatch, "/api/admin/v1/shops/"+id.String(), token, `{"state":"closed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, admin.EntityShops, adm.entity)

	rec = do(h, http.MethodGet, "/api/admin/v1/shops/not-a-uuid", token, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminOrderStateRoute(t *testing.T) {
	adm := &stubAdmin{}
	h := newTestRouter(t, adm, nil)
	token := staffToken(t, enums.StaffRoleSuperuser)
	id := uuid.New()

	rec := do(h, http.MethodPost, "/api/admin/v1/orders/"+id.String()+"/state", token, `{"state":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["Status"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "confirmed", order["state"])

	rec = do(h, http.MethodPost, "/api/admin/v1/shops/"+id.String()+"/state", token, `{"state":"confirmed"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpointExposesRequestCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newTestRouter(t, nil, reg)

	do(h, http.MethodGet, "/health/live", "", "")
	rec := do(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}
