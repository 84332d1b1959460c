package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/internal/admin"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/imports"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type stubImports struct {
	principal pkgAuth.Principal
	src       imports.Source
}

func (s *stubImports) Import(ctx context.Context, principal pkgAuth.Principal, src imports.Source) (*imports.Result, error) {
	s.principal, s.src = principal, src
	return &imports.Result{Shop: "Связной", Created: 1}, nil
}

type stubOrders struct {
	orders.Service
	deleted []uuid.UUID
	userID  uuid.UUID
}

func (s *stubOrders) DeleteItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.userID, s.deleted = userID, ids
	return int64(len(ids)), nil
}

func (s *stubOrders) Checkout(ctx context.Context, userID uuid.UUID, req orders.CheckoutRequest) (*orders.OrderDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "basket is empty")
}

type stubRegister struct {
	got auth.RegisterRequest
}

func (s *stubRegister) Register(ctx context.Context, req auth.RegisterRequest) error {
	s.got = req
	if req.Email == "taken@example.com" {
		return pkgerrors.New(pkgerrors.CodeConflict, "user with this email already exists")
	}
	return nil
}

func (s *stubRegister) Confirm(ctx context.Context, req auth.ConfirmRequest) error {
	return pkgerrors.New(pkgerrors.CodeInvalidToken, "invalid or expired token")
}

type stubAdminList struct {
	admin.Service
	query admin.ListQuery
}

func (s *stubAdminList) List(ctx context.Context, staff admin.Staff, entity string, query admin.ListQuery, base *url.URL) (pagination.Page[admin.Row], error) {
	s.query = query
	return pagination.NewPage[admin.Row](nil, 0, query.Params, base), nil
}

func withUser(r *http.Request, id uuid.UUID, typ enums.UserType, email string) *http.Request {
	ctx := middleware.WithUserID(r.Context(), id.String())
	ctx = middleware.WithUserType(ctx, typ)
	ctx = middleware.WithUserEmail(ctx, email)
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthRegister(t *testing.T) {
	reg := &stubRegister{}
	h := AuthRegister(reg, nil)
	payload := `{"first_name":"Ann","last_name":"Lee","email":"%s","password":"s3cret-pass","company":"Acme","position":"Buyer"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/register", strings.NewReader(strings.Replace(payload, "%s", "ann@example.com", 1)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["Status"])
	assert.Equal(t, "ann@example.com", reg.got.Email)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/user/register", strings.NewReader(strings.Replace(payload, "%s", "taken@example.com", 1)))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["Status"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/user/register", strings.NewReader(`{"email":"bad"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs, ok := decodeBody(t, rec)["Errors"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errs, "email")
}

func TestAuthConfirmReportsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/register/confirm", strings.NewReader(`{"email":"ann@example.com","token":"stale"}`))
	rec := httptest.NewRecorder()
	AuthConfirm(&stubRegister{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInvalidToken), decodeBody(t, rec)["Code"])
}

func TestPartnerUpdateAcceptsURLOrRawFeed(t *testing.T) {
	svc := &stubImports{}
	h := PartnerUpdate(svc, 1<<20, nil)
	shopUser := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/partner/update", strings.NewReader(`{"url":"https://example.com/shop.yaml"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(req, shopUser, enums.UserTypeShop, "shop@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/shop.yaml", svc.src.URL)
	assert.Nil(t, svc.src.Body)
	assert.Equal(t, shopUser, svc.principal.UserID)
	assert.Equal(t, "shop@example.com", svc.principal.Email)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/partner/update", strings.NewReader("shop: Связной\n"))
	req.Header.Set("Content-Type", "application/x-yaml")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(req, shopUser, enums.UserTypeShop, "shop@example.com"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shop: Связной\n", string(svc.src.Body))
	assert.Empty(t, svc.src.URL)
	result := decodeBody(t, rec)["result"].(map[string]any)
	assert.Equal(t, "Связной", result["shop"])
}

func TestPartnerUpdateRejectsOversizedFeed(t *testing.T) {
	h := PartnerUpdate(&stubImports{}, 8, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/partner/update", strings.NewReader("shop: much too long"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withUser(req, uuid.New(), enums.UserTypeShop, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBasketDeleteParsesItemList(t *testing.T) {
	svc := &stubOrders{}
	userID := uuid.New()
	a, b := uuid.New(), uuid.New()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/basket", strings.NewReader(`{"items":"`+a.String()+`, `+b.String()+`,"}`))
	rec := httptest.NewRecorder()
	BasketDelete(svc, nil).ServeHTTP(rec, withUser(req, userID, enums.UserTypeBuyer, ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{a, b}, svc.deleted)
	assert.Equal(t, userID, svc.userID)
	assert.EqualValues(t, 2, decodeBody(t, rec)["Deleted"])

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/basket", strings.NewReader(`{"items":"1,2"}`))
	rec = httptest.NewRecorder()
	BasketDelete(svc, nil).ServeHTTP(rec, withUser(req, userID, enums.UserTypeBuyer, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderCheckoutSurfacesStateConflict(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/order", strings.NewReader(`{"id":"`+uuid.NewString()+`","contact":"`+uuid.NewString()+`"}`))
	rec := httptest.NewRecorder()
	OrderCheckout(&stubOrders{}, nil).ServeHTTP(rec, withUser(req, uuid.New(), enums.UserTypeBuyer, ""))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeStateConflict), decodeBody(t, rec)["Code"])
}

func TestCustomerHandlersRequireUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/basket", nil)
	rec := httptest.NewRecorder()
	BasketGet(&stubOrders{}, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminListSplitsFilters(t *testing.T) {
	svc := &stubAdminList{}
	r := chi.NewRouter()
	r.Get("/{entity}", AdminList(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/users?q=ann&is_active=true&limit=5", nil)
	ctx := middleware.WithUserID(req.Context(), uuid.NewString())
	ctx = middleware.WithStaffRole(ctx, enums.StaffRoleStaff)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ann", svc.query.Search)
	assert.Equal(t, map[string]string{"is_active": "true"}, svc.query.Filters)
	assert.Equal(t, 5, svc.query.Params.Limit)
}

func TestAdminHandlersRequireStaffRole(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/{entity}", AdminList(&stubAdminList{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString())))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
