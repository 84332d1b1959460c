package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/api/validators"
	"github.com/angelmondragon/shopfront-backend/internal/admin"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

// query keys consumed by the list view itself; the rest are filters.
var adminReservedParams = map[string]bool{"q": true, "limit": true, "offset": true}

func currentStaff(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (admin.Staff, bool) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return admin.Staff{}, false
	}
	role := middleware.StaffRoleFromContext(r.Context())
	if role == "" {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff access required"))
		return admin.Staff{}, false
	}
	return admin.Staff{UserID: userID, Role: role}, true
}

func AdminList(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "admin service")
			return
		}
		staff, ok := currentStaff(w, r, logg)
		if !ok {
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := admin.ListQuery{
			Search:  validators.SanitizeSearch(r.URL.Query().Get("q"), validators.MaxSearchRunes),
			Filters: map[string]string{},
			Params:  params,
		}
		for key, values := range r.URL.Query() {
			if adminReservedParams[key] || len(values) == 0 {
				continue
			}
			query.Filters[key] = values[0]
		}

		page, err := svc.List(r.Context(), staff, chi.URLParam(r, "entity"), query, requestURL(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminGet(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "admin service")
			return
		}
		staff, ok := currentStaff(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), staff, chi.URLParam(r, "entity"), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// AdminPatch updates editable columns. The body is a flat JSON object keyed
// by column name.
func AdminPatch(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "admin service")
			return
		}
		staff, ok := currentStaff(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var fields map[string]any
		if r.Body == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body is required"))
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}

		row, err := svc.Patch(r.Context(), staff, chi.URLParam(r, "entity"), id, fields)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

func AdminDelete(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "admin service")
			return
		}
		staff, ok := currentStaff(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), staff, chi.URLParam(r, "entity"), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOK(w, nil)
	}
}

// AdminOrderState moves an order through the fulfillment state machine.
func AdminOrderState(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "admin service")
			return
		}
		staff, ok := currentStaff(w, r, logg)
		if !ok {
			return
		}
		if chi.URLParam(r, "entity") != admin.EntityOrders {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "not found"))
			return
		}
		orderID, err := validators.ParsePathUUID(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		r = r.WithContext(logg.WithOrderID(r.Context(), orderID.String()))

		var body orders.StateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ChangeOrderState(r.Context(), staff, orderID, body.State)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteOK(w, map[string]any{"order": order})
	}
}
