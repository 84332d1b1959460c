package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code    Code
		status  int
		public  string
		expose  bool
		details bool
		retry   bool
	}{
		{CodeValidation, http.StatusBadRequest, "validation failed", true, true, false},
		{CodeUnauthorized, http.StatusUnauthorized, "authentication required", true, false, false},
		{CodeForbidden, http.StatusForbidden, "access denied", true, false, false},
		{CodeNotFound, http.StatusNotFound, "resource not found", true, false, false},
		{CodeConflict, http.StatusConflict, "conflict detected", true, false, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, "state transition disallowed", true, true, false},
		{CodeInvalidToken, http.StatusBadRequest, "token is invalid or expired", true, false, false},
		{CodeRateLimit, http.StatusTooManyRequests, "rate limit exceeded", true, false, false},
		{CodeInternal, http.StatusInternalServerError, "internal server error", false, false, true},
		{CodeDependency, http.StatusServiceUnavailable, "dependency unavailable", false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			m := MetadataFor(tt.code)
			assert.Equal(t, tt.status, m.HTTPStatus)
			assert.Equal(t, tt.status, tt.code.HTTPStatus())
			assert.Equal(t, tt.public, m.PublicMessage)
			assert.Equal(t, tt.expose, m.ExposeMessage)
			assert.Equal(t, tt.details, m.DetailsAllowed)
			assert.Equal(t, tt.retry, m.Retryable)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "missing %s", "foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", base.Error())

	base.WithDetails(map[string]any{"field": "foo"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Nil(t, nilErr.WithDetails("x"))
}

func TestIsCodeFollowsWrappedChain(t *testing.T) {
	outer := fmt.Errorf("confirm: %w", New(CodeInvalidToken, "token already used"))
	assert.True(t, IsCode(outer, CodeInvalidToken))
	assert.False(t, IsCode(outer, CodeConflict))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestInspectCollectsChain(t *testing.T) {
	report := Inspect(Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "redis unavailable"))
	assert.Equal(t, CodeDependency, report.Code)
	assert.Len(t, report.Chain, 2)
	assert.Nil(t, report.PG)

	fields := report.Fields(false)
	assert.NotContains(t, fields, "error_chain")
	assert.Contains(t, report.Fields(true), "error_chain")
}

func TestInspectReadsPostgresErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_open_basket", TableName: "orders"}
	report := Inspect(Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "basket exists"))
	require.NotNil(t, report.PG)
	assert.Equal(t, "23505", report.PG.Code)
	assert.Equal(t, "ux_orders_open_basket", report.Fields(false)["pg_constraint"])
	assert.Empty(t, Inspect(nil).Chain)
}
