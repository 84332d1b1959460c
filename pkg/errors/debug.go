package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDetail is the subset of a postgres error worth logging.
type PGDetail struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Report flattens an error for structured logs.
type Report struct {
	Message string    `json:"message"`
	Code    Code      `json:"code,omitempty"`
	Chain   []string  `json:"chain,omitempty"`
	PG      *PGDetail `json:"pg,omitempty"`
}

// Fields renders the report as logger fields; the chain is included on request.
func (r Report) Fields(withChain bool) map[string]any {
	out := map[string]any{"error": r.Message}
	if r.Code != "" {
		out["error_code"] = r.Code
	}
	if r.PG != nil {
		out["pg_code"] = r.PG.Code
		out["pg_constraint"] = r.PG.Constraint
		out["pg_table"] = r.PG.Table
		out["pg_detail"] = r.PG.Detail
	}
	if withChain && len(r.Chain) > 0 {
		out["error_chain"] = r.Chain
	}
	return out
}

func Inspect(err error) Report {
	if err == nil {
		return Report{}
	}
	r := Report{Message: err.Error(), PG: postgresDetail(err)}
	if typed := As(err); typed != nil {
		r.Code = typed.Code()
	}
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		r.Chain = append(r.Chain, fmt.Sprintf("%T: %v", cur, cur))
	}
	return r
}

// postgresDetail understands both pgx (gorm) and lib/pq (goose) errors.
func postgresDetail(err error) *PGDetail {
	var pgxErr *pgconn.PgError
	if stdErrors.As(err, &pgxErr) {
		return &PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}
