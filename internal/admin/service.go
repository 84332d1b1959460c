package admin

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

// Row is one rendered record keyed by column name.
type Row map[string]any

// ListQuery carries the list view inputs.
type ListQuery struct {
	Search  string
	Filters map[string]string
	Params  pagination.Params
}

// Staff is the authenticated panel user.
type Staff struct {
	UserID uuid.UUID
	Role   enums.StaffRole
}

type orderStateChanger interface {
	ChangeState(ctx context.Context, actor orders.Actor, orderID uuid.UUID, state string) (*orders.OrderDTO, error)
}

type authorizer interface {
	Allowed(role enums.StaffRole, entity string, action Action) (bool, error)
}

// Service backs the admin panel endpoints.
type Service interface {
	List(ctx context.Context, staff Staff, entity string, query ListQuery, base *url.URL) (pagination.Page[Row], error)
	Get(ctx context.Context, staff Staff, entity string, id uuid.UUID) (Row, error)
	Patch(ctx context.Context, staff Staff, entity string, id uuid.UUID, fields map[string]any) (Row, error)
	Delete(ctx context.Context, staff Staff, entity string, id uuid.UUID) error
	ChangeOrderState(ctx context.Context, staff Staff, orderID uuid.UUID, state string) (*orders.OrderDTO, error)
}

type ServiceParams struct {
	DB     *gorm.DB
	Policy authorizer
	Orders orderStateChanger
}

type service struct {
	db     *gorm.DB
	policy authorizer
	orders orderStateChanger
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database required")
	}
	if params.Policy == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "admin policy required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	return &service{db: params.DB, policy: params.Policy, orders: params.Orders}, nil
}

func (s *service) List(ctx context.Context, staff Staff, entity string, query ListQuery, base *url.URL) (pagination.Page[Row], error) {
	rm, err := s.authorize(staff, entity, ActionView)
	if err != nil {
		return pagination.Page[Row]{}, err
	}
	params := query.Params.Normalize()

	q := s.from(ctx, rm)
	if term := strings.TrimSpace(query.Search); term != "" && len(rm.Search) > 0 {
		q = q.Where(s.searchClause(rm), searchArgs(rm, term)...)
	}
	problems := map[string][]string{}
	for _, param := range sortedKeys(query.Filters) {
		f, ok := rm.filter(param)
		if !ok {
			problems[param] = append(problems[param], "is not a filter for "+rm.Name)
			continue
		}
		v, err := f.value(query.Filters[param])
		if err != nil {
			problems[param] = append(problems[param], err.Error())
			continue
		}
		q = q.Where(f.Expr+" = ?", v)
	}
	if len(problems) > 0 {
		return pagination.Page[Row]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid filters").WithDetails(problems)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return pagination.Page[Row]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count "+rm.Name)
	}
	rows := []Row{}
	if total > 0 {
		var raw []map[string]any
		err := q.Select(rm.selectList()).
			Order(rm.OrderBy).
			Limit(params.Limit).
			Offset(params.Offset).
			Find(&raw).Error
		if err != nil {
			return pagination.Page[Row]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list "+rm.Name)
		}
		for _, r := range raw {
			rows = append(rows, normalizeRow(r))
		}
	}
	return pagination.NewPage(rows, total, params, base), nil
}

func (s *service) Get(ctx context.Context, staff Staff, entity string, id uuid.UUID) (Row, error) {
	rm, err := s.authorize(staff, entity, ActionView)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, rm, id)
}

func (s *service) Patch(ctx context.Context, staff Staff, entity string, id uuid.UUID, fields map[string]any) (Row, error) {
	rm, err := s.authorize(staff, entity, ActionChange)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}

	updates := map[string]any{}
	problems := map[string][]string{}
	for _, key := range sortedKeys(fields) {
		field, ok := rm.Editable[key]
		switch {
		case !ok && rm.isReadOnly(key):
			problems[key] = append(problems[key], "is read-only")
			continue
		case !ok:
			problems[key] = append(problems[key], "is not a field of "+rm.Name)
			continue
		}
		v, err := field.coerce(fields[key])
		if err != nil {
			problems[key] = append(problems[key], err.Error())
			continue
		}
		updates[field.Column] = v
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields").WithDetails(problems)
	}
	if rm.HasUpdated {
		updates["updated_at"] = time.Now().UTC()
	}

	var row Row
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Table(rm.Table).Where(rm.Table+".id = ?", id).Count(&exists).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+rm.Name)
		}
		if exists == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
		}
		if err := tx.Table(rm.Table).Where("id = ?", id).Updates(updates).Error; err != nil {
			switch {
			case db.IsUniqueViolation(err, ""):
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "value already in use")
			case db.IsForeignKeyViolation(err):
				return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "referenced record does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update "+rm.Name)
		}
		row, err = s.load(ctx, tx, rm, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func (s *service) Delete(ctx context.Context, staff Staff, entity string, id uuid.UUID) error {
	rm, err := s.authorize(staff, entity, ActionDelete)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Exec("DELETE FROM "+rm.Table+" WHERE id = ?", id)
	if res.Error != nil {
		if db.IsForeignKeyViolation(res.Error) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, res.Error, "record is still referenced")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete "+rm.Name)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	return nil
}

func (s *service) ChangeOrderState(ctx context.Context, staff Staff, orderID uuid.UUID, state string) (*orders.OrderDTO, error) {
	if _, err := s.authorize(staff, EntityOrders, ActionChange); err != nil {
		return nil, err
	}
	return s.orders.ChangeState(ctx, orders.Actor{UserID: staff.UserID, Role: string(staff.Role)}, orderID, state)
}

func (s *service) authorize(staff Staff, entity string, action Action) (*ReadModel, error) {
	rm, ok := Lookup(entity)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("unknown entity %q", entity))
	}
	allowed, err := s.policy.Allowed(staff.Role, entity, action)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "evaluate admin policy")
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s may not %s %s", staff.Role, action, entity))
	}
	return rm, nil
}

func (s *service) from(ctx context.Context, rm *ReadModel) *gorm.DB {
	q := s.db.WithContext(ctx).Table(rm.Table)
	for _, join := range rm.Joins {
		q = q.Joins(join)
	}
	return q
}

func (s *service) load(ctx context.Context, conn *gorm.DB, rm *ReadModel, id uuid.UUID) (Row, error) {
	q := conn.WithContext(ctx).Table(rm.Table)
	for _, join := range rm.Joins {
		q = q.Joins(join)
	}
	var raw []map[string]any
	err := q.Select(rm.selectList()).Where(rm.Table+".id = ?", id).Limit(1).Find(&raw).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+rm.Name)
	}
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
	}
	return normalizeRow(raw[0]), nil
}

func (s *service) searchClause(rm *ReadModel) string {
	op := "LIKE"
	if s.db.Dialector != nil && s.db.Dialector.Name() == "postgres" {
		op = "ILIKE"
	}
	parts := make([]string, 0, len(rm.Search))
	for _, expr := range rm.Search {
		parts = append(parts, expr+" "+op+` ? ESCAPE '\'`)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func searchArgs(rm *ReadModel, term string) []any {
	pattern := "%" + escapeLike(term) + "%"
	args := make([]any, len(rm.Search))
	for i := range args {
		args[i] = pattern
	}
	return args
}

func escapeLike(term string) string {
	return strings.NewReplacer("%", `\%`, "_", `\_`).Replace(term)
}

// normalizeRow turns driver specific scan results into plain values. gorm
// scans map rows through *any, so the pointer is unwrapped first.
func normalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for k, v := range raw {
		row[k] = plainValue(v)
	}
	return row
}

func plainValue(v any) any {
	if p, ok := v.(*any); ok {
		if p == nil {
			return nil
		}
		v = *p
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
