// Package repo holds the helpers every gorm-backed repository shares.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

// Base is embedded by domain repositories.
type Base struct {
	conn *gorm.DB
}

func NewBase(conn *gorm.DB) Base {
	return Base{conn: conn}
}

// DB scopes the connection to ctx. A nil ctx returns the bare handle.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.conn
	}
	return b.conn.WithContext(ctx)
}

// First loads the single row matching query and args.
// gorm.ErrRecordNotFound is returned as-is.
func First[T any](q *gorm.DB, query string, args ...any) (*T, error) {
	row := new(T)
	if err := q.Where(query, args...).Take(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// Window counts what q matches and then loads one page of it. Joins,
// filters and ordering must already be applied to q.
func Window[T any](q *gorm.DB, params pagination.Params) ([]T, int64, error) {
	p := params.Normalize()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page := make([]T, 0, min(int64(p.Limit), total))
	if total > 0 {
		if err := q.Limit(p.Limit).Offset(p.Offset).Find(&page).Error; err != nil {
			return nil, 0, err
		}
	}
	return page, total, nil
}
