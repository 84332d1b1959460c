package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock on postgres. sqlite serialises writers already
// and rejects the clause.
func ForUpdate(q *gorm.DB, options ...string) *gorm.DB {
	if q.Dialector == nil || q.Dialector.Name() != "postgres" {
		return q
	}
	lock := clause.Locking{Strength: "UPDATE"}
	if len(options) > 0 {
		lock.Options = options[0]
	}
	return q.Clauses(lock)
}
