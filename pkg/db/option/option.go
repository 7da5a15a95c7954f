// Package option provides composable gorm query modifiers.
package option

import "gorm.io/gorm"

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithLimit caps the number of returned rows.
func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithOffset skips rows before returning results.
func WithOffset(offset int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithOrder appends an ORDER BY clause.
func WithOrder(order string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if order == "" {
			return db
		}
		return db.Order(order)
	})
}

// WithCondition appends a WHERE clause.
func WithCondition(query string, args ...any) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}
