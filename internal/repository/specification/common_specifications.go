package specification

import (
	"fmt"

	"gorm.io/gorm"
)

// ByKey filters by a text primary key
type ByKey struct {
	Key string
}

func (s ByKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ?", s.Key)
}

// OrderBy applies ordering
type OrderBy struct {
	Field string
	Desc  bool
}

func (s OrderBy) Apply(db *gorm.DB) *gorm.DB {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}
	return db.Order(fmt.Sprintf("%s %s", s.Field, direction))
}

// Pagination
type Pagination struct {
	Limit  int
	Offset int
}

func (s Pagination) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.Limit).Offset(s.Offset)
}
