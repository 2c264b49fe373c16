package service

import (
	"github.com/matthewbaird/compliance/internal/compliance"
	"github.com/matthewbaird/compliance/internal/store"
)

// Services bundles the domain services over one database.
type Services struct {
	Templates  *Templates
	Records    *Records
	Compliance *Compliance
}

func New(db *store.DB, catalog compliance.Catalog) Services {
	tpl := NewTemplates(db)
	return Services{
		Templates:  tpl,
		Records:    NewRecords(db, tpl),
		Compliance: NewCompliance(db, catalog),
	}
}
