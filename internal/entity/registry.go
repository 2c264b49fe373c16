package entity

import (
	"context"
	"fmt"

	"github.com/matthewbaird/compliance/internal/types"
)

// Ops is the set of storage operations for one record kind.
type Ops struct {
	Fetch  func(ctx context.Context, tenantID, id string) (*Record, error)
	List   func(ctx context.Context, tenantID, buildingID string, page types.Page) ([]*Record, error)
	Insert func(ctx context.Context, r *Record, audit types.Audit) error
	Update func(ctx context.Context, r *Record, audit types.Audit) error
	Delete func(ctx context.Context, tenantID, id string) error

	// DataKeys returns every template key used by the tenant's stored records.
	DataKeys func(ctx context.Context, tenantID string) (map[string]bool, error)
}

// Registry maps each record kind to its storage operations.
type Registry map[Kind]Ops

// Lookup returns the operations registered for k.
func (r Registry) Lookup(k Kind) (Ops, error) {
	ops, ok := r[k]
	if !ok {
		return Ops{}, fmt.Errorf("no store registered for record kind %q", k)
	}
	return ops, nil
}
