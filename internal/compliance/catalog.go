// Package compliance scores buildings against the fixed catalog of statutory
// compliance check types.
package compliance

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// CheckType identifies one statutory inspection requirement.
type CheckType string

const (
	AnnualFlatDoorInspection CheckType = "annual_flat_door_inspection"
	AsbestosReinspection     CheckType = "asbestos_reinspection"
	AsbestosSurvey           CheckType = "asbestos_survey"
	FireAlarmTesting         CheckType = "fire_alarm_testing"
	FireRiskAssessment       CheckType = "fire_risk_assessment"
	HSMonthlyVisit           CheckType = "hs_monthly_visit"
	HSRiskAssessment         CheckType = "hs_risk_assessment"
	LegionellaRisk           CheckType = "legionella_risk"
)

// CheckTypeInfo describes a catalog entry.
type CheckTypeInfo struct {
	ID             CheckType `json:"id"`
	Label          string    `json:"label"`
	IntervalMonths int       `json:"interval_months"`
}

// Catalog is the closed, ordered set of check types used as the scoring
// denominator. The zero Catalog is empty.
type Catalog struct {
	entries []CheckTypeInfo
	index   map[CheckType]int
}

//go:embed catalog.cue
var catalogSource []byte

var defaultCatalog Catalog

func init() {
	c, err := LoadCatalog(catalogSource)
	if err != nil {
		panic(fmt.Sprintf("compliance: embedded catalog: %v", err))
	}
	defaultCatalog = c
}

// DefaultCatalog returns the built-in catalog of eight check types.
func DefaultCatalog() Catalog { return defaultCatalog }

// LoadCatalog compiles a CUE document and builds a Catalog from its "catalog"
// list. Every entry is checked against the built-in #CheckType schema, whether
// or not the document declares it.
func LoadCatalog(src []byte) (Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(catalogSource).LookupPath(cue.MakePath(cue.Def("CheckType")))
	if err := schema.Err(); err != nil {
		return Catalog{}, fmt.Errorf("compiling check type schema: %w", err)
	}

	v := ctx.CompileBytes(src)
	if err := v.Err(); err != nil {
		return Catalog{}, fmt.Errorf("compiling catalog: %w", err)
	}
	list := v.LookupPath(cue.ParsePath("catalog"))
	if !list.Exists() {
		return Catalog{}, fmt.Errorf("catalog: no top-level catalog list")
	}
	iter, err := list.List()
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: %w", err)
	}

	var defs []CheckTypeInfo
	for i := 0; iter.Next(); i++ {
		entry := schema.Unify(iter.Value())
		if err := entry.Validate(cue.Concrete(true)); err != nil {
			return Catalog{}, fmt.Errorf("validating catalog entry %d: %w", i, err)
		}
		var d CheckTypeInfo
		if err := entry.Decode(&d); err != nil {
			return Catalog{}, fmt.Errorf("decoding catalog entry %d: %w", i, err)
		}
		defs = append(defs, d)
	}
	return NewCatalog(defs)
}

// NewCatalog builds a catalog from entries in display order. Duplicate or
// empty IDs are rejected.
func NewCatalog(defs []CheckTypeInfo) (Catalog, error) {
	c := Catalog{
		entries: make([]CheckTypeInfo, 0, len(defs)),
		index:   make(map[CheckType]int, len(defs)),
	}
	for _, d := range defs {
		if d.ID == "" {
			return Catalog{}, fmt.Errorf("catalog: empty check type id")
		}
		if _, dup := c.index[d.ID]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate check type %q", d.ID)
		}
		c.index[d.ID] = len(c.entries)
		c.entries = append(c.entries, d)
	}
	return c, nil
}

// Len is the catalog size, the denominator of every percentage.
func (c Catalog) Len() int { return len(c.entries) }

func (c Catalog) Contains(t CheckType) bool {
	_, ok := c.index[t]
	return ok
}

// Types returns the check types in catalog order.
func (c Catalog) Types() []CheckType {
	out := make([]CheckType, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.ID
	}
	return out
}

// Entries returns a copy of the catalog entries in order.
func (c Catalog) Entries() []CheckTypeInfo {
	out := make([]CheckTypeInfo, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c Catalog) Info(t CheckType) (CheckTypeInfo, bool) {
	i, ok := c.index[t]
	if !ok {
		return CheckTypeInfo{}, false
	}
	return c.entries[i], true
}

// Label returns the display label for t, or t itself when t is not catalogued.
func (c Catalog) Label(t CheckType) string {
	if info, ok := c.Info(t); ok {
		return info.Label
	}
	return string(t)
}
