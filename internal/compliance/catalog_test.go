package compliance

import (
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	want := []CheckType{
		AnnualFlatDoorInspection, AsbestosReinspection, AsbestosSurvey, FireAlarmTesting,
		FireRiskAssessment, HSMonthlyVisit, HSRiskAssessment, LegionellaRisk,
	}
	got := c.Types()
	if len(got) != len(want) {
		t.Fatalf("got %d types, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("type[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if info, ok := c.Info(FireAlarmTesting); !ok || info.IntervalMonths != 6 {
		t.Errorf("fire alarm info = %+v", info)
	}
	if c.Label(HSMonthlyVisit) != "H&S monthly visit" {
		t.Errorf("label = %q", c.Label(HSMonthlyVisit))
	}
	if c.Label("unknown") != "unknown" {
		t.Errorf("unknown label = %q", c.Label("unknown"))
	}
}

func TestLoadCatalog_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"bad id", `
#CheckType: {id: =~"^[a-z][a-z0-9_]*$", label: string & !="", interval_months: int & >0}
catalog: [...#CheckType]
catalog: [{id: "Fire Alarm", label: "x", interval_months: 1}]
`},
		{"zero interval", `
#CheckType: {id: =~"^[a-z][a-z0-9_]*$", label: string & !="", interval_months: int & >0}
catalog: [...#CheckType]
catalog: [{id: "fire", label: "x", interval_months: 0}]
`},
		{"missing list", `other: 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadCatalog([]byte(tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadCatalog_AppliesSchemaWithoutDeclaration(t *testing.T) {
	src := `catalog: [{id: "Gas Safety", label: "Gas safety", interval_months: 12}]`
	if _, err := LoadCatalog([]byte(src)); err == nil {
		t.Error("expected schema error for undeclared document")
	}

	c, err := LoadCatalog([]byte(`catalog: [{id: "gas_safety", label: "Gas safety", interval_months: 12}]`))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if c.Len() != 1 || c.Label("gas_safety") != "Gas safety" {
		t.Errorf("catalog = %+v", c.Entries())
	}
}

func TestLoadCatalog_RejectsDuplicates(t *testing.T) {
	src := `
catalog: [
	{id: "fire", label: "Fire", interval_months: 12},
	{id: "fire", label: "Fire again", interval_months: 12},
]
`
	_, err := LoadCatalog([]byte(src))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("err = %v, want duplicate error", err)
	}
}
