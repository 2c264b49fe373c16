package compliance

import (
	"testing"
	"time"
)

func day(n int) *time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return &t
}

func makeCheck(id string, ct CheckType, status Status, due, completed *time.Time) Check {
	return Check{
		ID:            id,
		TenantID:      "tenant-1",
		BuildingID:    "building-1",
		CheckType:     ct,
		Status:        status,
		DueDate:       due,
		CompletedDate: completed,
	}
}

func TestSummarize_NoChecksScoresZero(t *testing.T) {
	catalog := DefaultCatalog()
	if catalog.Len() != 8 {
		t.Fatalf("catalog size = %d, want 8", catalog.Len())
	}

	s := Summarize("building-1", nil, catalog)
	if s.Percentage != 0 {
		t.Errorf("percentage = %d, want 0", s.Percentage)
	}
	if len(s.ByType) != 8 {
		t.Errorf("by type has %d entries, want 8", len(s.ByType))
	}
	for ct, c := range s.ByType {
		if c != nil {
			t.Errorf("%s: got %+v, want absent", ct, c)
		}
	}
}

func TestSummarize_AllSuccess(t *testing.T) {
	catalog := DefaultCatalog()
	var checks []Check
	for i, ct := range catalog.Types() {
		checks = append(checks, makeCheck(string(ct), ct, StatusSuccess, day(i), day(i)))
	}

	s := Summarize("building-1", checks, catalog)
	if s.Percentage != 100 {
		t.Errorf("percentage = %d, want 100", s.Percentage)
	}
	if s.Source != SourceChecks {
		t.Errorf("source = %q, want checks", s.Source)
	}
}

func TestSummarize_RoundsHalfUp(t *testing.T) {
	catalog := DefaultCatalog()
	types := catalog.Types()

	// 1 of 8 successful: 12.5 → 13.
	one := []Check{makeCheck("a", types[0], StatusSuccess, day(1), nil)}
	if got := Summarize("b", one, catalog).Percentage; got != 13 {
		t.Errorf("1/8 = %d, want 13", got)
	}

	// 7 of 8 successful, one pending: 87.5 → 88.
	var seven []Check
	for i, ct := range types {
		status := StatusSuccess
		if i == 3 {
			status = StatusPending
		}
		seven = append(seven, makeCheck(string(ct), ct, status, day(i), nil))
	}
	if got := Summarize("b", seven, catalog).Percentage; got != 88 {
		t.Errorf("7/8 = %d, want 88", got)
	}
}

func TestSummarize_MostRecentWinsRegardlessOfOrder(t *testing.T) {
	catalog := DefaultCatalog()
	older := makeCheck("old", FireRiskAssessment, StatusOverdue, day(0), day(10))
	newer := makeCheck("new", FireRiskAssessment, StatusSuccess, day(0), day(200))

	for _, checks := range [][]Check{{older, newer}, {newer, older}} {
		s := Summarize("building-1", checks, catalog)
		got := s.ByType[FireRiskAssessment]
		if got == nil || got.ID != "new" {
			t.Fatalf("latest = %+v, want new", got)
		}
		if s.Percentage != 13 {
			t.Errorf("percentage = %d, want 13", s.Percentage)
		}
	}
}

func TestSummarize_CompletedDateBeatsDueDate(t *testing.T) {
	catalog := DefaultCatalog()
	// Completed on day 50; the other is only due on day 40.
	completed := makeCheck("done", LegionellaRisk, StatusSuccess, day(100), day(50))
	due := makeCheck("due", LegionellaRisk, StatusPending, day(40), nil)

	s := Summarize("b", []Check{completed, due}, catalog)
	if got := s.ByType[LegionellaRisk]; got == nil || got.ID != "done" {
		t.Errorf("latest = %+v, want done", got)
	}
}

func TestSummarize_UndatedRanksEarliest(t *testing.T) {
	catalog := DefaultCatalog()
	undated := makeCheck("undated", AsbestosSurvey, StatusSuccess, nil, nil)
	dated := makeCheck("dated", AsbestosSurvey, StatusWarning, day(1), nil)

	s := Summarize("b", []Check{dated, undated}, catalog)
	if got := s.ByType[AsbestosSurvey]; got == nil || got.ID != "dated" {
		t.Errorf("latest = %+v, want dated", got)
	}
}

func TestSummarize_TieTakesLast(t *testing.T) {
	catalog := DefaultCatalog()
	a := makeCheck("a", HSMonthlyVisit, StatusWarning, day(5), nil)
	b := makeCheck("b", HSMonthlyVisit, StatusSuccess, day(5), nil)

	s := Summarize("b", []Check{a, b}, catalog)
	if got := s.ByType[HSMonthlyVisit]; got == nil || got.ID != "b" {
		t.Errorf("latest = %+v, want b", got)
	}
}

func TestSummarize_IgnoresUncataloguedTypes(t *testing.T) {
	catalog := DefaultCatalog()
	checks := []Check{makeCheck("x", "gas_safety", StatusSuccess, day(1), nil)}

	s := Summarize("b", checks, catalog)
	if s.Percentage != 0 {
		t.Errorf("percentage = %d, want 0", s.Percentage)
	}
	if _, ok := s.ByType["gas_safety"]; ok {
		t.Error("uncatalogued type present in summary")
	}
}

func TestSummarize_DoesNotAliasInput(t *testing.T) {
	catalog := DefaultCatalog()
	checks := []Check{makeCheck("a", FireAlarmTesting, StatusSuccess, day(1), nil)}

	s := Summarize("b", checks, catalog)
	checks[0].Status = StatusOverdue
	if s.ByType[FireAlarmTesting].Status != StatusSuccess {
		t.Error("summary entry changed when input slice was mutated")
	}
}

func TestDisplayed_FallsBackToTasks(t *testing.T) {
	catalog := DefaultCatalog()

	s := Displayed("b", nil, TaskCounts{Total: 10, Completed: 7}, catalog)
	if s.Percentage != 70 || s.Source != SourceTasks {
		t.Errorf("got %d/%s, want 70/tasks", s.Percentage, s.Source)
	}

	s = Displayed("b", nil, TaskCounts{}, catalog)
	if s.Percentage != 100 || s.Source != SourceDefault {
		t.Errorf("got %d/%s, want 100/default", s.Percentage, s.Source)
	}
}

func TestDisplayed_AnyCheckSelectsCheckScore(t *testing.T) {
	catalog := DefaultCatalog()
	checks := []Check{makeCheck("a", FireAlarmTesting, StatusPending, day(1), nil)}

	s := Displayed("b", checks, TaskCounts{Total: 4, Completed: 4}, catalog)
	if s.Percentage != 0 || s.Source != SourceChecks {
		t.Errorf("got %d/%s, want 0/checks", s.Percentage, s.Source)
	}
}

func TestPercent(t *testing.T) {
	tests := []struct{ n, d, want int }{
		{0, 8, 0},
		{1, 8, 13},
		{4, 8, 50},
		{7, 8, 88},
		{8, 8, 100},
		{1, 3, 33},
		{2, 3, 67},
		{7, 10, 70},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := Percent(tt.n, tt.d); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}
