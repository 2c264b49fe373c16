package compliance

// Source names the formula that produced a displayed percentage.
type Source string

const (
	SourceChecks  Source = "checks"
	SourceTasks   Source = "tasks"
	SourceDefault Source = "default"
)

// Summary is the derived compliance view of one building. ByType has an entry
// for every catalog type; a nil entry means no check of that type exists.
type Summary struct {
	BuildingID string               `json:"building_id"`
	Percentage int                  `json:"percentage"`
	ByType     map[CheckType]*Check `json:"checks_by_type"`
	Source     Source               `json:"source"`
}

// TaskCounts feeds the task-based fallback score.
type TaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// Summarize scores a building from its checks. For each catalog type the most
// recent check is selected (ties go to the later one in checks); the
// percentage is the share of catalog types whose latest check succeeded, over
// the full catalog size. Checks of types outside the catalog are ignored.
func Summarize(buildingID string, checks []Check, catalog Catalog) Summary {
	latest := make(map[CheckType]*Check, catalog.Len())
	for i := range checks {
		c := checks[i]
		if !catalog.Contains(c.CheckType) {
			continue
		}
		cur, ok := latest[c.CheckType]
		if !ok || c.notOlderThan(*cur) {
			latest[c.CheckType] = &c
		}
	}

	byType := make(map[CheckType]*Check, catalog.Len())
	successes := 0
	for _, t := range catalog.Types() {
		c := latest[t]
		byType[t] = c
		if c != nil && c.Status == StatusSuccess {
			successes++
		}
	}

	return Summary{
		BuildingID: buildingID,
		Percentage: Percent(successes, catalog.Len()),
		ByType:     byType,
		Source:     SourceChecks,
	}
}

// Displayed is the percentage shown to users. When the building has any check
// at all it is the check-based score; otherwise it falls back to the share of
// completed tasks, and to 100 when there are no tasks either.
func Displayed(buildingID string, checks []Check, tasks TaskCounts, catalog Catalog) Summary {
	if len(checks) > 0 {
		return Summarize(buildingID, checks, catalog)
	}

	s := Summarize(buildingID, nil, catalog)
	if tasks.Total <= 0 {
		s.Percentage = 100
		s.Source = SourceDefault
		return s
	}
	s.Percentage = Percent(tasks.Completed, tasks.Total)
	s.Source = SourceTasks
	return s
}

// Percent returns 100*n/d rounded half up, computed in integers so ties such
// as 1/8 (12.5) always round to 13. A non-positive d yields 0.
func Percent(n, d int) int {
	if d <= 0 {
		return 0
	}
	return (200*n + d) / (2 * d)
}
