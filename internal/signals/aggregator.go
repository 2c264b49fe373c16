package signals

import (
	"sort"
	"time"
)

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

type Sentiment string

const (
	SentimentCritical   Sentiment = "critical"
	SentimentConcerning Sentiment = "concerning"
	SentimentMixed      Sentiment = "mixed"
	SentimentPositive   Sentiment = "positive"
)

// CategorySummary counts one category's signals within the window.
type CategorySummary struct {
	Category         string           `json:"category"`
	SignalCount      int              `json:"signal_count"`
	ByWeight         map[Weight]int   `json:"by_weight"`
	ByPolarity       map[Polarity]int `json:"by_polarity"`
	DominantPolarity Polarity         `json:"dominant_polarity"`
	Trend            Trend            `json:"trend"`
}

// Escalation is a rule triggered by the signals in its window.
type Escalation struct {
	RuleID            string    `json:"rule_id"`
	Description       string    `json:"description"`
	Weight            Weight    `json:"weight"`
	RecommendedAction string    `json:"recommended_action"`
	TriggeringCount   int       `json:"triggering_count"`
	Earliest          time.Time `json:"earliest"`
	Latest            time.Time `json:"latest"`
}

// Summary is the attention view of one building.
type Summary struct {
	BuildingID  string                     `json:"building_id"`
	Since       time.Time                  `json:"since"`
	Until       time.Time                  `json:"until"`
	Categories  map[string]CategorySummary `json:"categories"`
	Sentiment   Sentiment                  `json:"sentiment"`
	Reason      string                     `json:"reason"`
	Escalations []Escalation               `json:"escalations"`
	Signals     []Signal                   `json:"signals"`
}

// Aggregate summarises signals between since and until. Rule windows end at
// until.
func Aggregate(sigs []Signal, buildingID string, since, until time.Time) Summary {
	in := make([]Signal, 0, len(sigs))
	for _, s := range sigs {
		if s.OccurredAt.Before(since) || s.OccurredAt.After(until) {
			continue
		}
		in = append(in, s)
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].OccurredAt.After(in[j].OccurredAt) })

	cats := make(map[string]CategorySummary)
	for _, s := range in {
		cs, ok := cats[s.Category]
		if !ok {
			cs = CategorySummary{
				Category:   s.Category,
				ByWeight:   make(map[Weight]int),
				ByPolarity: make(map[Polarity]int),
			}
		}
		cs.SignalCount++
		cs.ByWeight[s.Weight]++
		cs.ByPolarity[s.Polarity]++
		cats[s.Category] = cs
	}
	for name, cs := range cats {
		cs.DominantPolarity = dominantPolarity(cs.ByPolarity)
		cs.Trend = computeTrend(in, name, since, until)
		cats[name] = cs
	}

	escalations := Evaluate(in, until)
	sentiment, reason := computeSentiment(cats, escalations)
	return Summary{
		BuildingID:  buildingID,
		Since:       since,
		Until:       until,
		Categories:  cats,
		Sentiment:   sentiment,
		Reason:      reason,
		Escalations: escalations,
		Signals:     in,
	}
}

// Evaluate returns every rule the signals trigger, most severe first.
func Evaluate(sigs []Signal, until time.Time) []Escalation {
	out := []Escalation{}
	for _, rule := range Rules {
		if es, ok := evaluateRule(rule, sigs, until); ok {
			out = append(out, es)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return WeightOrder[out[i].Weight] < WeightOrder[out[j].Weight]
	})
	return out
}

func evaluateRule(rule Rule, sigs []Signal, until time.Time) (Escalation, bool) {
	start := until.AddDate(0, 0, -rule.WithinDays)
	reqs := rule.Requirements
	if len(reqs) == 0 {
		reqs = []Requirement{{Category: rule.Category, Polarity: rule.Polarity, MinCount: rule.Count}}
	}

	counts := make([]int, len(reqs))
	var earliest, latest time.Time
	total := 0
	for _, s := range sigs {
		if s.OccurredAt.Before(start) || s.OccurredAt.After(until) {
			continue
		}
		for i, req := range reqs {
			if s.Category != req.Category || (req.Polarity != "" && s.Polarity != req.Polarity) {
				continue
			}
			counts[i]++
			total++
			if earliest.IsZero() || s.OccurredAt.Before(earliest) {
				earliest = s.OccurredAt
			}
			if s.OccurredAt.After(latest) {
				latest = s.OccurredAt
			}
		}
	}
	for i, req := range reqs {
		if counts[i] < req.MinCount {
			return Escalation{}, false
		}
	}
	return Escalation{
		RuleID:            rule.ID,
		Description:       rule.Description,
		Weight:            rule.EscalatedWeight,
		RecommendedAction: rule.RecommendedAction,
		TriggeringCount:   total,
		Earliest:          earliest,
		Latest:            latest,
	}, true
}

// dominantPolarity picks the most frequent polarity. Ties go to negative,
// then neutral.
func dominantPolarity(by map[Polarity]int) Polarity {
	best, bestCount := Polarity(""), 0
	for _, p := range []Polarity{Negative, Neutral, Positive} {
		if by[p] > bestCount {
			best, bestCount = p, by[p]
		}
	}
	return best
}

// computeTrend compares the category's negative signals in the two halves of
// the window.
func computeTrend(sigs []Signal, category string, since, until time.Time) Trend {
	mid := since.Add(until.Sub(since) / 2)
	var first, second int
	for _, s := range sigs {
		if s.Category != category || s.Polarity != Negative {
			continue
		}
		if s.OccurredAt.Before(mid) {
			first++
		} else {
			second++
		}
	}
	switch {
	case second > first+1:
		return TrendDeclining
	case first > second+1:
		return TrendImproving
	}
	return TrendStable
}

func computeSentiment(cats map[string]CategorySummary, escalations []Escalation) (Sentiment, string) {
	for _, e := range escalations {
		if e.Weight == WeightCritical {
			return SentimentCritical, "Critical escalation: " + e.Description
		}
	}

	var critical, strong, negative, positive int
	for _, cs := range cats {
		critical += cs.ByWeight[WeightCritical]
		strong += cs.ByWeight[WeightStrong]
		negative += cs.ByPolarity[Negative]
		positive += cs.ByPolarity[Positive]
	}
	switch {
	case critical > 0:
		return SentimentCritical, "Critical signals need immediate attention."
	case strong >= 2 || negative > positive*2:
		return SentimentConcerning, "Multiple strong signals or mostly negative activity."
	case negative > positive:
		return SentimentMixed, "More negative than positive signals."
	}
	return SentimentPositive, "Activity is mostly positive or neutral."
}
