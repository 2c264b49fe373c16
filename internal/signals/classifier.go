package signals

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/compliance/internal/types"
)

// Signal is one classified activity entry.
type Signal struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	Category    string    `json:"category"`
	Weight      Weight    `json:"weight"`
	Polarity    Polarity  `json:"polarity"`
	Description string    `json:"description"`
	Summary     string    `json:"summary"`
}

// Classify matches an activity entry against the registry. Registrations
// with a condition are tried first, in order; an unconditional registration
// for the event type is the fallback. ok is false when nothing matches.
func Classify(e types.ActivityEntry) (Signal, bool) {
	regs := Lookup(e.EventType)
	if len(regs) == 0 {
		return Signal{}, false
	}

	var payload map[string]any
	if len(e.Payload) > 0 {
		_ = json.Unmarshal(e.Payload, &payload)
	}

	var fallback *Registration
	for i := range regs {
		reg := &regs[i]
		if reg.Condition == "" {
			if fallback == nil {
				fallback = reg
			}
			continue
		}
		if matchCondition(reg.Condition, payload) {
			return newSignal(e, reg), true
		}
	}
	if fallback != nil {
		return newSignal(e, fallback), true
	}
	return Signal{}, false
}

// ClassifyAll classifies entries, skipping those no registration matches.
// Entries sharing an event ID are classified once.
func ClassifyAll(entries []types.ActivityEntry) []Signal {
	seen := make(map[string]bool, len(entries))
	out := make([]Signal, 0, len(entries))
	for _, e := range entries {
		if seen[e.EventID] {
			continue
		}
		seen[e.EventID] = true
		if s, ok := Classify(e); ok {
			out = append(out, s)
		}
	}
	return out
}

func newSignal(e types.ActivityEntry, reg *Registration) Signal {
	return Signal{
		EventID:     e.EventID,
		EventType:   e.EventType,
		OccurredAt:  e.OccurredAt,
		Category:    reg.Category,
		Weight:      reg.Weight,
		Polarity:    reg.Polarity,
		Description: reg.Description,
		Summary:     e.Summary,
	}
}

// matchCondition evaluates "field op value" against the payload. Supported
// operators are ==, <, >, <= and >=.
func matchCondition(condition string, payload map[string]any) bool {
	if payload == nil {
		return false
	}
	for _, op := range []string{"<=", ">=", "==", "<", ">"} {
		parts := strings.SplitN(condition, op, 2)
		if len(parts) != 2 {
			continue
		}
		actual, ok := payload[strings.TrimSpace(parts[0])]
		if !ok {
			return false
		}
		expected := strings.TrimSpace(parts[1])
		switch op {
		case "==":
			return valueEquals(actual, expected)
		case "<=":
			return valueCompare(actual, expected) <= 0
		case ">=":
			return valueCompare(actual, expected) >= 0
		case "<":
			return valueCompare(actual, expected) < 0
		case ">":
			return valueCompare(actual, expected) > 0
		}
	}
	return false
}

func valueEquals(actual any, expected string) bool {
	switch v := actual.(type) {
	case string:
		return v == expected
	case float64:
		ev, err := strconv.ParseFloat(expected, 64)
		if err != nil {
			return false
		}
		return v == ev
	case bool:
		return strconv.FormatBool(v) == expected
	default:
		return false
	}
}

func valueCompare(actual any, threshold string) int {
	av, ok := actual.(float64)
	if !ok {
		return 0
	}
	tv, err := strconv.ParseFloat(threshold, 64)
	if err != nil {
		return 0
	}
	switch {
	case av < tv:
		return -1
	case av > tv:
		return 1
	}
	return 0
}
