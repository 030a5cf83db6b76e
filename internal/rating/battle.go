package rating

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the result of one pairwise battle.
type Outcome string

const (
	OutcomeModelA Outcome = "model_a"
	OutcomeModelB Outcome = "model_b"
	OutcomeTie    Outcome = "tie"
)

// ParseOutcome accepts the winner labels found in arena exports.
// Every "tie (...)" variant counts as a plain tie.
func ParseOutcome(s string) (Outcome, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == string(OutcomeModelA):
		return OutcomeModelA, nil
	case v == string(OutcomeModelB):
		return OutcomeModelB, nil
	case v == string(OutcomeTie), strings.HasPrefix(v, "tie "), strings.HasPrefix(v, "tie("):
		return OutcomeTie, nil
	default:
		return "", fmt.Errorf("unknown battle outcome %q", s)
	}
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Battle is one historical comparison between two participants.
type Battle struct {
	ModelA string  `json:"model_a"`
	ModelB string  `json:"model_b"`
	Winner Outcome `json:"winner"`
}

// Relabel returns a copy of battles with both participants mapped through label.
// The input slice is left untouched.
func Relabel(battles []Battle, label func(string) string) []Battle {
	out := make([]Battle, len(battles))
	for i, b := range battles {
		out[i] = Battle{ModelA: label(b.ModelA), ModelB: label(b.ModelB), Winner: b.Winner}
	}
	return out
}

// Participants returns the distinct participant names in sorted order.
func Participants(battles []Battle) []string {
	seen := make(map[string]struct{})
	for _, b := range battles {
		seen[b.ModelA] = struct{}{}
		seen[b.ModelB] = struct{}{}
	}
	return sortedKeys(seen)
}
