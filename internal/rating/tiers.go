package rating

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const tierPrefix = "tier-"

// Entry is one participant with its rating.
type Entry struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Ranked returns participants ordered by rating, highest first. Equal ratings
// are ordered by name so the result is deterministic.
func (r Ratings) Ranked() []Entry {
	out := make([]Entry, 0, len(r))
	for name, v := range r {
		out = append(out, Entry{Name: name, Rating: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TierAssignment maps a participant to its tier index. Tier 0 holds the
// highest-rated participants.
type TierAssignment map[string]int

// AssignTiers splits the ranked participants into numTiers contiguous groups
// whose sizes differ by at most one; the larger groups come first.
func AssignTiers(r Ratings, numTiers int) (TierAssignment, error) {
	if numTiers <= 0 {
		return nil, fmt.Errorf("assign tiers: numTiers must be positive, got %d", numTiers)
	}
	ranked := r.Ranked()
	n := len(ranked)
	base, extra := n/numTiers, n%numTiers

	out := make(TierAssignment, n)
	pos := 0
	for tier := 0; tier < numTiers && pos < n; tier++ {
		size := base
		if tier < extra {
			size++
		}
		for k := 0; k < size; k++ {
			out[ranked[pos].Name] = tier
			pos++
		}
	}
	return out, nil
}

// Label returns the participant identifier used for name's tier in
// relabeled battles. It panics if name has no tier; callers relabel only
// battles the assignment was computed from.
func (ta TierAssignment) Label(name string) string {
	tier, ok := ta[name]
	if !ok {
		panic(fmt.Sprintf("rating: %q has no tier", name))
	}
	return TierLabel(tier)
}

// Tier looks up name's tier.
func (ta TierAssignment) Tier(name string) (int, bool) {
	t, ok := ta[name]
	return t, ok
}

// NumTiers is the number of non-empty tiers.
func (ta TierAssignment) NumTiers() int {
	seen := make(map[int]struct{})
	for _, t := range ta {
		seen[t] = struct{}{}
	}
	return len(seen)
}

// Members returns the participants in tier, sorted by name.
func (ta TierAssignment) Members(tier int) []string {
	set := make(map[string]struct{})
	for name, t := range ta {
		if t == tier {
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// TierLabel is the participant name of a tier in relabeled battles.
func TierLabel(tier int) string {
	return tierPrefix + strconv.Itoa(tier)
}

// ParseTierLabel reverses TierLabel.
func ParseTierLabel(label string) (int, error) {
	if !strings.HasPrefix(label, tierPrefix) {
		return 0, fmt.Errorf("not a tier label: %q", label)
	}
	return strconv.Atoi(strings.TrimPrefix(label, tierPrefix))
}
