package quality

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is a discrete product quality. The zero value is Awful.
type Tier int

const (
	Awful Tier = iota
	Poor
	Normal
	Good
	Excellent
	Masterwork
	Legendary
)

// Count is the number of tiers on the ladder.
const Count = 7

var tierNames = [Count]string{"awful", "poor", "normal", "good", "excellent", "masterwork", "legendary"}

func (t Tier) Valid() bool { return t >= Awful && t <= Legendary }

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func Parse(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == s {
			return Tier(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown quality %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid quality tier %d", int(t))
	}
	return json.Marshal(tierNames[t])
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t Tier) MarshalYAML() (any, error) { return t.String(), nil }

func (t *Tier) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Days holds the cumulative simulated days needed to reach each tier.
// In configuration it is written as a seven element array, awful first.
type Days [Count]float64

// For returns the day threshold of t.
func (d Days) For(t Tier) float64 {
	if !t.Valid() {
		return d[Normal]
	}
	return d[t]
}

// TierAt maps elapsed days to the highest tier whose threshold has been
// reached. A threshold is an inclusive lower bound. Below the poor
// threshold the result is Awful, even before Awful itself is reached; use
// Reached to tell the two apart.
func (d Days) TierAt(days float64) Tier {
	for t := Legendary; t > Awful; t-- {
		if days >= d[t] {
			return t
		}
	}
	return Awful
}

// Reached reports whether any tier has been reached yet.
func (d Days) Reached(days float64) bool { return days >= d[Awful] }

// Ascending reports whether thresholds never decrease from awful to legendary.
func (d Days) Ascending() bool {
	for i := 1; i < Count; i++ {
		if d[i] < d[i-1] {
			return false
		}
	}
	return true
}
