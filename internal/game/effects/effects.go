package effects

import (
	"fmt"
	"sort"
	"strings"
)

// Effect is a named combat modifier attached to a card instance.
type Effect uint8

const (
	Cage Effect = iota + 1
	Shield
	Pierce
	Bounty
)

var effectNames = map[Effect]string{
	Cage:   "CAGE",
	Shield: "SHIELD",
	Pierce: "PIERCE",
	Bounty: "BOUNTY",
}

// All lists every effect known to the combat rules, in declaration order.
func All() []Effect {
	return []Effect{Cage, Shield, Pierce, Bounty}
}

func (e Effect) String() string {
	if name, ok := effectNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EFFECT_%d", int(e))
}

// Parse converts a catalogue tag such as "shield" into an Effect.
func Parse(tag string) (Effect, error) {
	normalized := strings.ToUpper(strings.TrimSpace(tag))
	for effect, name := range effectNames {
		if name == normalized {
			return effect, nil
		}
	}
	return 0, fmt.Errorf("unknown effect %q", tag)
}

// Set is a set of effects stored as a bitmask.
type Set uint8

func bit(e Effect) Set {
	return Set(1) << e
}

// NewSet builds a set from the given effects.
func NewSet(list ...Effect) Set {
	var s Set
	for _, e := range list {
		s = s.With(e)
	}
	return s
}

// ParseSet converts catalogue tags into a set. Tags that carry no combat
// meaning are returned separately so callers can log them.
func ParseSet(tags []string) (Set, []string) {
	var (
		s       Set
		unknown []string
	)
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		e, err := Parse(tag)
		if err != nil {
			unknown = append(unknown, tag)
			continue
		}
		s = s.With(e)
	}
	return s, unknown
}

// Has reports whether e is in the set.
func (s Set) Has(e Effect) bool {
	return s&bit(e) != 0
}

// With returns the set with e added.
func (s Set) With(e Effect) Set {
	return s | bit(e)
}

// Without returns the set with every member of other removed.
func (s Set) Without(other Set) Set {
	return s &^ other
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool {
	return s == 0
}

// List returns the members in declaration order.
func (s Set) List() []Effect {
	out := make([]Effect, 0, len(effectNames))
	for _, e := range All() {
		if s.Has(e) {
			out = append(out, e)
		}
	}
	return out
}

// Strings returns the member names, sorted.
func (s Set) Strings() []string {
	names := make([]string, 0, len(effectNames))
	for _, e := range s.List() {
		names = append(names, e.String())
	}
	sort.Strings(names)
	return names
}

func (s Set) String() string {
	return "[" + strings.Join(s.Strings(), ",") + "]"
}
