package effects

// Side identifies which participant of a fight an effect is checked on.
type Side int

const (
	SideAttacker Side = 1 << iota
	SideDefender
)

// Rule describes how an effect takes part in combat resolution.
type Rule struct {
	Effect Effect
	// Sides lists where the resolver looks for the effect.
	Sides Side
	// Consumed effects are stripped from the holder once they have fired.
	Consumed bool
	// HitsAttacker effects are recorded against the attacking card (CAGE traps it).
	HitsAttacker bool
	Description  string
}

var ruleTable = map[Effect]Rule{
	Cage: {
		Effect:       Cage,
		Sides:        SideDefender,
		HitsAttacker: true,
		Description:  "defender always dies; the attacker is trapped in defense stance",
	},
	Shield: {
		Effect:      Shield,
		Sides:       SideDefender,
		Consumed:    true,
		Description: "defender survives a stronger or equal attack, the attacker takes the defender's value as damage",
	},
	Pierce: {
		Effect:      Pierce,
		Sides:       SideAttacker | SideDefender,
		Description: "excess combat value carries through to the opposing player",
	},
	Bounty: {
		Effect:      Bounty,
		Sides:       SideAttacker | SideDefender,
		Description: "holder's player heals 1 when the holder wins a fight",
	},
}

// Lookup returns the combat rule for e.
func Lookup(e Effect) (Rule, bool) {
	r, ok := ruleTable[e]
	return r, ok
}

// Rules returns the full rule table in declaration order.
func Rules() []Rule {
	out := make([]Rule, 0, len(ruleTable))
	for _, e := range All() {
		out = append(out, ruleTable[e])
	}
	return out
}

// AlwaysKillsDefender reports whether the defender's effects make it die
// regardless of fight values.
func AlwaysKillsDefender(defender Set) bool {
	return defender.Has(Cage)
}

// AbsorbsAttack reports whether the defender turns the attack back on the
// attacking card instead of fighting normally.
func AbsorbsAttack(defender Set) bool {
	return defender.Has(Shield)
}

// CarriesThrough reports whether over- or underkill reaches the opposing player.
func CarriesThrough(holder Set) bool {
	return holder.Has(Pierce)
}

// WinnerPlayerDamage is the player damage recorded for the winning side of a
// fight. A BOUNTY holder records -1, which heals its player once the damage is
// subtracted from health.
func WinnerPlayerDamage(winner Set) int {
	if winner.Has(Bounty) {
		return -1
	}
	return 0
}

// ConsumedBy returns the effects that fired for the defender and must be
// stripped from it.
func ConsumedBy(fired Set) Set {
	var out Set
	for _, e := range fired.List() {
		if r, ok := ruleTable[e]; ok && r.Consumed {
			out = out.With(e)
		}
	}
	return out
}

// HitsOnAttacker returns the fired effects that are recorded against the attacker.
func HitsOnAttacker(fired Set) Set {
	var out Set
	for _, e := range fired.List() {
		if r, ok := ruleTable[e]; ok && r.HitsAttacker {
			out = out.With(e)
		}
	}
	return out
}

// Traps reports whether effects hitting an attacker leave it trapped.
func Traps(hits Set) bool {
	return hits.Has(Cage)
}
