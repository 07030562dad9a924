// Package combat resolves a single fight between two field cards.
//
// Resolve is pure: it reads both cards and returns an Outcome describing what
// must happen to them and to their players. Applying the outcome is the
// session's job.
package combat

import (
	"github.com/pantheon/duel-server-go/internal/game/cards"
	"github.com/pantheon/duel-server-go/internal/game/effects"
)

// Outcome is the result of one card-vs-card fight.
type Outcome struct {
	AttackerKey string
	DefenderKey string

	AttackerValue int
	DefenderValue int

	AttackerDies bool
	DefenderDies bool

	// Card damage, never negative.
	AttackerCardDamage int
	DefenderCardDamage int

	// Player damage is subtracted from health; -1 means the player heals 1.
	AttackerPlayerDamage int
	DefenderPlayerDamage int

	ConsumedFromDefender effects.Set
	AppliedToAttacker    effects.Set
}

// Resolve computes the outcome of attacker fighting defender. The first
// matching rule wins.
func Resolve(attacker, defender cards.Instance) Outcome {
	av := attacker.FightValue()
	dv := defender.FightValue()

	out := Outcome{
		AttackerKey:   attacker.Key,
		DefenderKey:   defender.Key,
		AttackerValue: av,
		DefenderValue: dv,
	}

	switch {
	case effects.AlwaysKillsDefender(defender.Effects):
		out.DefenderDies = true
		if effects.CarriesThrough(attacker.Effects) {
			out.DefenderPlayerDamage = av
		}
		out.AttackerPlayerDamage = effects.WinnerPlayerDamage(attacker.Effects)
		out.AppliedToAttacker = effects.HitsOnAttacker(effects.NewSet(effects.Cage))

	case effects.AbsorbsAttack(defender.Effects):
		if av >= dv {
			out.AttackerCardDamage = nonNegative(dv)
		} else {
			out.AttackerDies = true
		}
		out.ConsumedFromDefender = effects.ConsumedBy(effects.NewSet(effects.Shield))

	case av == dv && av != 0:
		out.DefenderDies = true
		if defender.Reveal != cards.RevealHidden {
			out.AttackerDies = true
		}
		out.AttackerPlayerDamage = effects.WinnerPlayerDamage(attacker.Effects)

	case av > dv:
		out.DefenderDies = true
		out.AttackerCardDamage = nonNegative(dv)
		if defender.Combat != cards.StanceDefense || effects.CarriesThrough(attacker.Effects) {
			out.DefenderPlayerDamage = av - dv
		}
		out.AttackerPlayerDamage = effects.WinnerPlayerDamage(attacker.Effects)

	case av < dv:
		out.AttackerDies = true
		out.DefenderCardDamage = nonNegative(av)
		if effects.CarriesThrough(defender.Effects) {
			out.AttackerPlayerDamage = dv - av
		}
		out.DefenderPlayerDamage = effects.WinnerPlayerDamage(defender.Effects)

	default:
		// zero-value tie: nobody dies, cards trade their (zero) values
		out.AttackerCardDamage = nonNegative(dv)
		out.DefenderCardDamage = nonNegative(av)
	}

	return out
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
