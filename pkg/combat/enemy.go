package combat

import (
	"fmt"
	"math"

	"github.com/jwebster45206/d20"
)

// Enemy is the runtime opponent backed by a d20 actor.
type Enemy struct {
	Profile  EnemyProfile
	actor    *d20.Actor
	defeated bool
}

// hpScale per encounter type.
var hpScale = map[EncounterType]float64{
	EncounterMinor: 1.0,
	EncounterDuel:  1.2,
	EncounterBoss:  1.5,
}

// EnemyMaxHP derives hit points from threat: 100 at threat 0.5 for a
// minor encounter.
func EnemyMaxHP(threat float64, enc EncounterType) int {
	scale, ok := hpScale[enc]
	if !ok {
		scale = 1
	}
	return int(math.Round((60 + 80*threat) * scale))
}

// NewEnemy builds the actor for profile.
func NewEnemy(profile EnemyProfile, enc EncounterType) (*Enemy, error) {
	if profile.ThreatLevel < 0 || profile.ThreatLevel > 1 {
		return nil, fmt.Errorf("threat level %.2f outside [0, 1]", profile.ThreatLevel)
	}
	attrs := map[string]int{
		"threat": int(math.Round(profile.ThreatLevel * 100)),
	}
	if profile.Principle != "" {
		attrs[string(profile.Principle)] = 1
	}
	actor, err := d20.NewActor(profile.Name).
		WithHP(EnemyMaxHP(profile.ThreatLevel, enc)).
		WithAC(10 + int(math.Round(profile.ThreatLevel*10))).
		WithAttributes(attrs).
		WithCombatModifiers(map[string]int{}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build enemy actor: %w", err)
	}
	return &Enemy{Profile: profile, actor: actor}, nil
}

// HP is the remaining hit points.
func (e *Enemy) HP() int {
	if e.defeated {
		return 0
	}
	return e.actor.HP()
}

// MaxHP is the starting hit points.
func (e *Enemy) MaxHP() int { return e.actor.MaxHP() }

// Defense is the actor's armour class, used as a threat-derived defence.
func (e *Enemy) Defense() int { return e.actor.AC() }

// TakeDamage reduces HP. HP cannot go below 0.
func (e *Enemy) TakeDamage(n int) error {
	if n <= 0 || e.defeated {
		return nil
	}
	left := e.actor.HP() - n
	if left <= 0 {
		e.defeated = true
		return nil
	}
	if err := e.actor.SetHP(left); err != nil {
		return fmt.Errorf("failed to set enemy hp: %w", err)
	}
	return nil
}

// IsDefeated returns true once HP reaches 0.
func (e *Enemy) IsDefeated() bool { return e.defeated }

// HPFraction is remaining over max.
func (e *Enemy) HPFraction() float64 {
	if e.MaxHP() == 0 {
		return 0
	}
	return float64(e.HP()) / float64(e.MaxHP())
}
