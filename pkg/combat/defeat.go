package combat

import (
	"fmt"

	"github.com/amoisekai/engine/pkg/player"
)

// Scar penalties.
const (
	PhysicalScarPenalty = 10.0
	OtherScarPenalty    = 5.0
	RecoveryFraction    = 0.30
)

// DefeatInput is the circumstance of a loss.
type DefeatInput struct {
	Stability   float64
	EnemyHPFrac float64
	HPMax       float64
	DefeatCount int
	Chapter     int
	EnemyName   string
}

// Defeat derives the scar and the post-defeat pools. Mental defeats come
// from a broken soul; a near-death scar when the enemy was almost beaten.
func Defeat(in DefeatInput) *DefeatResult {
	kind := player.ScarPhysical
	switch {
	case in.Stability < 15:
		kind = player.ScarMental
	case in.EnemyHPFrac <= 0.20:
		kind = player.ScarNearDeath
	}
	penalty := OtherScarPenalty
	if kind == player.ScarPhysical {
		penalty = PhysicalScarPenalty
	}
	res := &DefeatResult{
		Scar: player.Scar{
			Kind:         kind,
			Chapter:      in.Chapter,
			HPMaxPenalty: penalty,
			Enemy:        in.EnemyName,
			Description:  fmt.Sprintf("%s scar left by %s", kind, in.EnemyName),
		},
		DefeatCount: in.DefeatCount + 1,
		HPMaxAfter:  max(in.HPMax-penalty, 1),
	}
	res.SoulDeath = res.DefeatCount >= player.SoulDeathDefeats
	if !res.SoulDeath {
		res.HPAfter = res.HPMaxAfter * RecoveryFraction
	}
	return res
}

// Apply commits the brief's outcome to p. The caller owns p, which should
// be a snapshot until persistence succeeds.
func Apply(p *player.Player, b *Brief) {
	p.HP = b.PlayerStateAfter.HP
	p.HPMax = b.PlayerStateAfter.HPMax
	p.Stability = b.PlayerStateAfter.Stability
	p.Instability = b.PlayerStateAfter.Instability
	p.FateBuffer = b.PlayerStateAfter.FateBuffer
	p.CombatCountSinceRest++
	if d := b.DefeatResult; d != nil {
		p.Scars = append(p.Scars, d.Scar)
		p.DefeatCount = d.DefeatCount
		p.SoulDead = d.SoulDeath
	}
	p.Clamp()
}
