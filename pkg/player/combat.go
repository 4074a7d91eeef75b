package player

// CombatMetrics is the snapshot the combat resolver reads.
type CombatMetrics struct {
	HP                   float64 `json:"hp"`
	HPMax                float64 `json:"hp_max"`
	Stability            float64 `json:"stability"`
	Instability          float64 `json:"instability"`
	DecisionQualityScore float64 `json:"dqs"`
	BreakthroughMeter    float64 `json:"breakthrough"`
}

// CombatMetrics extracts the resolver inputs. DQS is normalised to [0,1].
func (p *Player) CombatMetrics() CombatMetrics {
	return CombatMetrics{
		HP:                   p.HP,
		HPMax:                p.HPMax,
		Stability:            p.Stability,
		Instability:          p.Instability,
		DecisionQualityScore: p.DecisionQualityScore / 100,
		BreakthroughMeter:    p.BreakthroughMeter,
	}
}

// AddScar appends a scar and lowers hp_max permanently.
func (p *Player) AddScar(s Scar) {
	p.Scars = append(p.Scars, s)
	p.HPMax = max(p.HPMax-s.HPMaxPenalty, 1)
	p.HP = min(p.HP, p.HPMax)
}

// Rest restores pools and resets the combat counter.
func (p *Player) Rest() {
	p.HP = p.HPMax
	p.Stability = min(p.Stability+30, 100)
	p.CombatCountSinceRest = 0
}
