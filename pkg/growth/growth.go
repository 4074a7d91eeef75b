// Package growth drives the unique skill through seed, bloom, aspect and
// ultimate. Functions mutate the player they are given and report what
// happened; text generation is the caller's job.
package growth

import (
	"errors"

	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
)

const (
	EchoHighCoherence = 70.0
	EchoLowCoherence  = 50.0
	EchoBloomStreak   = 10
	EchoDamage        = 2
	RevertStreak      = 5
	ScarBloomTraumas  = 3
	AspectRank        = player.RankHarmonized
	AspectUsage       = 20
	UltimateRank      = player.RankTranscendent
	MasteryUsage      = 20
)

var (
	ErrNoUniqueSkill   = errors.New("player has no unique skill")
	ErrWrongStage      = errors.New("unique skill is not at the required stage")
	ErrNotReady        = errors.New("growth gate not met")
	ErrUnknownAspect   = errors.New("unknown aspect option")
	ErrNoMasteredSkill = errors.New("no mastered normal skill to absorb")
	ErrUltimateUsed    = errors.New("ultimate ability already used this season")
	ErrArcOutOfOrder   = errors.New("ultimate arc scene out of order")
	ErrMissingUltimate = errors.New("ultimate form is incomplete")
)

type EventType string

const (
	EventBloomReady    EventType = "bloom_ready"
	EventBloomRevert   EventType = "bloom_revert"
	EventAspectReady   EventType = "aspect_ready"
	EventUltimateReady EventType = "ultimate_ready"
)

// Event reports a growth transition the caller must act on.
type Event struct {
	Type EventType       `json:"type"`
	Path skill.BloomPath `json:"path,omitempty"`
}

// Stage returns the unique skill's stage, or seed when there is none.
func Stage(p *player.Player) skill.Stage {
	if p.UniqueSkill == nil {
		return skill.StageSeed
	}
	return p.UniqueSkill.CurrentStage
}

// ObserveScene folds one scene's coherence into the echo streaks and
// returns a bloom or revert event when one is due.
func ObserveScene(p *player.Player, coherence float64) *Event {
	u := p.UniqueSkill
	if u == nil {
		return nil
	}
	g := &p.UniqueSkillGrowth
	switch {
	case coherence >= EchoHighCoherence:
		g.EchoCoherenceStreak++
		g.EchoDecayStreak = 0
	case coherence < EchoLowCoherence:
		g.EchoCoherenceStreak = max(g.EchoCoherenceStreak-EchoDamage, 0)
		g.EchoDecayStreak++
	default:
		g.EchoDecayStreak = 0
	}

	if g.BloomCompleted {
		if g.BloomPath == skill.BloomPathEcho && !g.AspectForged && g.EchoDecayStreak >= RevertStreak {
			revert(p)
			return &Event{Type: EventBloomRevert, Path: skill.BloomPathEcho}
		}
		return nil
	}
	if g.EchoCoherenceStreak >= EchoBloomStreak {
		return &Event{Type: EventBloomReady, Path: skill.BloomPathEcho}
	}
	return nil
}

// RecordTrauma appends to the trauma log. Three traumas open the scar
// path to bloom.
func RecordTrauma(p *player.Player, kind skill.TraumaKind, chapter int, note string) *Event {
	g := &p.UniqueSkillGrowth
	g.TraumaLog = append(g.TraumaLog, skill.TraumaEvent{Kind: kind, Chapter: chapter, Note: note})
	g.ScarTraumaCount++
	if p.UniqueSkill == nil || g.BloomCompleted || g.ScarTraumaCount < ScarBloomTraumas {
		return nil
	}
	return &Event{Type: EventBloomReady, Path: skill.BloomPathScar}
}

// ScarTypeFor classifies the trauma log.
func ScarTypeFor(log []skill.TraumaEvent) skill.ScarType {
	var nearDeath, defeats int
	for _, e := range log {
		switch e.Kind {
		case skill.TraumaNearDeath:
			nearDeath++
		case skill.TraumaDefeat:
			defeats++
		}
	}
	switch {
	case nearDeath >= 2:
		return skill.ScarDefensive
	case defeats >= 2:
		return skill.ScarCounter
	default:
		return skill.ScarWarning
	}
}

// BloomPathReady returns the path bloom may take now, or BloomPathNone.
func BloomPathReady(p *player.Player) skill.BloomPath {
	g := &p.UniqueSkillGrowth
	if p.UniqueSkill == nil || g.BloomCompleted {
		return skill.BloomPathNone
	}
	if g.EchoCoherenceStreak >= EchoBloomStreak {
		return skill.BloomPathEcho
	}
	if g.ScarTraumaCount >= ScarBloomTraumas {
		return skill.BloomPathScar
	}
	return skill.BloomPathNone
}

// BloomText is the generated part of a bloom.
type BloomText struct {
	SubSkill skill.SubSkill `json:"sub_skill"`
	Weakness string         `json:"weakness"`
}

// FallbackBloom produces bloom text without the narrator.
func FallbackBloom(u *skill.UniqueSkill, path skill.BloomPath) BloomText {
	kind := skill.SubSkillActive
	name := u.Name + ": Resonant Echo"
	if path == skill.BloomPathScar {
		kind = skill.SubSkillReactive
		name = u.Name + ": Scar Answer"
	}
	return BloomText{
		SubSkill: skill.SubSkill{Name: name, Mechanic: "Extends " + u.Mechanic, Kind: kind},
		Weakness: u.Weakness + " The strain eases once the user accepts it.",
	}
}

// ApplyBloom advances a seed to bloom along path.
func ApplyBloom(p *player.Player, path skill.BloomPath, text BloomText) error {
	u := p.UniqueSkill
	if u == nil {
		return ErrNoUniqueSkill
	}
	if u.CurrentStage != skill.StageSeed {
		return ErrWrongStage
	}
	if path == skill.BloomPathNone || BloomPathReady(p) != path {
		return ErrNotReady
	}
	g := &p.UniqueSkillGrowth
	sub := text.SubSkill
	sub.Stage = skill.StageBloom
	sub.Kind = skill.SubSkillActive
	if path == skill.BloomPathScar {
		sub.Kind = skill.SubSkillReactive
		g.ScarType = ScarTypeFor(g.TraumaLog)
	}
	u.SubSkills = append(u.SubSkills, sub)
	if text.Weakness != "" {
		u.Weakness = text.Weakness
	}
	u.CurrentStage = skill.StageBloom
	u.SuppressionResistance = skill.SuppressionBloom
	g.BloomCompleted = true
	g.BloomPath = path
	g.EchoDecayStreak = 0
	g.SubSkillsUnlocked = len(u.SubSkills)
	return nil
}

func revert(p *player.Player) {
	u := p.UniqueSkill
	g := &p.UniqueSkillGrowth
	kept := u.SubSkills[:0]
	for _, s := range u.SubSkills {
		if s.Stage == skill.StageSeed {
			kept = append(kept, s)
		}
	}
	u.SubSkills = kept
	u.CurrentStage = skill.StageSeed
	u.SuppressionResistance = skill.SuppressionSeed
	g.BloomCompleted = false
	g.BloomPath = skill.BloomPathNone
	g.EchoCoherenceStreak = 0
	g.EchoDecayStreak = 0
	g.SubSkillsUnlocked = len(u.SubSkills)
}
