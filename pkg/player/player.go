package player

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/weapon"
)

// Archetype fixes the chapter one starting zone and biases early content.
type Archetype string

const (
	ArchetypeVanguard  Archetype = "vanguard"
	ArchetypeCatalyst  Archetype = "catalyst"
	ArchetypeSovereign Archetype = "sovereign"
	ArchetypeSeeker    Archetype = "seeker"
	ArchetypeTactician Archetype = "tactician"
	ArchetypeWanderer  Archetype = "wanderer"
)

var Archetypes = []Archetype{
	ArchetypeVanguard, ArchetypeCatalyst, ArchetypeSovereign,
	ArchetypeSeeker, ArchetypeTactician, ArchetypeWanderer,
}

func (a Archetype) Valid() bool { return slices.Contains(Archetypes, a) }

type DNATag string

const (
	DNAShadow    DNATag = "shadow"
	DNAOath      DNATag = "oath"
	DNABloodline DNATag = "bloodline"
	DNATech      DNATag = "tech"
	DNAChaos     DNATag = "chaos"
	DNAMind      DNATag = "mind"
	DNACharm     DNATag = "charm"
	DNARelic     DNATag = "relic"
)

var DNATags = []DNATag{DNAShadow, DNAOath, DNABloodline, DNATech, DNAChaos, DNAMind, DNACharm, DNARelic}

func (d DNATag) Valid() bool { return slices.Contains(DNATags, d) }

// MaxEquipped is the number of normal skill slots.
const MaxEquipped = 4

// Defaults for a freshly forged player.
const (
	DefaultHPMax     = 100.0
	DefaultStability = 100.0
	SoulDeathDefeats = 4
)

// Identity is the shape shared by the seed and current identities.
type Identity struct {
	CoreValues []string `json:"core_values"`
	Traits     []string `json:"traits"`
	Motivation string   `json:"motivation"`
	Fear       string   `json:"fear"`
	Origin     string   `json:"origin"`
}

// LatentIdentity tracks the direction the player is drifting in.
type LatentIdentity struct {
	DriftDirection string   `json:"drift_direction"`
	DriftStrength  float64  `json:"drift_strength"`
	RecentFlags    []string `json:"recent_flags"`
}

type ScarKind string

const (
	ScarNearDeath ScarKind = "near_death"
	ScarPhysical  ScarKind = "physical"
	ScarMental    ScarKind = "mental"
)

// Scar is a permanent damage record.
type Scar struct {
	Kind         ScarKind `json:"kind"`
	Chapter      int      `json:"chapter"`
	HPMaxPenalty float64  `json:"hp_max_penalty"`
	Enemy        string   `json:"enemy,omitempty"`
	Description  string   `json:"description"`
}

// Player is the persistent protagonist record, one per user.
type Player struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	Backstory string `json:"backstory"`

	SeedIdentity    Identity       `json:"seed_identity"`
	CurrentIdentity Identity       `json:"current_identity"`
	LatentIdentity  LatentIdentity `json:"latent_identity"`
	Archetype       Archetype      `json:"archetype"`
	DNAAffinity     []DNATag       `json:"dna_affinity"`

	UniqueSkill        *skill.UniqueSkill           `json:"unique_skill,omitempty"`
	UniqueSkillGrowth  skill.UniqueSkillGrowthState `json:"unique_skill_growth"`
	PrincipleResonance principle.Resonance          `json:"principle_resonance"`
	ProtoSovereign     bool                         `json:"proto_sovereign"`

	IdentityCoherence    float64 `json:"identity_coherence"`
	Instability          float64 `json:"instability"`
	EchoTrace            float64 `json:"echo_trace"`
	DecisionQualityScore float64 `json:"decision_quality_score"`
	BreakthroughMeter    float64 `json:"breakthrough_meter"`
	Notoriety            float64 `json:"notoriety"`
	FateBuffer           float64 `json:"fate_buffer"`
	Alignment            float64 `json:"alignment"`

	TotalChapters          int `json:"total_chapters"`
	PityCounter            int `json:"pity_counter"`
	DefeatCount            int `json:"defeat_count"`
	ChaptersSinceLastSkill int `json:"chapters_since_last_skill"`
	CombatCountSinceRest   int `json:"combat_count_since_rest"`

	HP        float64 `json:"hp"`
	HPMax     float64 `json:"hp_max"`
	Stability float64 `json:"stability"`

	Resonance        principle.Resonance       `json:"resonance"`
	EquippedSkills   []string                  `json:"equipped_skills"`
	OwnedSkills      []skill.PlayerSkill       `json:"owned_skills"`
	PendingSkill     *skill.PlayerSkill        `json:"pending_skill,omitempty"`
	EquippedWeapons  weapon.Loadout            `json:"equipped_weapons"`
	SkillEvolution   skill.SkillEvolutionState `json:"skill_evolution"`
	ResonanceMastery ResonanceMastery          `json:"resonance_mastery"`
	ArchonAffinity   map[string]int            `json:"archon_affinity"`
	Scars            []Scar                    `json:"scars"`
	SoulDead         bool                      `json:"soul_dead"`
	Flags            map[string]bool           `json:"flags"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a player with every score at its initial value.
func New(id, userID, name string) *Player {
	now := time.Now().UTC()
	archon := make(map[string]int, len(weapon.ArchonKeys))
	for _, k := range weapon.ArchonKeys {
		archon[k] = 0
	}
	return &Player{
		ID:                   id,
		UserID:               userID,
		Name:                 name,
		DNAAffinity:          []DNATag{},
		UniqueSkillGrowth:    skill.NewGrowthState(),
		PrincipleResonance:   principle.NewResonance(0),
		IdentityCoherence:    100,
		EchoTrace:            100,
		DecisionQualityScore: 50,
		FateBuffer:           100,
		HP:                   DefaultHPMax,
		HPMax:                DefaultHPMax,
		Stability:            DefaultStability,
		Resonance:            principle.NewResonance(0),
		EquippedSkills:       []string{},
		OwnedSkills:          []skill.PlayerSkill{},
		SkillEvolution:       skill.NewEvolutionState(),
		ResonanceMastery:     ResonanceMastery{Rank: RankAwakened},
		ArchonAffinity:       archon,
		Scars:                []Scar{},
		Flags:                map[string]bool{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Validate checks the invariants that must hold after every commit.
func (p *Player) Validate() error {
	if p.HP < 0 || p.HP > p.HPMax {
		return fmt.Errorf("hp %.1f outside [0, %.1f]", p.HP, p.HPMax)
	}
	if p.Stability < 0 || p.Stability > 100 {
		return fmt.Errorf("stability %.1f outside [0, 100]", p.Stability)
	}
	for name, v := range p.scores() {
		if *v < 0 || *v > 100 {
			return fmt.Errorf("%s %.1f outside [0, 100]", name, *v)
		}
	}
	if p.Alignment < -100 || p.Alignment > 100 {
		return fmt.Errorf("alignment %.1f outside [-100, 100]", p.Alignment)
	}
	if len(p.EquippedSkills) > MaxEquipped {
		return fmt.Errorf("%d skills equipped, max %d", len(p.EquippedSkills), MaxEquipped)
	}
	for _, id := range p.EquippedSkills {
		if p.OwnedSkill(id) == nil {
			return fmt.Errorf("equipped skill %s is not owned", id)
		}
	}
	if len(p.DNAAffinity) > 3 {
		return fmt.Errorf("%d dna tags, max 3", len(p.DNAAffinity))
	}
	return nil
}

func (p *Player) scores() map[string]*float64 {
	return map[string]*float64{
		"identity_coherence":     &p.IdentityCoherence,
		"instability":            &p.Instability,
		"echo_trace":             &p.EchoTrace,
		"decision_quality_score": &p.DecisionQualityScore,
		"breakthrough_meter":     &p.BreakthroughMeter,
		"notoriety":              &p.Notoriety,
		"fate_buffer":            &p.FateBuffer,
	}
}

// Clamp forces every bounded field back into range.
func (p *Player) Clamp() {
	for _, v := range p.scores() {
		*v = clamp(*v, 0, 100)
	}
	p.Alignment = clamp(p.Alignment, -100, 100)
	p.Stability = clamp(p.Stability, 0, 100)
	if p.HPMax < 1 {
		p.HPMax = 1
	}
	p.HP = clamp(p.HP, 0, p.HPMax)
	p.Resonance = p.Resonance.Normalize()
}

// OwnedSkill finds an owned skill by id.
func (p *Player) OwnedSkill(id string) *skill.PlayerSkill {
	for i := range p.OwnedSkills {
		if p.OwnedSkills[i].ID == id {
			return &p.OwnedSkills[i]
		}
	}
	return nil
}

// Equipped returns the equipped normal skills in slot order.
func (p *Player) Equipped() []*skill.PlayerSkill {
	out := make([]*skill.PlayerSkill, 0, len(p.EquippedSkills))
	for _, id := range p.EquippedSkills {
		if s := p.OwnedSkill(id); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// IsEquipped reports whether id is in an equipped slot.
func (p *Player) IsEquipped(id string) bool { return slices.Contains(p.EquippedSkills, id) }

// AddSkill adds s to the owned list and equips it when a slot is free.
func (p *Player) AddSkill(s skill.PlayerSkill) error {
	if p.OwnedSkill(s.ID) != nil {
		return fmt.Errorf("skill %s already owned: %w", s.ID, ErrSkillOwned)
	}
	p.OwnedSkills = append(p.OwnedSkills, s)
	if len(p.EquippedSkills) < MaxEquipped {
		p.EquippedSkills = append(p.EquippedSkills, s.ID)
	}
	return nil
}

// Equip puts an owned skill into a slot.
func (p *Player) Equip(id string) error {
	s := p.OwnedSkill(id)
	if s == nil {
		return fmt.Errorf("skill %s: %w", id, ErrSkillNotOwned)
	}
	if s.Absorbed {
		return fmt.Errorf("skill %s was absorbed: %w", id, ErrSkillNotOwned)
	}
	if p.IsEquipped(id) {
		return nil
	}
	if len(p.EquippedSkills) >= MaxEquipped {
		return ErrSlotsFull
	}
	p.EquippedSkills = append(p.EquippedSkills, id)
	return nil
}

// Unequip removes id from the equipped list. Unknown ids are ignored.
func (p *Player) Unequip(id string) {
	p.EquippedSkills = slices.DeleteFunc(p.EquippedSkills, func(s string) bool { return s == id })
}

// RemoveSkill drops id from both owned and equipped lists.
func (p *Player) RemoveSkill(id string) {
	p.Unequip(id)
	p.OwnedSkills = slices.DeleteFunc(p.OwnedSkills, func(s skill.PlayerSkill) bool { return s.ID == id })
}

// OwnedIDs returns the set of owned skill ids.
func (p *Player) OwnedIDs() map[string]bool {
	out := make(map[string]bool, len(p.OwnedSkills))
	for _, s := range p.OwnedSkills {
		out[s.ID] = true
	}
	return out
}

// SetFlag sets a player flag.
func (p *Player) SetFlag(name string, v bool) {
	if p.Flags == nil {
		p.Flags = map[string]bool{}
	}
	p.Flags[name] = v
}

// Flag reads a player flag.
func (p *Player) Flag(name string) bool { return p.Flags[name] }

// HPFraction is hp over hp_max.
func (p *Player) HPFraction() float64 {
	if p.HPMax <= 0 {
		return 0
	}
	return p.HP / p.HPMax
}

// Clone returns a deep copy by way of the persistence encoding.
func (p *Player) Clone() *Player {
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("player clone: %v", err))
	}
	var c Player
	if err := json.Unmarshal(data, &c); err != nil {
		panic(fmt.Sprintf("player clone: %v", err))
	}
	return &c
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
