package skill

// SkillEvolutionState tracks refinement, mutation, integration and
// awakening progress for the player's normal skills.
type SkillEvolutionState struct {
	RefinementTrackers     map[string]int `json:"refinement_trackers"`
	RefinementsDone        []string       `json:"refinements_done"`
	MutationsDone          int            `json:"mutations_done"`
	MutationInProgress     string         `json:"mutation_in_progress,omitempty"`
	MutationArcScene       int            `json:"mutation_arc_scene"`
	MutationStartedChapter int            `json:"mutation_started_chapter,omitempty"`
	IntegrationsDone       int            `json:"integrations_done"`
	IntegratedPairs        []string       `json:"integrated_pairs,omitempty"`
	AwakenedSkills         []string       `json:"awakened_skills"`
	LastEvolutionChapter   int            `json:"last_evolution_chapter"`
}

// NewEvolutionState returns an empty tracker.
func NewEvolutionState() SkillEvolutionState {
	return SkillEvolutionState{
		RefinementTrackers: make(map[string]int),
		RefinementsDone:    []string{},
		AwakenedSkills:     []string{},
	}
}

// TraumaKind classifies an entry in the growth trauma log.
type TraumaKind string

const (
	TraumaNearDeath TraumaKind = "near_death"
	TraumaDefeat    TraumaKind = "defeat"
)

// TraumaEvent is an append-only record of a scar-path trauma.
type TraumaEvent struct {
	Kind    TraumaKind `json:"kind"`
	Chapter int        `json:"chapter"`
	Note    string     `json:"note,omitempty"`
}

type BloomPath string

const (
	BloomPathNone BloomPath = ""
	BloomPathEcho BloomPath = "echo"
	BloomPathScar BloomPath = "scar"
)

type ScarType string

const (
	ScarDefensive ScarType = "defensive"
	ScarCounter   ScarType = "counter"
	ScarWarning   ScarType = "warning"
)

// AspectOption is one of the two forms offered at the aspect stage.
type AspectOption struct {
	Key             string   `json:"key"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Mechanic        string   `json:"mechanic"`
	Weakness        string   `json:"weakness"`
	ActiveSubSkill  SubSkill `json:"active_sub_skill"`
	PassiveSubSkill SubSkill `json:"passive_sub_skill"`
}

// UniqueSkillGrowthState tracks the Seed → Bloom → Aspect → Ultimate path.
type UniqueSkillGrowthState struct {
	EchoCoherenceStreak int            `json:"echo_coherence_streak"`
	EchoDecayStreak     int            `json:"echo_decay_streak"`
	ScarTraumaCount     int            `json:"scar_trauma_count"`
	TraumaLog           []TraumaEvent  `json:"trauma_log"`
	BloomCompleted      bool           `json:"bloom_completed"`
	BloomPath           BloomPath      `json:"bloom_path"`
	ScarType            ScarType       `json:"scar_type,omitempty"`
	AspectOptions       []AspectOption `json:"aspect_options,omitempty"`
	AspectForged        bool           `json:"aspect_forged"`
	AspectChosen        string         `json:"aspect_chosen,omitempty"`
	MutationLocked      bool           `json:"mutation_locked"`
	UltimateArcScene    int            `json:"ultimate_arc_scene"`
	UltimateForged      bool           `json:"ultimate_forged"`
	UltimateForm        string         `json:"ultimate_form,omitempty"`
	SubSkillsUnlocked   int            `json:"sub_skills_unlocked"`
}

// NewGrowthState returns the state right after forging.
func NewGrowthState() UniqueSkillGrowthState {
	return UniqueSkillGrowthState{
		TraumaLog:         []TraumaEvent{},
		SubSkillsUnlocked: 1,
	}
}
