package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	MaxNarrativeEvents = 20
	ChaptersPerSeason  = 50
	GeneralPhases      = 3
	// ConvertSympathy is the sympathy an emissary needs before conversion.
	ConvertSympathy    = 60.0
	AnomalyInstability = 5.0
	MaxActiveAnomalies = 5
)

var (
	ErrUnknownEntity     = errors.New("unknown world entity")
	ErrInvalidTransition = errors.New("invalid world state transition")
)

type EmissaryState string

const (
	EmissaryActive     EmissaryState = "active"
	EmissaryRevealed   EmissaryState = "revealed"
	EmissaryEliminated EmissaryState = "eliminated"
	EmissaryConverted  EmissaryState = "converted"
)

type EmissaryStatus struct {
	State      EmissaryState `json:"state"`
	Sympathy   float64       `json:"sympathy"`
	Encounters int           `json:"encounters"`
}

type GeneralState string

const (
	GeneralShadow     GeneralState = "shadow"
	GeneralManifested GeneralState = "manifested"
	GeneralConfronted GeneralState = "confronted"
	GeneralDefeated   GeneralState = "defeated"
)

// GeneralStatus tracks a general through his three encounter phases.
type GeneralStatus struct {
	State       GeneralState `json:"state"`
	Phase       int          `json:"phase"`
	LastChapter int          `json:"last_chapter,omitempty"`
}

type TowerState struct {
	HighestFloor    int      `json:"highest_floor"`
	FloorsCleared   []int    `json:"floors_cleared"`
	Instability     float64  `json:"instability"`
	ActiveAnomalies []string `json:"active_anomalies"`
}

type EmpireState struct {
	EnforcementIntensity float64 `json:"enforcement_intensity"`
	EmpireResonance      float64 `json:"empire_resonance"`
	IdentityAnchor       float64 `json:"identity_anchor"`
	VeiledWillPhase      int     `json:"veiled_will_phase"`
}

// State is the persisted per-story world.
type State struct {
	StoryID         string                     `json:"story_id"`
	Season          int                        `json:"season"`
	Emissaries      map[string]*EmissaryStatus `json:"emissary_status"`
	Generals        map[string]*GeneralStatus  `json:"general_status"`
	Tower           TowerState                 `json:"tower"`
	Empire          EmpireState                `json:"empire"`
	WorldFlags      map[string]bool            `json:"world_flags"`
	NarrativeEvents []string                   `json:"narrative_events"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// NewState seeds a world for storyID from the registry.
func NewState(storyID string, reg *Registry) *State {
	s := &State{
		StoryID:         storyID,
		Season:          1,
		Emissaries:      map[string]*EmissaryStatus{},
		Generals:        map[string]*GeneralStatus{},
		Tower:           TowerState{FloorsCleared: []int{}, ActiveAnomalies: []string{}},
		Empire:          EmpireState{EnforcementIntensity: 30, EmpireResonance: 10, IdentityAnchor: 50},
		WorldFlags:      map[string]bool{},
		NarrativeEvents: []string{},
		UpdatedAt:       time.Now().UTC(),
	}
	if reg != nil {
		for _, e := range reg.Emissaries {
			s.Emissaries[e.ID] = &EmissaryStatus{State: EmissaryActive}
		}
		for _, g := range reg.Generals {
			s.Generals[g.ID] = &GeneralStatus{State: GeneralShadow}
		}
	}
	return s
}

// SeasonFor maps a chapter number to its season.
func SeasonFor(chapter int) int {
	if chapter < 1 {
		return 1
	}
	return (chapter-1)/ChaptersPerSeason + 1
}

// AdvanceChapter updates the season for chapter.
func (s *State) AdvanceChapter(chapter int) {
	s.Season = max(s.Season, SeasonFor(chapter))
}

// AddEvent appends a narrative event, keeping the newest 20.
func (s *State) AddEvent(e string) {
	e = strings.TrimSpace(e)
	if e == "" {
		return
	}
	s.NarrativeEvents = append(s.NarrativeEvents, e)
	if n := len(s.NarrativeEvents); n > MaxNarrativeEvents {
		s.NarrativeEvents = slices.Clone(s.NarrativeEvents[n-MaxNarrativeEvents:])
	}
}

func clamp100(v float64) float64 { return min(max(v, 0), 100) }

// VeiledWillPhaseFor maps empire resonance onto phase 0..3.
func VeiledWillPhaseFor(resonance float64) int {
	switch {
	case resonance >= 75:
		return 3
	case resonance >= 50:
		return 2
	case resonance >= 25:
		return 1
	}
	return 0
}

// Update is a batch of world changes produced by the simulator.
type Update struct {
	EmpireResonanceDelta float64         `json:"empire_resonance_delta"`
	IdentityAnchorDelta  float64         `json:"identity_anchor_delta"`
	EnforcementDelta     float64         `json:"enforcement_delta"`
	Flags                map[string]bool `json:"flags,omitempty"`
	Events               []string        `json:"events,omitempty"`
}

// Apply folds u into the state. The veiled will phase never goes back.
func (s *State) Apply(u Update) {
	e := &s.Empire
	e.EmpireResonance = clamp100(e.EmpireResonance + u.EmpireResonanceDelta)
	e.IdentityAnchor = clamp100(e.IdentityAnchor + u.IdentityAnchorDelta)
	e.EnforcementIntensity = clamp100(e.EnforcementIntensity + u.EnforcementDelta)
	e.VeiledWillPhase = max(e.VeiledWillPhase, VeiledWillPhaseFor(e.EmpireResonance))
	if s.WorldFlags == nil {
		s.WorldFlags = map[string]bool{}
	}
	for k, v := range u.Flags {
		s.WorldFlags[k] = v
	}
	for _, ev := range u.Events {
		s.AddEvent(ev)
	}
}

// MeetEmissary records an encounter and shifts sympathy within [-100, 100].
func (s *State) MeetEmissary(id string, sympathyDelta float64) (*EmissaryStatus, error) {
	st, ok := s.Emissaries[id]
	if !ok {
		return nil, fmt.Errorf("%w: emissary %q", ErrUnknownEntity, id)
	}
	if st.State == EmissaryEliminated || st.State == EmissaryConverted {
		return st, fmt.Errorf("%w: emissary %q is %s", ErrInvalidTransition, id, st.State)
	}
	st.Encounters++
	st.Sympathy = min(max(st.Sympathy+sympathyDelta, -100), 100)
	return st, nil
}

// SetEmissaryState moves an emissary along active → revealed →
// eliminated or converted.
func (s *State) SetEmissaryState(id string, next EmissaryState) error {
	st, ok := s.Emissaries[id]
	if !ok {
		return fmt.Errorf("%w: emissary %q", ErrUnknownEntity, id)
	}
	valid := false
	switch next {
	case EmissaryRevealed:
		valid = st.State == EmissaryActive
	case EmissaryEliminated:
		valid = st.State == EmissaryActive || st.State == EmissaryRevealed
	case EmissaryConverted:
		valid = st.State == EmissaryRevealed && st.Sympathy >= ConvertSympathy
	}
	if !valid {
		return fmt.Errorf("%w: emissary %q %s -> %s", ErrInvalidTransition, id, st.State, next)
	}
	st.State = next
	return nil
}

// AdvanceGeneral plays the next encounter phase. Winning the third phase
// defeats the general.
func (s *State) AdvanceGeneral(id string, chapter int, won bool) (*GeneralStatus, error) {
	st, ok := s.Generals[id]
	if !ok {
		return nil, fmt.Errorf("%w: general %q", ErrUnknownEntity, id)
	}
	if st.State == GeneralDefeated {
		return st, fmt.Errorf("%w: general %q already defeated", ErrInvalidTransition, id)
	}
	if st.Phase < GeneralPhases {
		st.Phase++
	}
	st.LastChapter = chapter
	switch st.Phase {
	case 1:
		st.State = GeneralShadow
	case 2:
		st.State = GeneralManifested
	case 3:
		st.State = GeneralConfronted
		if won {
			st.State = GeneralDefeated
		}
	}
	return st, nil
}

// ClearFloor records a tower floor victory and any anomalies it left.
func (s *State) ClearFloor(floor int, anomalies ...string) {
	t := &s.Tower
	if floor < 1 {
		floor = t.HighestFloor + 1
	}
	if !slices.Contains(t.FloorsCleared, floor) {
		t.FloorsCleared = append(t.FloorsCleared, floor)
		slices.Sort(t.FloorsCleared)
	}
	t.HighestFloor = max(t.HighestFloor, floor)
	for _, a := range anomalies {
		if a == "" || slices.Contains(t.ActiveAnomalies, a) {
			continue
		}
		t.ActiveAnomalies = append(t.ActiveAnomalies, a)
		t.Instability = clamp100(t.Instability + AnomalyInstability)
	}
	if n := len(t.ActiveAnomalies); n > MaxActiveAnomalies {
		t.ActiveAnomalies = slices.Clone(t.ActiveAnomalies[n-MaxActiveAnomalies:])
	}
}

// NextFloor is the floor the player would fight on next.
func (s *State) NextFloor() int { return s.Tower.HighestFloor + 1 }

// Clone deep-copies the state.
func (s *State) Clone() *State {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return &out
}

// ToMap converts the state to its persisted map form.
func (s *State) ToMap() (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// FromMap is the inverse of ToMap.
func FromMap(m map[string]any) (*State, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
