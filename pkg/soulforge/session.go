package soulforge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Phase string

const (
	PhaseScenes   Phase = "scenes"
	PhaseFragment Phase = "fragment"
	PhaseReady    Phase = "ready"
	PhaseForged   Phase = "forged"
)

var (
	ErrWrongPhase       = errors.New("soul forge session is not in the required phase")
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	ErrEmptyFragment    = errors.New("soul fragment is empty")
)

// SessionTTL bounds how long an unfinished session is kept.
const SessionTTL = 24 * time.Hour

// Session is one player's progress through the forge.
type Session struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Phase        Phase                  `json:"phase"`
	CurrentScene int                    `json:"current_scene"`
	Signals      IdentitySignals        `json:"signals"`
	Choices      []ChoiceRecord         `json:"choices"`
	Fragment     *Fragment              `json:"fragment,omitempty"`
	Fingerprint  *BehavioralFingerprint `json:"fingerprint,omitempty"`
	PlayerID     string                 `json:"player_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// NewSession starts a session at scene 1.
func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		UserID:       userID,
		Phase:        PhaseScenes,
		CurrentScene: 1,
		Choices:      []ChoiceRecord{},
		CreatedAt:    now,
	}
}

// Current returns the scene the session is waiting on.
func (s *Session) Current(set *SceneSet) (*Scene, error) {
	return set.Scene(s.CurrentScene, s.Signals)
}

// SubmitChoice records an answer to the current scene and returns the next
// one. Reaching the convergent scene moves the session to the fragment
// phase.
func (s *Session) SubmitChoice(set *SceneSet, index, responseTimeMS, hoverCount int) (*Scene, error) {
	if s.Phase != PhaseScenes {
		return nil, fmt.Errorf("%w: %s", ErrWrongPhase, s.Phase)
	}
	cur, err := s.Current(set)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(cur.Choices) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChoiceOutOfRange, index, len(cur.Choices))
	}
	s.Signals.Apply(cur.Choices[index].Signals)
	s.Choices = append(s.Choices, ChoiceRecord{
		Scene:          cur.Number,
		Variant:        cur.Variant,
		ChoiceIndex:    index,
		ResponseTimeMS: max(responseTimeMS, 0),
		HoverCount:     max(hoverCount, 0),
	})
	s.CurrentScene++
	if s.CurrentScene == ConvergentScene {
		s.Phase = PhaseFragment
	}
	return s.Current(set)
}

// SubmitFragment stores the soul fragment and computes the fingerprint.
func (s *Session) SubmitFragment(f Fragment) error {
	if s.Phase != PhaseFragment {
		return fmt.Errorf("%w: %s", ErrWrongPhase, s.Phase)
	}
	f.Text = strings.TrimSpace(f.Text)
	if f.Text == "" {
		return ErrEmptyFragment
	}
	fp := ComputeFingerprint(s.Choices, f)
	s.Fragment = &f
	s.Fingerprint = &fp
	s.Phase = PhaseReady
	return nil
}

// ReadyToForge reports whether Forge may run.
func (s *Session) ReadyToForge() bool { return s.Phase == PhaseReady }

// MarkForged closes the session.
func (s *Session) MarkForged(playerID string) {
	s.Phase = PhaseForged
	s.PlayerID = playerID
}
