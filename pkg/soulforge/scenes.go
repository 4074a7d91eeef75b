// Package soulforge runs the onboarding micro-scenes, turns the player's
// answers and timing into identity signals and a behavioral fingerprint,
// and derives the starting principle resonance. The forge call itself
// lives in the orchestrator.
package soulforge

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/scenes.yaml
var scenesYAML []byte

const (
	SceneCount = 5
	// ConvergentScene offers no choice; the soul fragment follows it.
	ConvergentScene = 5
)

// VoidAnchor is what the player reached for in scene 1.
type VoidAnchor string

const (
	AnchorConnection VoidAnchor = "connection"
	AnchorPower      VoidAnchor = "power"
	AnchorKnowledge  VoidAnchor = "knowledge"
	AnchorSilence    VoidAnchor = "silence"
)

var VoidAnchors = []VoidAnchor{AnchorConnection, AnchorPower, AnchorKnowledge, AnchorSilence}

func (a VoidAnchor) Valid() bool { return slices.Contains(VoidAnchors, a) }

// moralGroups maps a scene 2 moral core onto a scene 3 variant.
var moralGroups = map[string]string{
	"mercy":    "compassion",
	"truth":    "principle",
	"order":    "principle",
	"justice":  "principle",
	"loyalty":  "loyalty",
	"survival": "pragmatic",
	"freedom":  "freedom",
}

// MoralGroup returns the scene 3 variant for a moral core.
func MoralGroup(core string) string {
	if g, ok := moralGroups[core]; ok {
		return g
	}
	return "pragmatic"
}

// Choice is one option in a scene with the signals it contributes.
type Choice struct {
	Text    string            `yaml:"text" json:"text"`
	Signals map[string]string `yaml:"signals" json:"-"`
}

// Scene is one onboarding micro-scene.
type Scene struct {
	Number  int      `yaml:"number" json:"number"`
	Variant string   `yaml:"variant" json:"variant,omitempty"`
	Title   string   `yaml:"title" json:"title"`
	Text    string   `yaml:"text" json:"text"`
	Choices []Choice `yaml:"choices" json:"choices,omitempty"`
}

type sceneKey struct {
	number  int
	variant string
}

// SceneSet indexes the scenes by number and variant.
type SceneSet struct {
	scenes map[sceneKey]*Scene
}

var (
	defaultSet     *SceneSet
	defaultSetErr  error
	defaultSetOnce sync.Once
)

// DefaultScenes returns the embedded scene set.
func DefaultScenes() (*SceneSet, error) {
	defaultSetOnce.Do(func() {
		defaultSet, defaultSetErr = ParseScenes(scenesYAML)
	})
	return defaultSet, defaultSetErr
}

// ParseScenes decodes and validates a scene file.
func ParseScenes(data []byte) (*SceneSet, error) {
	var doc struct {
		Scenes []Scene `yaml:"scenes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode soul forge scenes: %w", err)
	}
	set := &SceneSet{scenes: make(map[sceneKey]*Scene, len(doc.Scenes))}
	for i := range doc.Scenes {
		s := &doc.Scenes[i]
		k := sceneKey{s.Number, s.Variant}
		if _, dup := set.scenes[k]; dup {
			return nil, fmt.Errorf("duplicate scene %d/%q", s.Number, s.Variant)
		}
		set.scenes[k] = s
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that every branch a session can take has a scene.
func (s *SceneSet) Validate() error {
	first, ok := s.scenes[sceneKey{1, ""}]
	if !ok {
		return fmt.Errorf("scene 1 missing")
	}
	if len(first.Choices) != len(VoidAnchors) {
		return fmt.Errorf("scene 1 has %d choices, want %d", len(first.Choices), len(VoidAnchors))
	}
	for _, c := range first.Choices {
		if !VoidAnchor(c.Signals[SignalVoidAnchor]).Valid() {
			return fmt.Errorf("scene 1 choice %q has no valid void anchor", c.Text)
		}
	}
	for _, a := range VoidAnchors {
		for _, n := range []int{2, 4} {
			if _, ok := s.scenes[sceneKey{n, string(a)}]; !ok {
				return fmt.Errorf("scene %d variant %q missing", n, a)
			}
		}
		for _, c := range s.scenes[sceneKey{2, string(a)}].Choices {
			core := c.Signals[SignalMoralCore]
			if _, ok := moralGroups[core]; !ok {
				return fmt.Errorf("scene 2/%s choice %q has unknown moral core %q", a, c.Text, core)
			}
		}
	}
	for _, g := range moralGroups {
		if _, ok := s.scenes[sceneKey{3, g}]; !ok {
			return fmt.Errorf("scene 3 variant %q missing", g)
		}
	}
	if last, ok := s.scenes[sceneKey{ConvergentScene, ""}]; !ok || len(last.Choices) != 0 {
		return fmt.Errorf("convergent scene %d missing or has choices", ConvergentScene)
	}
	for k, sc := range s.scenes {
		if k.number != ConvergentScene && len(sc.Choices) == 0 {
			return fmt.Errorf("scene %d/%q has no choices", k.number, k.variant)
		}
	}
	return nil
}

// Len is the number of scene definitions.
func (s *SceneSet) Len() int { return len(s.scenes) }

// Scene returns the scene a session with the given signals sees at n.
func (s *SceneSet) Scene(n int, sig IdentitySignals) (*Scene, error) {
	var variant string
	switch n {
	case 2, 4:
		variant = string(sig.VoidAnchor)
	case 3:
		variant = MoralGroup(sig.MoralCore)
	}
	sc, ok := s.scenes[sceneKey{n, variant}]
	if !ok {
		return nil, fmt.Errorf("no scene %d for variant %q", n, variant)
	}
	return sc, nil
}
