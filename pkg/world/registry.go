// Package world holds the per-story world state and the registry of named
// villains, generals, archons, bosses, starting zones and tower floors.
package world

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/amoisekai/engine/pkg/combat"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/principle"
	"github.com/amoisekai/engine/pkg/weapon"
)

//go:embed data/registry.yaml
var registryYAML []byte

// Emissary is a villain who works in the open for the Empire.
type Emissary struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Principle   principle.Principle `yaml:"principle" json:"principle"`
	Description string              `yaml:"description" json:"description"`
}

// General is a hidden commander met over three escalating encounters.
type General struct {
	ID        string              `yaml:"id" json:"id"`
	Name      string              `yaml:"name" json:"name"`
	Principle principle.Principle `yaml:"principle" json:"principle"`
	Phases    []string            `yaml:"phases" json:"phases"`
}

type Archon struct {
	Key       string              `yaml:"key" json:"key"`
	Name      string              `yaml:"name" json:"name"`
	Principle principle.Principle `yaml:"principle" json:"principle"`
	Domain    string              `yaml:"domain" json:"domain"`
}

// Zone is a chapter one starting location.
type Zone struct {
	ID          string           `yaml:"id" json:"id"`
	Name        string           `yaml:"name" json:"name"`
	Archetype   player.Archetype `yaml:"archetype" json:"archetype"`
	Description string           `yaml:"description" json:"description"`
}

// FloorBand applies a modifier to a range of tower floors.
type FloorBand struct {
	From     int                  `yaml:"from"`
	To       int                  `yaml:"to"`
	Modifier combat.FloorModifier `yaml:"modifier"`
}

// Registry is the loaded entity catalogue. It is read-only after load.
type Registry struct {
	Emissaries []Emissary            `yaml:"emissaries"`
	Generals   []General             `yaml:"generals"`
	Archons    []Archon              `yaml:"archons"`
	Bosses     []combat.BossTemplate `yaml:"bosses"`
	Zones      []Zone                `yaml:"zones"`
	Floors     []FloorBand           `yaml:"floors"`
}

var (
	defaultReg     *Registry
	defaultRegErr  error
	defaultRegOnce sync.Once
)

// DefaultRegistry returns the embedded registry.
func DefaultRegistry() (*Registry, error) {
	defaultRegOnce.Do(func() {
		defaultReg, defaultRegErr = ParseRegistry(registryYAML)
	})
	return defaultReg, defaultRegErr
}

// LoadRegistry reads a registry file, falling back to the embedded one
// when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates registry YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks ids, principles, archon keys, boss phase counts, and
// that every archetype has a starting zone.
func (r *Registry) Validate() error {
	seen := map[string]bool{}
	check := func(kind, id string, p principle.Principle) error {
		if id == "" {
			return fmt.Errorf("%s with empty id", kind)
		}
		if seen[kind+"/"+id] {
			return fmt.Errorf("duplicate %s %q", kind, id)
		}
		seen[kind+"/"+id] = true
		if p != "" && !p.Valid() {
			return fmt.Errorf("%s %q has unknown principle %q", kind, id, p)
		}
		return nil
	}
	for _, e := range r.Emissaries {
		if err := check("emissary", e.ID, e.Principle); err != nil {
			return err
		}
	}
	for _, g := range r.Generals {
		if err := check("general", g.ID, g.Principle); err != nil {
			return err
		}
		if len(g.Phases) != GeneralPhases {
			return fmt.Errorf("general %q has %d phases, want %d", g.ID, len(g.Phases), GeneralPhases)
		}
	}
	for _, a := range r.Archons {
		if err := check("archon", a.Key, a.Principle); err != nil {
			return err
		}
		if !slices.Contains(weapon.ArchonKeys, a.Key) {
			return fmt.Errorf("unknown archon key %q", a.Key)
		}
	}
	if len(r.Archons) != len(weapon.ArchonKeys) {
		return fmt.Errorf("registry has %d archons, want %d", len(r.Archons), len(weapon.ArchonKeys))
	}
	for _, b := range r.Bosses {
		if err := check("boss", b.ID, ""); err != nil {
			return err
		}
		if len(b.Phases) != combat.EncounterBoss.Phases() {
			return fmt.Errorf("boss %q has %d phases, want %d", b.ID, len(b.Phases), combat.EncounterBoss.Phases())
		}
		for _, ph := range b.Phases {
			if !ph.DominantPrinciple.Valid() {
				return fmt.Errorf("boss %q phase %q has unknown principle", b.ID, ph.Name)
			}
		}
	}
	for _, a := range player.Archetypes {
		if _, ok := r.StartingZone(a); !ok {
			return fmt.Errorf("no starting zone for archetype %q", a)
		}
	}
	for _, f := range r.Floors {
		if f.From < 1 || f.To < f.From {
			return fmt.Errorf("bad floor band %d-%d", f.From, f.To)
		}
	}
	return nil
}

func (r *Registry) Emissary(id string) (*Emissary, bool) {
	for i := range r.Emissaries {
		if r.Emissaries[i].ID == id {
			return &r.Emissaries[i], true
		}
	}
	return nil, false
}

func (r *Registry) General(id string) (*General, bool) {
	for i := range r.Generals {
		if r.Generals[i].ID == id {
			return &r.Generals[i], true
		}
	}
	return nil, false
}

func (r *Registry) Archon(key string) (*Archon, bool) {
	for i := range r.Archons {
		if r.Archons[i].Key == key {
			return &r.Archons[i], true
		}
	}
	return nil, false
}

// Boss returns a copy of the boss template so callers cannot mutate the
// registry.
func (r *Registry) Boss(id string) (*combat.BossTemplate, bool) {
	for _, b := range r.Bosses {
		if b.ID == id {
			b.Phases = slices.Clone(b.Phases)
			return &b, true
		}
	}
	return nil, false
}

// StartingZone returns the fixed chapter one zone for an archetype.
func (r *Registry) StartingZone(a player.Archetype) (Zone, bool) {
	for _, z := range r.Zones {
		if z.Archetype == a {
			return z, true
		}
	}
	return Zone{}, false
}

// FloorModifier returns the modifier for a tower floor, or nil.
func (r *Registry) FloorModifier(floor int) *combat.FloorModifier {
	for _, f := range r.Floors {
		if floor >= f.From && floor <= f.To {
			m := f.Modifier
			return &m
		}
	}
	return nil
}
