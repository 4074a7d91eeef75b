package skill

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/amoisekai/engine/pkg/principle"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

// SkeletonsPerPrinciple is the fixed size of each principle's roster.
const SkeletonsPerPrinciple = 12

// Catalog is an immutable id-indexed set of skeletons.
type Catalog struct {
	byID        map[string]*Skeleton
	byPrinciple map[principle.Principle][]*Skeleton
	ids         []string
}

type catalogFile struct {
	Skeletons []Skeleton `yaml:"skeletons"`
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded Tier-1 catalog.
func DefaultCatalog() (*Catalog, error) {
	defaultCatalogOnce.Do(func() {
		defaultCatalog, defaultCatalogErr = ParseCatalog(catalogYAML)
	})
	return defaultCatalog, defaultCatalogErr
}

// MustCatalog is DefaultCatalog for callers that cannot recover from a
// broken embedded resource.
func MustCatalog() *Catalog {
	c, err := DefaultCatalog()
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse skill catalog: %w", err)
	}

	c := &Catalog{
		byID:        make(map[string]*Skeleton, len(f.Skeletons)),
		byPrinciple: make(map[principle.Principle][]*Skeleton),
	}
	for i := range f.Skeletons {
		sk := f.Skeletons[i]
		if err := normalizeSkeleton(&sk); err != nil {
			return nil, err
		}
		if _, dup := c.byID[sk.ID]; dup {
			return nil, fmt.Errorf("duplicate skeleton id %q", sk.ID)
		}
		c.byID[sk.ID] = &sk
		c.byPrinciple[sk.Principle] = append(c.byPrinciple[sk.Principle], &sk)
		c.ids = append(c.ids, sk.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

func normalizeSkeleton(sk *Skeleton) error {
	parts := strings.Split(sk.ID, "_")
	if len(parts) != 3 {
		return fmt.Errorf("skeleton id %q must be <principle>_<role>_<nn>", sk.ID)
	}
	if principle.Principle(parts[0]) != sk.Principle {
		return fmt.Errorf("skeleton %s: id prefix does not match principle %q", sk.ID, sk.Principle)
	}
	if !sk.Principle.Valid() {
		return fmt.Errorf("skeleton %s: unknown principle %q", sk.ID, sk.Principle)
	}
	if sk.SecondaryPrinciple != "" && !sk.SecondaryPrinciple.Valid() {
		return fmt.Errorf("skeleton %s: unknown secondary principle %q", sk.ID, sk.SecondaryPrinciple)
	}
	arch, ok := archetypeCodes[parts[1]]
	if !ok {
		return fmt.Errorf("skeleton %s: unknown role code %q", sk.ID, parts[1])
	}
	sk.Archetype = arch
	if sk.Tier == 0 {
		sk.Tier = 1
	}
	if sk.CatalogName == "" || sk.Mechanic == "" || sk.Limitation == "" || sk.Weakness == "" {
		return fmt.Errorf("skeleton %s: name, mechanic, limitation and weakness are required", sk.ID)
	}
	switch sk.DamageType {
	case DamageStructural, DamageStability, DamageDenial, DamageNone:
	default:
		return fmt.Errorf("skeleton %s: unknown damage type %q", sk.ID, sk.DamageType)
	}
	switch sk.Delivery {
	case DeliveryMelee, DeliveryRanged, DeliveryArea, DeliverySelf, DeliveryField:
	default:
		return fmt.Errorf("skeleton %s: unknown delivery %q", sk.ID, sk.Delivery)
	}
	return nil
}

// Get returns the skeleton with id.
func (c *Catalog) Get(id string) (*Skeleton, bool) {
	sk, ok := c.byID[id]
	return sk, ok
}

// Len is the number of skeletons.
func (c *Catalog) Len() int { return len(c.byID) }

// IDs returns all skeleton ids in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// ByPrinciple returns the skeletons whose primary principle is p.
func (c *Catalog) ByPrinciple(p principle.Principle) []*Skeleton {
	return c.byPrinciple[p]
}

// Validate checks the structural guarantees of a full Tier-1 catalog.
func (c *Catalog) Validate() error {
	for _, p := range principle.All {
		got := len(c.byPrinciple[p])
		if got != SkeletonsPerPrinciple {
			return fmt.Errorf("principle %s has %d skeletons, want %d", p, got, SkeletonsPerPrinciple)
		}
		roles := map[Archetype]int{}
		for _, sk := range c.byPrinciple[p] {
			roles[sk.Archetype]++
		}
		for code, arch := range archetypeCodes {
			if roles[arch] != 3 {
				return fmt.Errorf("principle %s has %d %s (%s) skeletons, want 3", p, roles[arch], arch, code)
			}
		}
	}
	return nil
}

// SelectReward picks a skeleton to offer as a chapter reward: the
// strongest resonance principle first, skipping anything already owned,
// falling back down the ranking. seed rotates the pick within a principle.
func (c *Catalog) SelectReward(res principle.Resonance, owned map[string]bool, seed int) (*Skeleton, bool) {
	for _, p := range res.Ranked() {
		var free []*Skeleton
		for _, sk := range c.byPrinciple[p] {
			if !owned[sk.ID] {
				free = append(free, sk)
			}
		}
		if len(free) == 0 {
			continue
		}
		sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })
		if seed < 0 {
			seed = -seed
		}
		return free[seed%len(free)], true
	}
	return nil, false
}
