// Package skill holds the skill catalog, owned skill instances and the
// Unique Skill a player forges once.
package skill

import (
	"fmt"
	"slices"

	"github.com/amoisekai/engine/pkg/principle"
)

// Archetype is the combat role of a skeleton.
type Archetype string

const (
	ArchetypeOffensive  Archetype = "offensive"
	ArchetypeDefensive  Archetype = "defensive"
	ArchetypeSupport    Archetype = "support"
	ArchetypeSpecialist Archetype = "specialist"
)

// archetypeCodes maps the id infix to the archetype.
var archetypeCodes = map[string]Archetype{
	"off": ArchetypeOffensive,
	"def": ArchetypeDefensive,
	"sup": ArchetypeSupport,
	"spc": ArchetypeSpecialist,
}

type DamageType string

const (
	DamageStructural DamageType = "structural"
	DamageStability  DamageType = "stability"
	DamageDenial     DamageType = "denial"
	DamageNone       DamageType = "none"
)

type Delivery string

const (
	DeliveryMelee  Delivery = "melee"
	DeliveryRanged Delivery = "ranged"
	DeliveryArea   Delivery = "area"
	DeliverySelf   Delivery = "self"
	DeliveryField  Delivery = "field"
)

// Category is the five-way classification shared by unique skills and
// enemy domains.
type Category string

const (
	CategoryManifestation Category = "manifestation"
	CategoryManipulation  Category = "manipulation"
	CategoryContract      Category = "contract"
	CategoryPerception    Category = "perception"
	CategoryObfuscation   Category = "obfuscation"
)

var Categories = []Category{
	CategoryManifestation, CategoryManipulation, CategoryContract,
	CategoryPerception, CategoryObfuscation,
}

func (c Category) Valid() bool { return slices.Contains(Categories, c) }

// Skeleton is an immutable pre-built skill template.
type Skeleton struct {
	ID                 string              `yaml:"id" json:"id"`
	CatalogName        string              `yaml:"name" json:"catalog_name"`
	Principle          principle.Principle `yaml:"principle" json:"principle"`
	SecondaryPrinciple principle.Principle `yaml:"secondary,omitempty" json:"secondary_principle,omitempty"`
	Archetype          Archetype           `yaml:"-" json:"archetype"`
	DamageType         DamageType          `yaml:"damage" json:"damage_type"`
	Delivery           Delivery            `yaml:"delivery" json:"delivery"`
	Mechanic           string              `yaml:"mechanic" json:"mechanic"`
	Limitation         string              `yaml:"limitation" json:"limitation"`
	Weakness           string              `yaml:"weakness" json:"weakness"`
	Tier               int                 `yaml:"tier,omitempty" json:"tier"`
	Tags               []string            `yaml:"tags" json:"tags"`
}

// NarrativeSkin is the AI-written presentation layered over a skeleton.
// It never changes mechanics.
type NarrativeSkin struct {
	DisplayName   string `json:"display_name"`
	Description   string `json:"description"`
	DiscoveryLine string `json:"discovery_line"`
}

// PlayerSkill is an owned skill instance. Catalog skills reuse the
// skeleton id; evolved skills get fresh ids.
type PlayerSkill struct {
	ID                 string              `json:"id"`
	SkeletonID         string              `json:"skeleton_id,omitempty"`
	Skin               NarrativeSkin       `json:"skin"`
	Principle          principle.Principle `json:"principle"`
	SecondaryPrinciple principle.Principle `json:"secondary_principle,omitempty"`
	TertiaryPrinciple  principle.Principle `json:"tertiary_principle,omitempty"`
	Archetype          Archetype           `json:"archetype"`
	Category           Category            `json:"category,omitempty"`
	DamageType         DamageType          `json:"damage_type"`
	Delivery           Delivery            `json:"delivery"`
	Tier               int                 `json:"tier"`
	Mechanic           string              `json:"mechanic"`
	Limitation         string              `json:"limitation"`
	Weakness           string              `json:"weakness"`

	UsageCount        int                 `json:"usage_count"`
	Refined           bool                `json:"refined"`
	Mutated           bool                `json:"mutated"`
	MutationType      string              `json:"mutation_type,omitempty"`
	AwakenedPrinciple principle.Principle `json:"awakened_principle,omitempty"`
	Enhanced          bool                `json:"enhanced,omitempty"`
	Absorbed          bool                `json:"absorbed,omitempty"`
	AcquiredChapter   int                 `json:"acquired_chapter"`
	SourceSkillIDs    []string            `json:"source_skill_ids,omitempty"`
}

// FromSkeleton creates an owned instance of sk.
func FromSkeleton(sk *Skeleton, skin NarrativeSkin, chapter int) PlayerSkill {
	if skin.DisplayName == "" {
		skin = FallbackSkin(sk)
	}
	tier := sk.Tier
	if tier == 0 {
		tier = 1
	}
	return PlayerSkill{
		ID:                 sk.ID,
		SkeletonID:         sk.ID,
		Skin:               skin,
		Principle:          sk.Principle,
		SecondaryPrinciple: sk.SecondaryPrinciple,
		Archetype:          sk.Archetype,
		DamageType:         sk.DamageType,
		Delivery:           sk.Delivery,
		Tier:               tier,
		Mechanic:           sk.Mechanic,
		Limitation:         sk.Limitation,
		Weakness:           sk.Weakness,
		AcquiredChapter:    chapter,
	}
}

// FallbackSkin is used whenever the narrator cannot produce a skin.
func FallbackSkin(sk *Skeleton) NarrativeSkin {
	return NarrativeSkin{
		DisplayName:   sk.CatalogName,
		Description:   fmt.Sprintf("A %s technique of %s. %s", sk.Archetype, sk.Principle, sk.Mechanic),
		DiscoveryLine: fmt.Sprintf("Something in you answers to %s, and a new technique takes shape.", sk.Principle),
	}
}

// Name returns the display name, falling back to the id.
func (s *PlayerSkill) Name() string {
	if s.Skin.DisplayName != "" {
		return s.Skin.DisplayName
	}
	return s.ID
}

// Principles lists every principle the skill carries, primary first.
func (s *PlayerSkill) Principles() []principle.Principle {
	out := []principle.Principle{s.Principle}
	for _, p := range []principle.Principle{s.SecondaryPrinciple, s.TertiaryPrinciple} {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// HasPrinciple reports whether p appears anywhere on the skill.
func (s *PlayerSkill) HasPrinciple(p principle.Principle) bool {
	return slices.Contains(s.Principles(), p)
}

// SharesPrinciple reports whether a and b have any principle in common.
func SharesPrinciple(a, b *PlayerSkill) bool {
	for _, p := range a.Principles() {
		if b.HasPrinciple(p) {
			return true
		}
	}
	return false
}
