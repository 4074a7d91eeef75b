// Package ledger keeps a per-story record of named entities and facts so
// the writer stays consistent about who and what it has already introduced.
package ledger

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/amoisekai/engine/pkg/textfilter"
)

type Kind string

const (
	KindCharacter Kind = "character"
	KindPlace     Kind = "place"
	KindFaction   Kind = "faction"
	KindItem      Kind = "item"
	KindCreature  Kind = "creature"
	KindOther     Kind = "other"
)

var Kinds = []Kind{KindCharacter, KindPlace, KindFaction, KindItem, KindCreature, KindOther}

// ParseKind maps free text from the extractor onto a known kind.
func ParseKind(s string) Kind {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "npc", "person", "companion", "villain":
		return KindCharacter
	case "location", "zone", "city":
		return KindPlace
	case "organization", "organisation", "guild":
		return KindFaction
	case "weapon", "artifact", "artefact", "relic":
		return KindItem
	case "monster", "beast", "enemy":
		return KindCreature
	default:
		if slices.Contains(Kinds, k) {
			return k
		}
		return KindOther
	}
}

const (
	MaxFacts        = 60
	MaxContextItems = 12
)

type Entity struct {
	Name             string `json:"name"`
	Kind             Kind   `json:"kind"`
	Description      string `json:"description,omitempty"`
	FirstSeenChapter int    `json:"first_seen_chapter"`
	LastSeenChapter  int    `json:"last_seen_chapter"`
	Mentions         int    `json:"mentions"`
}

type Fact struct {
	Text    string `json:"text"`
	Chapter int    `json:"chapter"`
}

// Ledger is keyed by a folded name plus kind, so "Kael Morrow" and
// "kael  morrow" are the same character.
type Ledger struct {
	StoryID  string             `json:"story_id"`
	Entities map[string]*Entity `json:"entities"`
	Facts    []Fact             `json:"facts"`
}

func New(storyID string) *Ledger {
	return &Ledger{StoryID: storyID, Entities: map[string]*Entity{}, Facts: []Fact{}}
}

// Key is the dedup key for an entity.
func Key(name string, kind Kind) string {
	return string(kind) + ":" + textfilter.Fold(name)
}

// Extraction is what the background extractor returns for one chapter.
type Extraction struct {
	Entities []Entity `json:"entities"`
	Facts    []string `json:"facts"`
}

// Merge folds an extraction for chapter into the ledger and returns the
// number of new entities.
func (l *Ledger) Merge(chapter int, ex Extraction) int {
	if l.Entities == nil {
		l.Entities = map[string]*Entity{}
	}
	added := 0
	for _, e := range ex.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		kind := ParseKind(string(e.Kind))
		key := Key(name, kind)
		if cur, ok := l.Entities[key]; ok {
			cur.Mentions++
			cur.LastSeenChapter = max(cur.LastSeenChapter, chapter)
			cur.FirstSeenChapter = min(cur.FirstSeenChapter, chapter)
			if cur.Description == "" {
				cur.Description = strings.TrimSpace(e.Description)
			}
			continue
		}
		l.Entities[key] = &Entity{
			Name:             name,
			Kind:             kind,
			Description:      strings.TrimSpace(e.Description),
			FirstSeenChapter: chapter,
			LastSeenChapter:  chapter,
			Mentions:         1,
		}
		added++
	}
	for _, f := range ex.Facts {
		l.AddFact(chapter, f)
	}
	return added
}

// AddFact appends a fact unless an equivalent one is already recorded.
// The oldest facts drop once MaxFacts is exceeded.
func (l *Ledger) AddFact(chapter int, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	folded := textfilter.Fold(text)
	for _, f := range l.Facts {
		if textfilter.Fold(f.Text) == folded {
			return false
		}
	}
	l.Facts = append(l.Facts, Fact{Text: text, Chapter: chapter})
	if n := len(l.Facts); n > MaxFacts {
		l.Facts = slices.Clone(l.Facts[n-MaxFacts:])
	}
	return true
}

// Lookup finds an entity by name regardless of kind.
func (l *Ledger) Lookup(name string) (*Entity, bool) {
	folded := textfilter.Fold(name)
	for _, e := range l.Entities {
		if textfilter.Fold(e.Name) == folded {
			return e, true
		}
	}
	return nil, false
}

// Ranked lists entities most recently seen first, then by mentions.
func (l *Ledger) Ranked() []*Entity {
	out := make([]*Entity, 0, len(l.Entities))
	for _, e := range l.Entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastSeenChapter != b.LastSeenChapter {
			return a.LastSeenChapter > b.LastSeenChapter
		}
		if a.Mentions != b.Mentions {
			return a.Mentions > b.Mentions
		}
		return a.Name < b.Name
	})
	return out
}

// Context renders the ledger block for the writer.
func (l *Ledger) Context() string {
	if l == nil || (len(l.Entities) == 0 && len(l.Facts) == 0) {
		return ""
	}
	var b strings.Builder
	ranked := l.Ranked()
	if len(ranked) > MaxContextItems {
		ranked = ranked[:MaxContextItems]
	}
	if len(ranked) > 0 {
		b.WriteString("Known names:\n")
		for _, e := range ranked {
			fmt.Fprintf(&b, "- %s (%s, since chapter %d)", e.Name, e.Kind, e.FirstSeenChapter)
			if e.Description != "" {
				fmt.Fprintf(&b, ": %s", e.Description)
			}
			b.WriteString("\n")
		}
	}
	facts := l.Facts
	if len(facts) > MaxContextItems {
		facts = facts[len(facts)-MaxContextItems:]
	}
	if len(facts) > 0 {
		b.WriteString("Established facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
