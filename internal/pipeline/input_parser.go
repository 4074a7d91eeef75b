package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/amoisekai/engine/pkg/prompts"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/textfilter"
)

// MatchConfidence is the confidence above which free text is treated as
// one of the offered choices.
const MatchConfidence = 0.6

var keywordTable = []struct {
	category string
	words    []string
}{
	{ActionSkillUse, []string{"use my", "activate", "invoke", "unleash", "channel"}},
	{ActionCombat, []string{"attack", "strike", "fight", "kill", "slash", "stab", "charge", "punch", "duel", "parry", "block"}},
	{ActionStealth, []string{"sneak", "hide", "creep", "quietly", "unseen", "slip past", "shadows", "stealth"}},
	{ActionSocial, []string{"talk", "ask", "persuade", "convince", "lie", "bargain", "negotiate", "greet", "threaten", "speak", "tell"}},
	{ActionSoulChoice, []string{"sacrifice", "vow", "swear", "oath", "forgive", "betray", "my soul", "give up"}},
	{ActionExploration, []string{"explore", "search", "look", "examine", "investigate", "follow", "climb", "enter", "open", "inspect"}},
}

// ParseKeywords is the offline classifier used when the model fails.
func ParseKeywords(text string, offered []story.Choice, skillName string) ParsedInput {
	folded := " " + textfilter.Fold(text) + " "
	out := ParsedInput{ActionCategory: ActionOther, PlayerIntent: strings.TrimSpace(text), Source: "keywords"}

	if skillName != "" && strings.Contains(folded, textfilter.Fold(skillName)) {
		out.ActionCategory = ActionSkillUse
		out.SkillReference = skillName
	} else {
		best := 0
		for _, row := range keywordTable {
			n := 0
			for _, w := range row.words {
				if strings.Contains(folded, " "+w) {
					n++
				}
			}
			if n > best {
				best = n
				out.ActionCategory = row.category
			}
		}
	}

	words := wordSet(text)
	for _, c := range offered {
		if conf := overlap(words, wordSet(c.Text)); conf > out.ChoiceConfidence {
			out.ChoiceConfidence = conf
			out.MatchedChoiceID = c.ID
		}
	}
	return out
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(textfilter.Fold(s)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

// overlap is the share of the smaller set found in the larger one.
func overlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	hit := 0
	for w := range small {
		if large[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(small))
}

func (p *Pipeline) inputParser(ctx context.Context, s State) (Patch, error) {
	if strings.TrimSpace(s.FreeInput) == "" {
		return nil, nil
	}
	skillName := ""
	if s.Player != nil && s.Player.UniqueSkill != nil {
		skillName = s.Player.UniqueSkill.Name
	}

	b := prompts.New("").
		WithSection("Scene so far", tail(s.PreviousProse, 1200)).
		WithList("Offered choices", choiceLines(s.OfferedChoices)).
		WithSection("Player text", s.FreeInput)
	var parsed ParsedInput
	err := p.completeJSON(ctx, NodeInputParser, prompts.InputParser,
		map[string]any{"Categories": ActionCategories, "SkillName": skillName},
		b, &parsed, []string{"action_category", "skill_reference", "player_intent", "choice_confidence", "matched_choice_id"},
		structured()...)
	if err == nil && !slices.Contains(ActionCategories, parsed.ActionCategory) {
		err = fmt.Errorf("unknown action category %q", parsed.ActionCategory)
	}
	fellBack := false
	if err != nil {
		p.fallback(NodeInputParser, err)
		parsed = ParseKeywords(s.FreeInput, s.OfferedChoices, skillName)
		fellBack = true
	} else {
		parsed.Source = "llm"
		parsed.ChoiceConfidence = min(max(parsed.ChoiceConfidence, 0), 1)
	}

	var matched *story.Choice
	if s.ChosenChoice == nil && parsed.ChoiceConfidence >= MatchConfidence {
		for i := range s.OfferedChoices {
			if s.OfferedChoices[i].ID == parsed.MatchedChoiceID {
				c := s.OfferedChoices[i]
				matched = &c
			}
		}
	}
	return func(st *State) {
		st.Parsed = &parsed
		if matched != nil {
			st.ChosenChoice = matched
		}
		if fellBack {
			st.Fallbacks = append(st.Fallbacks, NodeInputParser)
		}
	}, nil
}

func choiceLines(cs []story.Choice) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID+": "+c.Text)
	}
	return out
}
