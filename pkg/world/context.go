package world

import (
	"fmt"
	"sort"
	"strings"
)

// Context renders the world block for the scene writer.
func (s *State) Context(reg *Registry) string {
	return strings.TrimSpace(s.Overview() + "\n" + s.VillainContext(reg))
}

// Overview renders season, empire, tower and recent events.
func (s *State) Overview() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Season %d. Empire resonance %.0f, identity anchor %.0f, enforcement %.0f, veiled will phase %d.\n",
		s.Season, s.Empire.EmpireResonance, s.Empire.IdentityAnchor, s.Empire.EnforcementIntensity, s.Empire.VeiledWillPhase)
	if s.Tower.HighestFloor > 0 {
		fmt.Fprintf(&b, "Tower: highest floor %d, instability %.0f", s.Tower.HighestFloor, s.Tower.Instability)
		if len(s.Tower.ActiveAnomalies) > 0 {
			fmt.Fprintf(&b, ", anomalies: %s", strings.Join(s.Tower.ActiveAnomalies, ", "))
		}
		b.WriteString(".\n")
	}
	if n := len(s.NarrativeEvents); n > 0 {
		recent := s.NarrativeEvents[max(n-5, 0):]
		fmt.Fprintf(&b, "Recent events: %s\n", strings.Join(recent, "; "))
	}
	return strings.TrimSpace(b.String())
}

// VillainContext lists the emissaries and generals the player has met.
func (s *State) VillainContext(reg *Registry) string {
	var lines []string
	ids := make([]string, 0, len(s.Emissaries))
	for id := range s.Emissaries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := s.Emissaries[id]
		if st.Encounters == 0 && st.State == EmissaryActive {
			continue
		}
		name := id
		if reg != nil {
			if e, ok := reg.Emissary(id); ok {
				name = e.Name
			}
		}
		lines = append(lines, fmt.Sprintf("Emissary %s: %s, sympathy %.0f, met %d times.", name, st.State, st.Sympathy, st.Encounters))
	}
	ids = ids[:0]
	for id := range s.Generals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		st := s.Generals[id]
		if st.Phase == 0 {
			continue
		}
		line := fmt.Sprintf("General %s: %s (phase %d of %d).", id, st.State, st.Phase, GeneralPhases)
		if reg != nil {
			if g, ok := reg.General(id); ok && st.Phase <= len(g.Phases) {
				line = fmt.Sprintf("General %s: %s (phase %d of %d). %s", g.Name, st.State, st.Phase, GeneralPhases, g.Phases[st.Phase-1])
			}
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
