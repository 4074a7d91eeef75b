package soulforge

// Signal keys carried by scene choices.
const (
	SignalVoidAnchor          = "void_anchor"
	SignalAttachmentStyle     = "attachment_style"
	SignalMoralCore           = "moral_core"
	SignalDecisionPattern     = "decision_pattern"
	SignalConflictResponse    = "conflict_response"
	SignalRiskTolerance       = "risk_tolerance"
	SignalPowerVsConnection   = "power_vs_connection"
	SignalSacrificeType       = "sacrifice_type"
	SignalCourageVsCleverness = "courage_vs_cleverness"
)

// IdentitySignals is the accumulated answer profile. Later choices
// overwrite earlier ones for the same key, except void_anchor and
// moral_core which are fixed by the scene that sets them first.
type IdentitySignals struct {
	VoidAnchor          VoidAnchor `json:"void_anchor"`
	AttachmentStyle     string     `json:"attachment_style,omitempty"`
	MoralCore           string     `json:"moral_core,omitempty"`
	DecisionPattern     string     `json:"decision_pattern,omitempty"`
	ConflictResponse    string     `json:"conflict_response,omitempty"`
	RiskTolerance       string     `json:"risk_tolerance,omitempty"`
	PowerVsConnection   string     `json:"power_vs_connection,omitempty"`
	SacrificeType       string     `json:"sacrifice_type,omitempty"`
	CourageVsCleverness string     `json:"courage_vs_cleverness,omitempty"`
	// Counts tallies every value seen per key.
	Counts map[string]map[string]int `json:"counts,omitempty"`
}

// Apply folds one choice's signal tags in.
func (s *IdentitySignals) Apply(tags map[string]string) {
	if s.Counts == nil {
		s.Counts = make(map[string]map[string]int)
	}
	for k, v := range tags {
		if s.Counts[k] == nil {
			s.Counts[k] = make(map[string]int)
		}
		s.Counts[k][v]++
		switch k {
		case SignalVoidAnchor:
			if s.VoidAnchor == "" {
				s.VoidAnchor = VoidAnchor(v)
			}
		case SignalMoralCore:
			if s.MoralCore == "" {
				s.MoralCore = v
			}
		case SignalAttachmentStyle:
			s.AttachmentStyle = v
		case SignalDecisionPattern:
			s.DecisionPattern = v
		case SignalConflictResponse:
			s.ConflictResponse = v
		case SignalRiskTolerance:
			s.RiskTolerance = v
		case SignalPowerVsConnection:
			s.PowerVsConnection = v
		case SignalSacrificeType:
			s.SacrificeType = v
		case SignalCourageVsCleverness:
			s.CourageVsCleverness = v
		}
	}
}

// Count returns how often value was chosen for key.
func (s *IdentitySignals) Count(key, value string) int {
	return s.Counts[key][value]
}
