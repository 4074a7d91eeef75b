package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/pipeline"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/skill"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/world"
)

// ForgeRequest names the soul being forged.
type ForgeRequest struct {
	SessionID string
	Name      string
	Gender    string
	Backstory string
	Progress  ProgressReporter
}

// StartSoulForge opens an onboarding session and returns it with its
// first scene.
func (e *Engine) StartSoulForge(ctx context.Context, userID string) (*soulforge.Session, *soulforge.Scene, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, apperrors.InvalidArgument("user_id is required")
	}
	s := soulforge.NewSession(uuid.NewString(), userID, e.now())
	sc, err := s.Current(e.scenes)
	if err != nil {
		return nil, nil, wrap(err, "failed to load first scene")
	}
	if err := e.store.SaveForgeSession(ctx, s); err != nil {
		return nil, nil, wrap(err, "failed to save session")
	}
	e.logger.Info("Soul forge started", "session_id", s.ID, "user_id", userID)
	return s, sc, nil
}

// SubmitForgeChoice answers the current scene and returns the next. After
// the convergent scene the session waits for the soul fragment.
func (e *Engine) SubmitForgeChoice(ctx context.Context, sessionID string, index, responseTimeMS, hoverCount int) (*soulforge.Session, *soulforge.Scene, error) {
	s, err := e.store.GetForgeSession(ctx, sessionID)
	if err != nil {
		return nil, nil, wrap(err, "failed to load session")
	}
	next, err := s.SubmitChoice(e.scenes, index, responseTimeMS, hoverCount)
	if err != nil {
		return nil, nil, wrap(err, "failed to submit choice")
	}
	if err := e.store.SaveForgeSession(ctx, s); err != nil {
		return nil, nil, wrap(err, "failed to save session")
	}
	return s, next, nil
}

// SubmitFragment stores the soul fragment. The result reports whether the
// session is ready to forge.
func (e *Engine) SubmitFragment(ctx context.Context, sessionID string, f soulforge.Fragment) (bool, error) {
	s, err := e.store.GetForgeSession(ctx, sessionID)
	if err != nil {
		return false, wrap(err, "failed to load session")
	}
	if err := s.SubmitFragment(f); err != nil {
		return false, wrap(err, "failed to submit fragment")
	}
	if err := e.store.SaveForgeSession(ctx, s); err != nil {
		return false, wrap(err, "failed to save session")
	}
	return s.ReadyToForge(), nil
}

// Forge creates the player from a finished session. The unique skill is
// generated with uniqueness retries; the last candidate is kept when every
// retry clashes, and the archetype fallback is used when none was produced.
func (e *Engine) Forge(ctx context.Context, req ForgeRequest) (*player.Player, error) {
	name := strings.TrimSpace(req.Name)
	if req.SessionID == "" || name == "" {
		return nil, apperrors.InvalidArgument("session_id and name are required")
	}
	s, err := e.store.GetForgeSession(ctx, req.SessionID)
	if err != nil {
		return nil, wrap(err, "failed to load session")
	}
	if !s.ReadyToForge() {
		return nil, apperrors.FailedPreconditionf("session is in phase %s", s.Phase)
	}
	if _, err := e.store.GetPlayerByUser(ctx, s.UserID); err == nil {
		return nil, apperrors.AlreadyExists("user already has a player")
	} else if codeFor(err) != apperrors.CodeNotFound {
		return nil, wrap(err, "failed to load player")
	}
	report(req.Progress, StatusForging)
	log := e.logger.With("session_id", s.ID, "user_id", s.UserID)

	fp := soulforge.BehavioralFingerprint{}
	if s.Fingerprint != nil {
		fp = *s.Fingerprint
	}
	fragment := ""
	if s.Fragment != nil {
		fragment = s.Fragment.Text
	}
	archetype := soulforge.DeriveArchetype(&s.Signals, fp)
	dna := soulforge.DeriveDNA(&s.Signals)

	in := pipeline.ForgeInput{
		Name:        name,
		Backstory:   strings.TrimSpace(req.Backstory),
		Signals:     s.Signals,
		Fingerprint: fp,
		Fragment:    fragment,
	}
	forged, vec, ok := e.forgeUnique(ctx, in, log)
	var unique skill.UniqueSkill
	if ok {
		unique = skill.NewSeed(forged.UniqueSkill)
		if len(dna) == 0 {
			dna = forged.DNAAffinity
		}
	} else {
		log.Warn("Forge produced no skill, using fallback", "archetype", archetype)
		unique = soulforge.FallbackSkill(archetype, s.Signals.VoidAnchor)
		unique.UniquenessScore = 1
	}

	p := player.New(uuid.NewString(), s.UserID, name)
	p.Gender = strings.TrimSpace(req.Gender)
	p.Backstory = in.Backstory
	p.Archetype = archetype
	p.DNAAffinity = dna
	p.UniqueSkill = &unique
	p.SeedIdentity = seedIdentity(s.Signals, fp, in.Backstory)
	p.CurrentIdentity = p.SeedIdentity
	p.PrincipleResonance = soulforge.ComputeResonance(fp, dna, s.Signals.VoidAnchor, world.SeasonFor(1))
	p.Resonance = p.PrincipleResonance.Clone()
	p.ProtoSovereign = soulforge.ProtoSovereign(p.PrincipleResonance)
	if err := p.Validate(); err != nil {
		return nil, apperrors.WrapWithCode(err, apperrors.CodeInternal, "forged player is invalid")
	}

	if err := e.store.CreatePlayer(ctx, p); err != nil {
		return nil, wrap(err, "failed to create player")
	}
	if err := e.store.AddSkillMechanic(ctx, storage.SkillMechanic{
		PlayerID:  p.ID,
		Name:      unique.Name,
		Mechanic:  unique.Mechanic,
		Embedding: vec,
	}); err != nil {
		log.Warn("Failed to store skill mechanic", "error", err)
	}
	s.MarkForged(p.ID)
	if err := e.store.SaveForgeSession(ctx, s); err != nil {
		log.Warn("Failed to close session", "error", err)
	}
	log.Info("Soul forged",
		"player_id", p.ID,
		"archetype", p.Archetype,
		"skill", unique.Name,
		"uniqueness", unique.UniquenessScore,
		"proto_sovereign", p.ProtoSovereign)
	return p, nil
}

// forgeUnique asks for up to 1+MaxForgeRetries candidates and returns the
// first that is unique by name and by embedding.
func (e *Engine) forgeUnique(ctx context.Context, in pipeline.ForgeInput, log *slog.Logger) (pipeline.Forged, []float32, bool) {
	stored, err := e.store.ListSkillMechanics(ctx)
	if err != nil {
		log.Warn("Failed to list stored skills", "error", err)
	}
	names := make([]string, 0, len(stored))
	vecs := make([][]float32, 0, len(stored))
	for _, m := range stored {
		names = append(names, m.Name)
		if len(m.Embedding) > 0 {
			vecs = append(vecs, m.Embedding)
		}
	}

	var (
		last     pipeline.Forged
		lastVec  []float32
		have     bool
		rejected []string
	)
	for attempt := 0; attempt <= soulforge.MaxForgeRetries; attempt++ {
		in.Directive = soulforge.RetryDirective(attempt, rejected, e.roller)
		f, err := e.pipe.ForgeSkill(ctx, in)
		if err != nil {
			log.Warn("Forge attempt failed", "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		vec, err := e.embedder.Embed(ctx, f.Name+"\n"+f.Mechanic)
		if err != nil {
			log.Warn("Embedding forged skill failed", "error", err)
		}
		f.UniquenessScore = soulforge.UniquenessScore(vec, vecs)
		last, lastVec, have = f, vec, true

		if clash, ok := soulforge.SimilarName(f.Name, names); ok {
			log.Warn("Forged name clashes", "name", f.Name, "existing", clash)
			rejected = append(rejected, f.Name)
			continue
		}
		if f.UniquenessScore < soulforge.MinUniqueness {
			log.Warn("Forged mechanic too similar", "name", f.Name, "uniqueness", f.UniquenessScore)
			rejected = append(rejected, f.Name)
			continue
		}
		return f, vec, true
	}
	return last, lastVec, have
}

// seedIdentity distils the onboarding answers into the immutable seed.
func seedIdentity(sig soulforge.IdentitySignals, fp soulforge.BehavioralFingerprint, backstory string) player.Identity {
	var values []string
	for _, v := range []string{sig.MoralCore, sig.AttachmentStyle, sig.SacrificeType} {
		if v != "" {
			values = append(values, v)
		}
	}
	traits := fp.Traits()
	sort.SliceStable(traits, func(i, j int) bool { return traits[i].Value > traits[j].Value })
	var top []string
	for _, t := range traits[:3] {
		if t.Value > 0 {
			top = append(top, t.Name)
		}
	}
	return player.Identity{
		CoreValues: values,
		Traits:     top,
		Motivation: sig.PowerVsConnection,
		Fear:       string(sig.VoidAnchor),
		Origin:     backstory,
	}
}
