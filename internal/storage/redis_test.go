package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/world"
)

func newTestStorage(t *testing.T, withProse bool) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var prose *ProseStore
	if withProse {
		var err error
		prose, err = OpenProseStore(filepath.Join(t.TempDir(), "prose.db"))
		require.NoError(t, err)
	}
	s := NewRedisStorage(client, prose, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStorage_StoryChapterScene(t *testing.T) {
	for _, withProse := range []bool{true, false} {
		t.Run(map[bool]string{true: "sqlite prose", false: "inline prose"}[withProse], func(t *testing.T) {
			s, mr := newTestStorage(t, withProse)
			ctx := context.Background()

			require.NoError(t, s.Ping(ctx))

			st := &story.Story{ID: "s1", UserID: "u1", Tone: "dark"}
			require.NoError(t, s.CreateStory(ctx, st))
			err := s.CreateStory(ctx, st)
			assert.True(t, apperrors.IsAlreadyExists(err), "duplicate story: %v", err)

			for _, n := range []int{2, 1} {
				ch := &story.Chapter{ID: "c" + string(rune('0'+n)), StoryID: "s1", ChapterNumber: n, Prose: "Ash fell on chapter prose."}
				require.NoError(t, s.CreateChapter(ctx, ch))
			}
			chapters, err := s.ListChapters(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, chapters, 2)
			assert.Equal(t, 1, chapters[0].ChapterNumber)
			assert.Equal(t, "Ash fell on chapter prose.", chapters[1].Prose)

			raw, err := mr.Get("amoisekai:chapter:c1")
			require.NoError(t, err)
			if withProse {
				assert.NotContains(t, raw, "Ash fell")
			} else {
				assert.Contains(t, raw, "Ash fell")
			}

			for _, n := range []int{3, 1, 2} {
				sc := &story.Scene{ChapterID: "c1", SceneNumber: n, Prose: "scene prose"}
				require.NoError(t, s.CreateScene(ctx, sc))
			}
			err = s.CreateScene(ctx, &story.Scene{ChapterID: "c1", SceneNumber: 2})
			assert.True(t, apperrors.IsAlreadyExists(err))

			scenes, err := s.ListScenes(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, scenes, 3)
			for i, sc := range scenes {
				assert.Equal(t, i+1, sc.SceneNumber)
				assert.Equal(t, "scene prose", sc.Prose)
			}

			scenes[0].ChosenChoiceID = "b"
			scenes[0].Prose = "rewritten"
			require.NoError(t, s.UpdateScene(ctx, scenes[0]))
			got, err := s.GetScene(ctx, "c1", 1)
			require.NoError(t, err)
			assert.Equal(t, "b", got.ChosenChoiceID)
			assert.Equal(t, "rewritten", got.Prose)
		})
	}
}

func TestRedisStorage_DuplicateSceneKeepsProse(t *testing.T) {
	for _, withProse := range []bool{true, false} {
		t.Run(map[bool]string{true: "sqlite prose", false: "inline prose"}[withProse], func(t *testing.T) {
			s, _ := newTestStorage(t, withProse)
			ctx := context.Background()

			require.NoError(t, s.CreateScene(ctx, &story.Scene{ChapterID: "c1", SceneNumber: 1, Prose: "original prose"}))
			err := s.CreateScene(ctx, &story.Scene{ChapterID: "c1", SceneNumber: 1, Prose: "intruder"})
			assert.True(t, apperrors.IsAlreadyExists(err), "duplicate scene: %v", err)

			got, err := s.GetScene(ctx, "c1", 1)
			require.NoError(t, err)
			assert.Equal(t, "original prose", got.Prose)
		})
	}
}

func TestRedisStorage_ScenePatchesKeepOtherFields(t *testing.T) {
	s, _ := newTestStorage(t, true)
	ctx := context.Background()

	require.NoError(t, s.CreateScene(ctx, &story.Scene{ID: "sc1", ChapterID: "c1", SceneNumber: 1, Prose: "the bridge burns"}))
	require.NoError(t, s.SetSceneChosenChoice(ctx, "c1", 1, "c2"))
	require.NoError(t, s.SetSceneCriticScore(ctx, "c1", 1, 7.5))

	got, err := s.GetScene(ctx, "c1", 1)
	require.NoError(t, err)
	assert.Equal(t, "c2", got.ChosenChoiceID)
	assert.Equal(t, 7.5, got.CriticScore)
	assert.Equal(t, "the bridge burns", got.Prose)

	err = s.SetSceneCriticScore(ctx, "c1", 9, 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRedisStorage_StalePlayerUpdateKeepsFlags(t *testing.T) {
	s, _ := newTestStorage(t, false)
	ctx := context.Background()

	require.NoError(t, s.CreatePlayer(ctx, player.New("p1", "u1", "Kael")))
	stale, err := s.GetPlayer(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.SetPlayerFlag(ctx, "p1", "met_nyxara", true))
	stale.HP = 40
	stale.SetFlag("spared_envoy", true)
	require.NoError(t, s.UpdatePlayer(ctx, stale))

	got, err := s.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, got.HP)
	assert.True(t, got.Flag("met_nyxara"))
	assert.True(t, got.Flag("spared_envoy"))

	require.NoError(t, s.SetPlayerFlag(ctx, "p1", "met_nyxara", false))
	got, err = s.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.Flag("met_nyxara"))
}

func TestRedisStorage_NotFound(t *testing.T) {
	s, _ := newTestStorage(t, true)
	ctx := context.Background()

	_, err := s.GetStory(ctx, "nope")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = s.GetScene(ctx, "c1", 4)
	assert.True(t, apperrors.IsNotFound(err))

	err = s.UpdateChapter(ctx, &story.Chapter{ID: "ghost"})
	assert.True(t, apperrors.IsNotFound(err))

	_, err = s.GetPlayerByUser(ctx, "nobody")
	assert.True(t, apperrors.IsNotFound(err))

	err = s.SetPlayerFlag(ctx, "ghost", "x", true)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRedisStorage_Player(t *testing.T) {
	s, _ := newTestStorage(t, false)
	ctx := context.Background()

	p := player.New("p1", "u1", "Kael")
	p.Instability = 42
	require.NoError(t, s.CreatePlayer(ctx, p))

	got, err := s.GetPlayerByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Kael", got.Name)
	assert.Equal(t, 42.0, got.Instability)

	require.NoError(t, s.SetPlayerFlag(ctx, "p1", "met_nyxara", true))
	flag, err := s.GetPlayerFlag(ctx, "p1", "met_nyxara")
	require.NoError(t, err)
	assert.True(t, flag)

	got.HP = 55
	require.NoError(t, s.UpdatePlayer(ctx, got))
	again, err := s.GetPlayer(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 55.0, again.HP)
	assert.True(t, again.Flag("met_nyxara"))

	require.NoError(t, s.AppendIdentityEvent(ctx, storage.IdentityEvent{PlayerID: "p1", Chapter: 1, Source: "chapter"}))
	require.NoError(t, s.AppendIdentityEvent(ctx, storage.IdentityEvent{PlayerID: "p1", Chapter: 2, Source: "scene"}))
	events, err := s.ListIdentityEvents(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].Chapter)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestRedisStorage_WorldLedgerMemory(t *testing.T) {
	s, _ := newTestStorage(t, false)
	ctx := context.Background()

	reg, err := world.DefaultRegistry()
	require.NoError(t, err)
	w := world.NewState("s1", reg)
	w.AddEvent("The northern gate closed")
	require.NoError(t, s.SaveWorld(ctx, w))
	gotW, err := s.GetWorld(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, w.NarrativeEvents, gotW.NarrativeEvents)

	l := ledger.New("s1")
	l.Merge(1, ledger.Extraction{Entities: []ledger.Entity{{Name: "Nyxara", Kind: ledger.KindCharacter}}})
	require.NoError(t, s.SaveLedger(ctx, l))
	gotL, err := s.GetLedger(ctx, "s1")
	require.NoError(t, err)
	_, ok := gotL.Lookup("Nyxara")
	assert.True(t, ok)

	require.NoError(t, s.AppendMemory(ctx, storage.MemoryEntry{StoryID: "s1", Chapter: 1, Text: "first", Embedding: []float32{1, 0}}))
	mems, err := s.ListMemories(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, []float32{1, 0}, mems[0].Embedding)
}

func TestRedisStorage_ForgeSessions(t *testing.T) {
	s, mr := newTestStorage(t, false)
	ctx := context.Background()

	sess := soulforge.NewSession("f1", "u1", time.Now())
	require.NoError(t, s.SaveForgeSession(ctx, sess))
	got, err := s.GetForgeSession(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	mr.FastForward(ForgeSessionTTL + time.Minute)
	_, err = s.GetForgeSession(ctx, "f1")
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, s.AddSkillMechanic(ctx, storage.SkillMechanic{Name: "Ember Oath", Mechanic: "binds flame"}))
	mechs, err := s.ListSkillMechanics(ctx)
	require.NoError(t, err)
	require.Len(t, mechs, 1)
	assert.Equal(t, "Ember Oath", mechs[0].Name)
}
