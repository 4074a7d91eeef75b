package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/pkg/ledger"
	"github.com/amoisekai/engine/pkg/player"
	"github.com/amoisekai/engine/pkg/soulforge"
	"github.com/amoisekai/engine/pkg/storage"
	"github.com/amoisekai/engine/pkg/story"
	"github.com/amoisekai/engine/pkg/world"
)

// ForgeSessionTTL bounds how long an unfinished onboarding survives.
const ForgeSessionTTL = 24 * time.Hour

// RedisStorage implements storage.Storage with Redis for structured
// records and an optional SQLite ProseStore for prose blobs. Without a
// ProseStore prose stays inline in the Redis records.
type RedisStorage struct {
	client *redis.Client
	prose  *ProseStore
	logger *slog.Logger
	prefix string
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// Config holds the key prefix used for every record.
type Config struct {
	KeyPrefix string
}

func NewRedisStorage(client *redis.Client, prose *ProseStore, logger *slog.Logger, cfg Config) *RedisStorage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "amoisekai"
	}
	return &RedisStorage{client: client, prose: prose, logger: logger, prefix: cfg.KeyPrefix}
}

func (r *RedisStorage) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "redis ping failed")
	}
	if r.prose != nil {
		if err := r.prose.Ping(ctx); err != nil {
			return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, "prose store ping failed")
		}
	}
	return nil
}

// Close closes the prose store. The Redis client is owned by the caller.
func (r *RedisStorage) Close() error {
	return r.prose.Close()
}

func notFound(kind, id string) error {
	return apperrors.WrapWithCodef(fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound), apperrors.CodeNotFound, "%s %s not found", kind, id)
}

func (r *RedisStorage) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrapf(err, "marshal %s", key)
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		r.logger.Error("Redis SET failed", "key", key, "error", err)
		return apperrors.Wrapf(err, "save %s", key)
	}
	return nil
}

func (r *RedisStorage) getJSON(ctx context.Context, key, kind, id string, v any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound(kind, id)
	}
	if err != nil {
		return apperrors.Wrapf(err, "load %s %s", kind, id)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.Wrapf(err, "decode %s %s", kind, id)
	}
	return nil
}

func (r *RedisStorage) mustExist(ctx context.Context, key, kind, id string) error {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return apperrors.Wrapf(err, "check %s %s", kind, id)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}

// Stories

func (r *RedisStorage) CreateStory(ctx context.Context, s *story.Story) error {
	if s == nil || s.ID == "" {
		return apperrors.InvalidArgument("story requires an id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return apperrors.Wrap(err, "marshal story")
	}
	ok, err := r.client.SetNX(ctx, r.key("story", s.ID), data, 0).Result()
	if err != nil {
		return apperrors.Wrap(err, "create story")
	}
	if !ok {
		return apperrors.AlreadyExists("story " + s.ID + " already exists")
	}
	return nil
}

func (r *RedisStorage) GetStory(ctx context.Context, id string) (*story.Story, error) {
	var s story.Story
	if err := r.getJSON(ctx, r.key("story", id), "story", id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStorage) UpdateStory(ctx context.Context, s *story.Story) error {
	key := r.key("story", s.ID)
	if err := r.mustExist(ctx, key, "story", s.ID); err != nil {
		return err
	}
	s.UpdatedAt = time.Now().UTC()
	return r.setJSON(ctx, key, s, 0)
}

// Chapters

func (r *RedisStorage) putProse(ctx context.Context, kind, id string, prose *string) error {
	if r.prose == nil {
		return nil
	}
	if err := r.prose.Put(ctx, kind, id, *prose); err != nil {
		return apperrors.Wrap(err, "save prose")
	}
	*prose = ""
	return nil
}

func (r *RedisStorage) fillProse(ctx context.Context, kind, id string, prose *string) error {
	if r.prose == nil || *prose != "" {
		return nil
	}
	body, err := r.prose.Get(ctx, kind, id)
	if err != nil {
		return apperrors.Wrap(err, "load prose")
	}
	*prose = body
	return nil
}

func (r *RedisStorage) saveChapter(ctx context.Context, c *story.Chapter) error {
	stored := *c
	if err := r.putProse(ctx, ProseChapter, c.ID, &stored.Prose); err != nil {
		return err
	}
	if err := r.setJSON(ctx, r.key("chapter", c.ID), &stored, 0); err != nil {
		return err
	}
	return r.client.ZAdd(ctx, r.key("story", c.StoryID, "chapters"), redis.Z{
		Score:  float64(c.ChapterNumber),
		Member: c.ID,
	}).Err()
}

func (r *RedisStorage) CreateChapter(ctx context.Context, c *story.Chapter) error {
	if c == nil || c.ID == "" {
		return apperrors.InvalidArgument("chapter requires an id")
	}
	n, err := r.client.Exists(ctx, r.key("chapter", c.ID)).Result()
	if err != nil {
		return apperrors.Wrap(err, "check chapter")
	}
	if n > 0 {
		return apperrors.AlreadyExists("chapter " + c.ID + " already exists")
	}
	return r.saveChapter(ctx, c)
}

func (r *RedisStorage) GetChapter(ctx context.Context, id string) (*story.Chapter, error) {
	var c story.Chapter
	if err := r.getJSON(ctx, r.key("chapter", id), "chapter", id, &c); err != nil {
		return nil, err
	}
	if err := r.fillProse(ctx, ProseChapter, id, &c.Prose); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *RedisStorage) UpdateChapter(ctx context.Context, c *story.Chapter) error {
	if err := r.mustExist(ctx, r.key("chapter", c.ID), "chapter", c.ID); err != nil {
		return err
	}
	c.UpdatedAt = time.Now().UTC()
	return r.saveChapter(ctx, c)
}

func (r *RedisStorage) ListChapters(ctx context.Context, storyID string) ([]*story.Chapter, error) {
	ids, err := r.client.ZRange(ctx, r.key("story", storyID, "chapters"), 0, -1).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "list chapters")
	}
	out := make([]*story.Chapter, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetChapter(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Scenes

func (r *RedisStorage) sceneKey(chapterID string, n int) string {
	return r.key("chapter", chapterID, "scene", strconv.Itoa(n))
}

func sceneBlobID(chapterID string, n int) string {
	return chapterID + "/" + strconv.Itoa(n)
}

func (r *RedisStorage) CreateScene(ctx context.Context, s *story.Scene) error {
	if s == nil || s.ChapterID == "" || s.SceneNumber < 1 {
		return apperrors.InvalidArgument("scene requires a chapter id and a positive number")
	}
	key := r.sceneKey(s.ChapterID, s.SceneNumber)

	// Claim the key before the prose blob is written so a losing
	// duplicate never touches the stored prose.
	stored := *s
	prose := stored.Prose
	if r.prose != nil {
		stored.Prose = ""
	}
	data, err := json.Marshal(&stored)
	if err != nil {
		return apperrors.Wrap(err, "marshal scene")
	}
	ok, err := r.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return apperrors.Wrap(err, "create scene")
	}
	if !ok {
		return apperrors.AlreadyExists(fmt.Sprintf("scene %d of chapter %s already exists", s.SceneNumber, s.ChapterID))
	}
	if err := r.putProse(ctx, ProseScene, sceneBlobID(s.ChapterID, s.SceneNumber), &prose); err != nil {
		_ = r.client.Del(ctx, key).Err()
		return err
	}
	return r.client.ZAdd(ctx, r.key("chapter", s.ChapterID, "scenes"), redis.Z{
		Score:  float64(s.SceneNumber),
		Member: s.SceneNumber,
	}).Err()
}

func (r *RedisStorage) GetScene(ctx context.Context, chapterID string, number int) (*story.Scene, error) {
	var s story.Scene
	id := sceneBlobID(chapterID, number)
	if err := r.getJSON(ctx, r.sceneKey(chapterID, number), "scene", id, &s); err != nil {
		return nil, err
	}
	if err := r.fillProse(ctx, ProseScene, id, &s.Prose); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStorage) UpdateScene(ctx context.Context, s *story.Scene) error {
	key := r.sceneKey(s.ChapterID, s.SceneNumber)
	id := sceneBlobID(s.ChapterID, s.SceneNumber)
	if err := r.mustExist(ctx, key, "scene", id); err != nil {
		return err
	}
	stored := *s
	if err := r.putProse(ctx, ProseScene, id, &stored.Prose); err != nil {
		return err
	}
	return r.setJSON(ctx, key, &stored, 0)
}

// patchScene applies fn to the stored scene record inside an optimistic
// transaction. Prose lives outside the record and is left alone.
func (r *RedisStorage) patchScene(ctx context.Context, chapterID string, number int, fn func(*story.Scene)) error {
	key := r.sceneKey(chapterID, number)
	id := sceneBlobID(chapterID, number)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound("scene", id)
		}
		if err != nil {
			return err
		}
		var sc story.Scene
		if err := json.Unmarshal(data, &sc); err != nil {
			return err
		}
		fn(&sc)
		enc, err := json.Marshal(&sc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			return nil
		})
		return err
	}
	return r.watch(ctx, key, "update scene "+id, txf)
}

// SetSceneCriticScore records a background critic verdict without
// touching the rest of the scene.
func (r *RedisStorage) SetSceneCriticScore(ctx context.Context, chapterID string, number int, score float64) error {
	return r.patchScene(ctx, chapterID, number, func(sc *story.Scene) { sc.CriticScore = score })
}

// SetSceneChosenChoice records which choice the player took out of a scene.
func (r *RedisStorage) SetSceneChosenChoice(ctx context.Context, chapterID string, number int, choiceID string) error {
	return r.patchScene(ctx, chapterID, number, func(sc *story.Scene) { sc.ChosenChoiceID = choiceID })
}

func (r *RedisStorage) ListScenes(ctx context.Context, chapterID string) ([]*story.Scene, error) {
	members, err := r.client.ZRange(ctx, r.key("chapter", chapterID, "scenes"), 0, -1).Result()
	if err != nil {
		return nil, apperrors.Wrap(err, "list scenes")
	}
	out := make([]*story.Scene, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, apperrors.Wrapf(err, "bad scene index %q", m)
		}
		s, err := r.GetScene(ctx, chapterID, n)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Players are persisted through their map adapter.

func (r *RedisStorage) encodePlayer(p *player.Player) ([]byte, error) {
	m, err := p.ToMap()
	if err != nil {
		return nil, apperrors.Wrap(err, "map player")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, apperrors.Wrap(err, "marshal player")
	}
	return data, nil
}

func (r *RedisStorage) savePlayer(ctx context.Context, p *player.Player) error {
	data, err := r.encodePlayer(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key("player", p.ID), data, 0).Err(); err != nil {
		return apperrors.Wrap(err, "save player")
	}
	return r.client.Set(ctx, r.key("user", p.UserID, "player"), p.ID, 0).Err()
}

func decodePlayer(data []byte) (*player.Player, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return player.FromMap(m)
}

// watch runs txf under WATCH on key, retrying a few times on conflict.
func (r *RedisStorage) watch(ctx context.Context, key, op string, txf func(*redis.Tx) error) error {
	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && apperrors.GetCode(err) != apperrors.CodeNotFound {
			return apperrors.Wrap(err, op)
		}
		return err
	}
	return apperrors.Aborted(op + " kept conflicting")
}

func (r *RedisStorage) CreatePlayer(ctx context.Context, p *player.Player) error {
	if p == nil || p.ID == "" {
		return apperrors.InvalidArgument("player requires an id")
	}
	return r.savePlayer(ctx, p)
}

func (r *RedisStorage) GetPlayer(ctx context.Context, id string) (*player.Player, error) {
	var m map[string]any
	if err := r.getJSON(ctx, r.key("player", id), "player", id, &m); err != nil {
		return nil, err
	}
	p, err := player.FromMap(m)
	if err != nil {
		return nil, apperrors.Wrapf(err, "decode player %s", id)
	}
	return p, nil
}

func (r *RedisStorage) GetPlayerByUser(ctx context.Context, userID string) (*player.Player, error) {
	id, err := r.client.Get(ctx, r.key("user", userID, "player")).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound("player for user", userID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "lookup player")
	}
	return r.GetPlayer(ctx, id)
}

// UpdatePlayer writes p over the stored record. Flags stored since p was
// loaded and absent from p are carried over, so a snapshot never drops a
// flag set through SetPlayerFlag.
func (r *RedisStorage) UpdatePlayer(ctx context.Context, p *player.Player) error {
	key := r.key("player", p.ID)
	p.UpdatedAt = time.Now().UTC()
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound("player", p.ID)
		}
		if err != nil {
			return err
		}
		current, err := decodePlayer(data)
		if err != nil {
			return err
		}
		out := *p
		out.Flags = make(map[string]bool, len(current.Flags)+len(p.Flags))
		for k, v := range current.Flags {
			out.Flags[k] = v
		}
		for k, v := range p.Flags {
			out.Flags[k] = v
		}
		enc, err := r.encodePlayer(&out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			pipe.Set(ctx, r.key("user", p.UserID, "player"), p.ID, 0)
			return nil
		})
		if err == nil {
			p.Flags = out.Flags
		}
		return err
	}
	return r.watch(ctx, key, "update player", txf)
}

func (r *RedisStorage) AppendIdentityEvent(ctx context.Context, ev storage.IdentityEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return apperrors.Wrap(err, "marshal identity event")
	}
	return r.client.RPush(ctx, r.key("player", ev.PlayerID, "identity-events"), data).Err()
}

func (r *RedisStorage) ListIdentityEvents(ctx context.Context, playerID string) ([]storage.IdentityEvent, error) {
	return listJSON[storage.IdentityEvent](ctx, r.client, r.key("player", playerID, "identity-events"))
}

func (r *RedisStorage) GetPlayerFlag(ctx context.Context, playerID, flag string) (bool, error) {
	p, err := r.GetPlayer(ctx, playerID)
	if err != nil {
		return false, err
	}
	return p.Flag(flag), nil
}

// SetPlayerFlag updates one flag inside an optimistic transaction so a
// concurrent UpdatePlayer is never overwritten with stale data.
func (r *RedisStorage) SetPlayerFlag(ctx context.Context, playerID, flag string, value bool) error {
	key := r.key("player", playerID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound("player", playerID)
		}
		if err != nil {
			return err
		}
		p, err := decodePlayer(data)
		if err != nil {
			return err
		}
		p.SetFlag(flag, value)
		enc, err := r.encodePlayer(p)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, enc, 0)
			return nil
		})
		return err
	}
	return r.watch(ctx, key, "set player flag", txf)
}

// World and ledger

func (r *RedisStorage) GetLedger(ctx context.Context, storyID string) (*ledger.Ledger, error) {
	var l ledger.Ledger
	if err := r.getJSON(ctx, r.key("story", storyID, "ledger"), "ledger", storyID, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *RedisStorage) SaveLedger(ctx context.Context, l *ledger.Ledger) error {
	return r.setJSON(ctx, r.key("story", l.StoryID, "ledger"), l, 0)
}

func (r *RedisStorage) GetWorld(ctx context.Context, storyID string) (*world.State, error) {
	var m map[string]any
	if err := r.getJSON(ctx, r.key("story", storyID, "world"), "world", storyID, &m); err != nil {
		return nil, err
	}
	w, err := world.FromMap(m)
	if err != nil {
		return nil, apperrors.Wrapf(err, "decode world %s", storyID)
	}
	return w, nil
}

func (r *RedisStorage) SaveWorld(ctx context.Context, w *world.State) error {
	w.UpdatedAt = time.Now().UTC()
	m, err := w.ToMap()
	if err != nil {
		return apperrors.Wrap(err, "map world")
	}
	return r.setJSON(ctx, r.key("story", w.StoryID, "world"), m, 0)
}

// Memory

func (r *RedisStorage) AppendMemory(ctx context.Context, e storage.MemoryEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return apperrors.Wrap(err, "marshal memory")
	}
	return r.client.RPush(ctx, r.key("story", e.StoryID, "memories"), data).Err()
}

func (r *RedisStorage) ListMemories(ctx context.Context, storyID string) ([]storage.MemoryEntry, error) {
	return listJSON[storage.MemoryEntry](ctx, r.client, r.key("story", storyID, "memories"))
}

// Soul forge

func (r *RedisStorage) SaveForgeSession(ctx context.Context, s *soulforge.Session) error {
	return r.setJSON(ctx, r.key("forge", s.ID), s, ForgeSessionTTL)
}

func (r *RedisStorage) GetForgeSession(ctx context.Context, id string) (*soulforge.Session, error) {
	var s soulforge.Session
	if err := r.getJSON(ctx, r.key("forge", id), "forge session", id, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStorage) DeleteForgeSession(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key("forge", id)).Err()
}

func (r *RedisStorage) AddSkillMechanic(ctx context.Context, m storage.SkillMechanic) error {
	data, err := json.Marshal(m)
	if err != nil {
		return apperrors.Wrap(err, "marshal skill mechanic")
	}
	return r.client.RPush(ctx, r.key("skill-mechanics"), data).Err()
}

func (r *RedisStorage) ListSkillMechanics(ctx context.Context) ([]storage.SkillMechanic, error) {
	return listJSON[storage.SkillMechanic](ctx, r.client, r.key("skill-mechanics"))
}

func listJSON[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	raw, err := client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, apperrors.Wrapf(err, "list %s", key)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, apperrors.Wrapf(err, "decode %s", key)
		}
		out = append(out, v)
	}
	return out, nil
}
