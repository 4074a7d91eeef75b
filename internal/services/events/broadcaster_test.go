package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	b := NewBroadcaster(rdb, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := b.Subscribe(ctx, "story-1")
	require.NoError(t, err)

	require.NoError(t, b.PublishRequestProcessing(ctx, "story-1", "req-1", "scene"))
	require.NoError(t, b.PublishProgress(ctx, "story-1", "req-1", "writing scene 2", 8000))
	require.NoError(t, b.PublishRequestCompleted(ctx, "story-1", "req-1", map[string]any{"scene_number": 2}))

	want := []EventType{EventTypeRequestProcessing, EventTypeRequestProgress, EventTypeRequestCompleted}
	for _, w := range want {
		select {
		case ev := <-sub:
			assert.Equal(t, w, ev.Type)
			assert.Equal(t, "req-1", ev.RequestID)
			assert.Equal(t, "story-1", ev.StoryID)
			if w == EventTypeRequestProgress {
				assert.Equal(t, "writing scene 2", ev.Data["status"])
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", w)
		}
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "amoisekai:progress:abc", Channel("abc"))
}
