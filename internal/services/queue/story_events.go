package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// StoryEventQueue holds operator-injected world events per story. They are
// drained into the world's narrative events when the next chapter is
// planned.
type StoryEventQueue struct {
	client *Client
}

func NewStoryEventQueue(client *Client) *StoryEventQueue {
	return &StoryEventQueue{client: client}
}

func storyEventsKey(storyID string) string {
	return fmt.Sprintf("amoisekai:story-events:%s", storyID)
}

// Enqueue adds a story event to the end of the queue for a story
func (q *StoryEventQueue) Enqueue(ctx context.Context, storyID, event string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return fmt.Errorf("story event is empty")
	}
	if err := q.client.rdb.RPush(ctx, storyEventsKey(storyID), event).Err(); err != nil {
		q.client.logger.Error("Failed to enqueue story event", "error", err, "story_id", storyID)
		return fmt.Errorf("failed to enqueue story event: %w", err)
	}
	return nil
}

// Dequeue atomically removes and returns all events for a story.
func (q *StoryEventQueue) Dequeue(ctx context.Context, storyID string) ([]string, error) {
	key := storyEventsKey(storyID)
	var rng *redis.StringSliceCmd
	_, err := q.client.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		rng = p.LRange(ctx, key, 0, -1)
		p.Del(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to dequeue story events: %w", err)
	}
	events := rng.Val()
	if len(events) > 0 {
		q.client.logger.Debug("Dequeued story events", "story_id", storyID, "count", len(events))
	}
	return events, nil
}

// Peek returns up to limit events without removing them. limit <= 0
// returns all.
func (q *StoryEventQueue) Peek(ctx context.Context, storyID string, limit int) ([]string, error) {
	end := int64(limit - 1)
	if limit <= 0 {
		end = -1
	}
	events, err := q.client.rdb.LRange(ctx, storyEventsKey(storyID), 0, end).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to peek story events: %w", err)
	}
	return events, nil
}

// Depth returns the number of story events queued for a story
func (q *StoryEventQueue) Depth(ctx context.Context, storyID string) (int, error) {
	count, err := q.client.rdb.LLen(ctx, storyEventsKey(storyID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
