package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeRequestQueued     EventType = "request.queued"
	EventTypeRequestProcessing EventType = "request.processing"
	EventTypeRequestProgress   EventType = "request.progress"
	EventTypeRequestCompleted  EventType = "request.completed"
	EventTypeRequestFailed     EventType = "request.failed"
)

// Event is the payload published on a story's progress channel.
type Event struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"request_id,omitempty"`
	StoryID   string         `json:"story_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the pub/sub channel for a story (or "user:<id>" lock key).
func Channel(key string) string {
	return fmt.Sprintf("amoisekai:progress:%s", key)
}

// Broadcaster publishes request lifecycle and heartbeat events to Redis
// Pub/Sub.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (b *Broadcaster) PublishRequestQueued(ctx context.Context, key, requestID, requestType string) error {
	return b.publish(ctx, key, Event{
		Type:      EventTypeRequestQueued,
		RequestID: requestID,
		Data:      map[string]any{"status": "queued", "type": requestType},
	})
}

func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, key, requestID, requestType string) error {
	return b.publish(ctx, key, Event{
		Type:      EventTypeRequestProcessing,
		RequestID: requestID,
		Data:      map[string]any{"status": "processing", "type": requestType},
	})
}

// PublishProgress sends a heartbeat carrying the latest pipeline status.
func (b *Broadcaster) PublishProgress(ctx context.Context, key, requestID, status string, elapsedMS int64) error {
	return b.publish(ctx, key, Event{
		Type:      EventTypeRequestProgress,
		RequestID: requestID,
		Data:      map[string]any{"status": status, "elapsed_ms": elapsedMS},
	})
}

func (b *Broadcaster) PublishRequestCompleted(ctx context.Context, key, requestID string, result map[string]any) error {
	return b.publish(ctx, key, Event{
		Type:      EventTypeRequestCompleted,
		RequestID: requestID,
		Data:      map[string]any{"status": "completed", "result": result},
	})
}

func (b *Broadcaster) PublishRequestFailed(ctx context.Context, key, requestID, errorMsg string) error {
	return b.publish(ctx, key, Event{
		Type:      EventTypeRequestFailed,
		RequestID: requestID,
		Data:      map[string]any{"status": "failed", "error": errorMsg},
	})
}

func (b *Broadcaster) publish(ctx context.Context, key string, event Event) error {
	channel := Channel(key)
	event.StoryID = key

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
		"request_id", event.RequestID,
	)
	return nil
}

// Subscribe streams decoded events for key until ctx is done. The
// returned channel is closed when the subscription ends.
func (b *Broadcaster) Subscribe(ctx context.Context, key string) (<-chan Event, error) {
	sub := b.redisClient.Subscribe(ctx, Channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("Dropping malformed event", "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
