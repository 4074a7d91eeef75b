package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/amoisekai/engine/internal/services/events"
	"github.com/amoisekai/engine/internal/services/queue"
	queuePkg "github.com/amoisekai/engine/pkg/queue"
)

// RequestTimeout is max time to wait for a request to finish
const RequestTimeout = 60 * time.Second

// RequestFailedError is returned when the worker publishes a failure.
type RequestFailedError struct {
	RequestID string
	Message   string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("request %s failed: %s", e.RequestID, e.Message)
}

// Submit enqueues req and waits for its completion event. The
// subscription is opened first so no event is missed.
func Submit(ctx context.Context, q *queue.RequestQueue, b *events.Broadcaster, req *queuePkg.Request, timeout time.Duration) (map[string]any, error) {
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub, err := b.Subscribe(ctx, req.LockKey())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	if err := q.EnqueueRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", req.Type, err)
	}
	return AwaitResult(ctx, sub, req.RequestID)
}

// AwaitResult waits for the completed or failed event of requestID.
func AwaitResult(ctx context.Context, sub <-chan events.Event, requestID string) (map[string]any, error) {
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("timeout waiting for request %s", requestID)
			}
			return nil, ctx.Err()
		case ev, ok := <-sub:
			if !ok {
				return nil, fmt.Errorf("subscription closed waiting for request %s", requestID)
			}
			if ev.RequestID != requestID {
				continue
			}
			switch ev.Type {
			case events.EventTypeRequestCompleted:
				result, _ := ev.Data["result"].(map[string]any)
				return result, nil
			case events.EventTypeRequestFailed:
				msg, _ := ev.Data["error"].(string)
				return nil, &RequestFailedError{RequestID: requestID, Message: msg}
			}
		}
	}
}

// Decode converts one field of a completion payload into out.
func Decode(data map[string]any, key string, out any) error {
	v, ok := data[key]
	if !ok {
		return fmt.Errorf("result has no %q", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to re-encode %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return nil
}
