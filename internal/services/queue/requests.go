package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amoisekai/engine/pkg/queue"
)

const requestsKey = "amoisekai:requests"

// RequestQueue is the global FIFO of engine requests.
type RequestQueue struct {
	client *Client
}

func NewRequestQueue(client *Client) *RequestQueue {
	return &RequestQueue{client: client}
}

// EnqueueRequest appends req after validating it.
func (q *RequestQueue) EnqueueRequest(ctx context.Context, req *queue.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, requestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue request: %w", err)
	}
	q.client.logger.Debug("Enqueued request", "request_id", req.RequestID, "type", req.Type, "story_id", req.StoryID)
	return nil
}

// DequeueRequest removes and returns the next request from the global queue
// Returns nil if queue is empty
func (q *RequestQueue) DequeueRequest(ctx context.Context) (*queue.Request, error) {
	result, err := q.client.rdb.LPop(ctx, requestsKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}
	return parseRequest(result)
}

// BlockingDequeueRequest waits up to timeout for a request. It returns
// nil, nil when the wait expires.
func (q *RequestQueue) BlockingDequeueRequest(ctx context.Context, timeout time.Duration) (*queue.Request, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, requestsKey).Result()
	if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseRequest(result[1])
}

// RequeueRequest pushes req to the back of the queue without validation.
func (q *RequestQueue) RequeueRequest(ctx context.Context, req *queue.Request) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	return q.client.rdb.RPush(ctx, requestsKey, data).Err()
}

// RequestQueueDepth returns the number of requests in the global queue
func (q *RequestQueue) RequestQueueDepth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, requestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get request queue depth: %w", err)
	}
	return int(count), nil
}

func parseRequest(raw string) (*queue.Request, error) {
	req, err := queue.FromJSON([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return req, nil
}
