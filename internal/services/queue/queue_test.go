package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/amoisekai/engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := NewClient(context.Background(), "redis://"+mr.Addr(), logger)
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func sceneRequest(storyID string, n int) *queue.Request {
	req := queue.NewRequest(queue.RequestTypeScene, "u1", storyID)
	req.ChapterID = "c1"
	req.SceneNumber = n
	return req
}

func TestRequestQueue_FIFO(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRequestQueue(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := q.EnqueueRequest(ctx, sceneRequest("s1", i)); err != nil {
			t.Fatalf("EnqueueRequest: %v", err)
		}
	}
	if depth, _ := q.RequestQueueDepth(ctx); depth != 3 {
		t.Errorf("depth = %d, want 3", depth)
	}

	for i := 1; i <= 3; i++ {
		req, err := q.DequeueRequest(ctx)
		if err != nil {
			t.Fatalf("DequeueRequest: %v", err)
		}
		if req.SceneNumber != i {
			t.Errorf("got scene %d, want %d", req.SceneNumber, i)
		}
	}

	req, err := q.DequeueRequest(ctx)
	if err != nil || req != nil {
		t.Errorf("empty queue = %v, %v", req, err)
	}
}

func TestRequestQueue_RejectsInvalid(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRequestQueue(client)

	if err := q.EnqueueRequest(context.Background(), sceneRequest("s1", 0)); err == nil {
		t.Error("expected validation error")
	}
}

func TestRequestQueue_Blocking(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewRequestQueue(client)
	ctx := context.Background()

	if err := q.EnqueueRequest(ctx, queue.NewRequest(queue.RequestTypeChapterPlan, "u1", "s1")); err != nil {
		t.Fatalf("EnqueueRequest: %v", err)
	}
	req, err := q.BlockingDequeueRequest(ctx, time.Second)
	if err != nil || req == nil || req.Type != queue.RequestTypeChapterPlan {
		t.Fatalf("BlockingDequeueRequest = %+v, %v", req, err)
	}

	if err := q.RequeueRequest(ctx, req); err != nil {
		t.Fatalf("RequeueRequest: %v", err)
	}
	if depth, _ := q.RequestQueueDepth(ctx); depth != 1 {
		t.Errorf("depth after requeue = %d", depth)
	}
}

func TestStoryEventQueue(t *testing.T) {
	client, _ := setupTestRedis(t)
	q := NewStoryEventQueue(client)
	ctx := context.Background()

	events := []string{
		"The Empire seals the northern gate",
		"A star falls over the Ashfall Frontier",
	}
	for _, e := range events {
		if err := q.Enqueue(ctx, "s1", e); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := q.Enqueue(ctx, "s1", "   "); err == nil {
		t.Error("expected error for blank event")
	}

	peeked, err := q.Peek(ctx, "s1", 1)
	if err != nil || len(peeked) != 1 || peeked[0] != events[0] {
		t.Errorf("Peek = %v, %v", peeked, err)
	}

	got, err := q.Dequeue(ctx, "s1")
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 2 || got[1] != events[1] {
		t.Errorf("Dequeue = %v", got)
	}
	if depth, _ := q.Depth(ctx, "s1"); depth != 0 {
		t.Errorf("depth after dequeue = %d", depth)
	}

	got, err = q.Dequeue(ctx, "other")
	if err != nil || len(got) != 0 {
		t.Errorf("empty Dequeue = %v, %v", got, err)
	}
}
