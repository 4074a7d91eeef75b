package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "github.com/amoisekai/engine/internal/errors"
	"github.com/amoisekai/engine/internal/orchestrator"
	"github.com/amoisekai/engine/internal/services"
	"github.com/amoisekai/engine/internal/services/events"
	"github.com/amoisekai/engine/internal/services/queue"
	queuePkg "github.com/amoisekai/engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	lockTTL       = 30 * time.Second
)

// Options tune a worker. Zero values take the defaults.
type Options struct {
	ID        string
	Heartbeat time.Duration
	LockTTL   time.Duration
	Metrics   *services.Metrics
}

// Worker processes requests from the global request queue, one story at
// a time.
type Worker struct {
	id          string
	queue       *queue.RequestQueue
	processor   *RequestProcessor
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	metrics     *services.Metrics
	heartbeat   time.Duration
	lockTTL     time.Duration
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(requests *queue.RequestQueue, processor *RequestProcessor, redisClient *redis.Client, log *slog.Logger, opts Options) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.ID == "" {
		opts.ID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 8 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = lockTTL
	}

	return &Worker{
		id:          opts.ID,
		queue:       requests,
		processor:   processor,
		broadcaster: events.NewBroadcaster(redisClient, log),
		redisClient: redisClient,
		metrics:     opts.Metrics,
		heartbeat:   opts.Heartbeat,
		lockTTL:     opts.LockTTL,
		log:         log.With("worker_id", opts.ID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	// Block waiting for next request (timeout to check for shutdown)
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout)
	defer cancel()

	req, err := w.queue.BlockingDequeueRequest(ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	key := req.LockKey()
	w.log.Info("Received request from queue", "request_id", req.RequestID, "type", req.Type, "lock_key", key)

	locked, err := w.acquireLock(key)
	if err != nil {
		if rqErr := w.queue.RequeueRequest(w.ctx, req); rqErr != nil {
			w.log.Error("Failed to re-queue request", "error", rqErr, "request_id", req.RequestID)
		}
		return fmt.Errorf("failed to acquire story lock: %w", err)
	}
	if !locked {
		// Another worker holds the story; put the request back.
		w.log.Info("Story already locked, re-queueing request", "request_id", req.RequestID, "lock_key", key)
		if err := w.queue.RequeueRequest(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseLock(key)
	return w.processRequest(req)
}

func lockKey(key string) string {
	return fmt.Sprintf("amoisekai:lock:%s", key)
}

// acquireLock returns false when another worker holds key.
func (w *Worker) acquireLock(key string) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(key), w.id, w.lockTTL).Result()
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// releaseLock deletes the lock only if this worker still owns it.
func (w *Worker) releaseLock(key string) {
	if err := releaseScript.Run(context.Background(), w.redisClient, []string{lockKey(key)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release story lock", "error", err, "lock_key", key)
	}
}

func (w *Worker) extendLock(ctx context.Context, key string) {
	if err := extendScript.Run(ctx, w.redisClient, []string{lockKey(key)}, w.id, w.lockTTL.Milliseconds()).Err(); err != nil {
		w.log.Warn("Failed to extend story lock", "error", err, "lock_key", key)
	}
}

// progress keeps the latest status reported by the engine.
type progress struct {
	mu     sync.Mutex
	status string
}

func (p *progress) Report(status string) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
}

func (p *progress) current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// processRequest runs req through the processor while a heartbeat
// publishes the latest status and keeps the story lock alive.
func (w *Worker) processRequest(req *queuePkg.Request) error {
	key := req.LockKey()
	log := w.log.With("request_id", req.RequestID, "type", req.Type, "lock_key", key)
	log.Info("Processing request")
	start := time.Now()

	if err := w.broadcaster.PublishRequestProcessing(w.ctx, key, req.RequestID, string(req.Type)); err != nil {
		log.Error("Failed to publish processing event", "error", err)
	}

	status := &progress{status: orchestrator.StatusLoading}
	hbCtx, stopHeartbeat := context.WithCancel(w.ctx)
	var hb sync.WaitGroup
	hb.Add(1)
	go func() {
		defer hb.Done()
		ticker := time.NewTicker(w.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				w.extendLock(hbCtx, key)
				if err := w.broadcaster.PublishProgress(hbCtx, key, req.RequestID, status.current(), time.Since(start).Milliseconds()); err != nil {
					log.Warn("Failed to publish heartbeat", "error", err)
				}
			}
		}
	}()

	result, err := w.processor.Process(w.ctx, req, status)
	stopHeartbeat()
	hb.Wait()
	w.metrics.QueueRequest(string(req.Type), err)

	if err != nil {
		log.Error("Request failed",
			"error", err,
			"code", apperrors.GetCode(err),
			"duration_ms", time.Since(start).Milliseconds())
		if pubErr := w.broadcaster.PublishRequestFailed(w.ctx, key, req.RequestID, err.Error()); pubErr != nil {
			log.Error("Failed to publish failure event", "error", pubErr)
		}
		// Validation failures are final and do not stall the worker.
		if apperrors.GetCode(err) != apperrors.CodeInternal {
			return nil
		}
		return fmt.Errorf("failed to process %s request: %w", req.Type, err)
	}

	result["duration_ms"] = time.Since(start).Milliseconds()
	log.Info("Request processed successfully", "duration_ms", result["duration_ms"])
	if err := w.broadcaster.PublishRequestCompleted(w.ctx, key, req.RequestID, result); err != nil {
		log.Error("Failed to publish completion event", "error", err)
	}
	return nil
}
