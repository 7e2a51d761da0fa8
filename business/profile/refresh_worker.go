package profile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	"myMarketplace/pkg/metrics"
)

// RefreshQueue is a bounded queue of user ids awaiting a profile rebuild. A
// user already waiting in the queue is not queued twice.
type RefreshQueue struct {
	jobs chan uint

	mu      sync.Mutex
	pending map[uint]struct{}
}

func NewRefreshQueue(size int) *RefreshQueue {
	if size <= 0 {
		size = 1
	}
	return &RefreshQueue{
		jobs:    make(chan uint, size),
		pending: make(map[uint]struct{}),
	}
}

// Enqueue never blocks. It returns domain.ErrQueueFull when the queue is at
// capacity.
func (q *RefreshQueue) Enqueue(userID uint) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.pending[userID]; ok {
		metrics.ProfileRefreshDropped.WithLabelValues("coalesced").Inc()
		return nil
	}

	select {
	case q.jobs <- userID:
		q.pending[userID] = struct{}{}
		return nil
	default:
		metrics.ProfileRefreshDropped.WithLabelValues("queue_full").Inc()
		return domain.ErrQueueFull
	}
}

func (q *RefreshQueue) Len() int {
	return len(q.jobs)
}

func (q *RefreshQueue) next(ctx context.Context) (uint, bool) {
	select {
	case <-ctx.Done():
		return 0, false
	case userID := <-q.jobs:
		q.mu.Lock()
		delete(q.pending, userID)
		q.mu.Unlock()
		return userID, true
	}
}

// Upserter rebuilds one profile.
type Upserter interface {
	UpsertProfile(ctx context.Context, userID uint) (*domain.BehaviorProfile, error)
}

// RefreshWorker drains the queue. It runs under a suture supervisor.
type RefreshWorker struct {
	name     string
	queue    *RefreshQueue
	profiles Upserter
	timeout  time.Duration
}

func NewRefreshWorker(id int, queue *RefreshQueue, profiles Upserter, timeout time.Duration) *RefreshWorker {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RefreshWorker{
		name:     fmt.Sprintf("profile-refresh-%d", id),
		queue:    queue,
		profiles: profiles,
		timeout:  timeout,
	}
}

// Serve implements suture.Service.
func (w *RefreshWorker) Serve(ctx context.Context) error {
	logger.Info("profile refresh worker started", "worker", w.name)
	for {
		userID, ok := w.queue.next(ctx)
		if !ok {
			logger.Info("profile refresh worker stopped", "worker", w.name)
			return ctx.Err()
		}
		w.refresh(ctx, userID)
	}
}

func (w *RefreshWorker) refresh(ctx context.Context, userID uint) {
	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if _, err := w.profiles.UpsertProfile(jobCtx, userID); err != nil {
		metrics.ProfileRefreshTotal.WithLabelValues("error").Inc()
		logger.Warn("profile refresh failed", "worker", w.name, "user_id", userID, "error", err)
		return
	}
	metrics.ProfileRefreshTotal.WithLabelValues("success").Inc()
}

func (w *RefreshWorker) String() string {
	return w.name
}
