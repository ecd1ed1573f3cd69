package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/PlayVerse/internal/pkg/cache"
)

const (
	// JobKeyPrefix + id holds the job JSON; the lists hold ids only.
	JobKeyPrefix      = "playverse:job:"
	JobQueueKey       = "playverse:jobs:pending"
	JobProcessingKey  = "playverse:jobs:processing"
	JobStatsKey       = "playverse:jobs:stats"
	scheduleKeyPrefix = "playverse:jobs:scheduled:"

	DefaultMaxRetries = 3
	JobTTL            = 24 * time.Hour

	defaultWorkers  = 3
	dequeueWait     = time.Second
	recoverInterval = time.Minute
)

// jobTimeouts bounds one run of each job type.
var jobTimeouts = map[JobType]time.Duration{
	JobTypeExpirationSweep: 10 * time.Minute,
	JobTypeRatingSync:      30 * time.Minute,
}

func timeoutFor(t JobType) time.Duration {
	if d, ok := jobTimeouts[t]; ok {
		return d
	}
	return 10 * time.Minute
}

// staleAfter is how long a job may sit in the processing list before its
// worker is considered gone.
func staleAfter(t JobType) time.Duration {
	return timeoutFor(t) + recoverInterval
}

// Queue runs expiration sweeps and rating syncs from a Redis list. Several
// app instances may share one queue.
type Queue struct {
	client  *redis.Client
	workers int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hmu      sync.RWMutex
	handlers Handlers
}

func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Queue{
		client:  cache.GetClient(),
		workers: workers,
	}
}

// SetHandlers installs the services that process jobs
func (q *Queue) SetHandlers(h Handlers) {
	q.hmu.Lock()
	defer q.hmu.Unlock()
	q.handlers = h
}

func (q *Queue) getHandlers() Handlers {
	q.hmu.RLock()
	defer q.hmu.RUnlock()
	return q.handlers
}

func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancel != nil
}

// Start launches the workers and the stale job recovery. A stopped queue can
// be started again.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
	q.wg.Add(1)
	go q.recoverLoop(ctx)
}

// Stop waits for running jobs to finish. Pending jobs stay in Redis.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel == nil {
		return
	}

	log.Info("[JobQueue] Stopping workers...")
	q.cancel()
	q.cancel = nil
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()

	for {
		job, err := q.dequeueJob(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case cache.IsMiss(err):
			continue
		case err != nil:
			log.Errorf("[JobQueue] Worker %d: Error dequeuing job: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
		// a job in flight finishes even when the queue is stopping
		q.processJob(context.WithoutCancel(ctx), job)
	}
}

func (q *Queue) recoverLoop(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(recoverInterval)
	defer ticker.Stop()

	for {
		n, err := q.RecoverStale(ctx, time.Now())
		if err != nil && ctx.Err() == nil {
			log.Errorf("[JobQueue] Stale job recovery failed: %v", err)
		} else if n > 0 {
			log.Warnf("[JobQueue] Requeued %d stale jobs", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RecoverStale moves jobs whose worker died back to the pending list and
// drops ids whose job data has expired. Returns the number requeued.
func (q *Queue) RecoverStale(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	requeued := 0
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil {
			if !cache.IsMiss(err) && !errors.Is(err, errBadJobData) {
				return requeued, err
			}
			q.removeFromProcessing(ctx, id)
			continue
		}
		if now.Sub(job.UpdatedAt) <= staleAfter(job.Type) {
			continue
		}

		log.Warnf("[JobQueue] Requeuing stale job %s (type=%s, last update %s)", job.ID, job.Type, job.UpdatedAt.Format(time.RFC3339))
		job.Status = JobStatusPending
		job.ErrorMsg = "worker lost"
		job.UpdatedAt = now
		q.updateJob(ctx, job)

		pipe := q.client.TxPipeline()
		pipe.LRem(ctx, JobProcessingKey, 1, id)
		pipe.RPush(ctx, JobQueueKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

// EnqueueJob stores a job and appends it to the pending list.
func (q *Queue) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	ctx := context.Background()
	now := time.Now()
	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	pipe.LPush(ctx, JobQueueKey, job.ID)
	pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// EnqueueScheduled enqueues a periodic job unless another instance already
// did so within window. It returns nil, nil when the run was skipped.
func (q *Queue) EnqueueScheduled(jobType JobType, payload map[string]interface{}, window time.Duration) (*Job, error) {
	ctx := context.Background()
	// a little under the tick so the next tick of the same instance wins
	ttl := window - window/10
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := q.client.SetNX(ctx, scheduleKeyPrefix+string(jobType), time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s schedule: %w", jobType, err)
	}
	if !ok {
		log.Debugf("[JobQueue] %s already scheduled by another instance", jobType)
		return nil, nil
	}
	return q.EnqueueJob(jobType, payload)
}

var errBadJobData = errors.New("invalid job data")

func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, dequeueWait).Result()
	if err != nil {
		return nil, err
	}

	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("job %s dropped: %v", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	runCtx, cancel := context.WithTimeout(ctx, timeoutFor(job.Type))
	err := q.runJob(runCtx, job)
	cancel()

	switch {
	case err == nil:
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.updateJobStats(ctx, JobStatusCompleted, 1)
		if err := q.client.Del(ctx, JobKeyPrefix+job.ID).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to remove completed job %s: %v", job.ID, err)
		}

	default:
		log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
		job.MarkAsFailed(err.Error())
		if job.IsRetryable() {
			log.Infof("[JobQueue] Retrying job %s (Attempt %d/%d)", job.ID, job.RetryCount, job.MaxRetries)
			job.MarkAsRetrying()
			id := job.ID
			time.AfterFunc(retryDelay(job.RetryCount), func() {
				if err := q.client.LPush(context.Background(), JobQueueKey, id).Err(); err != nil {
					log.Errorf("[JobQueue] Failed to requeue job %s: %v", id, err)
				}
			})
		} else {
			log.Errorf("[JobQueue] Job %s permanently failed after %d retries", job.ID, job.RetryCount)
			q.updateJobStats(ctx, JobStatusFailed, 1)
		}
		q.updateJob(ctx, job)
	}

	q.removeFromProcessing(ctx, job.ID)
}

// retryDelay grows linearly with the attempt.
func retryDelay(attempt int) time.Duration {
	return time.Duration(attempt) * time.Minute
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) removeFromProcessing(ctx context.Context, jobID string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, jobID).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to remove job %s from processing list: %v", jobID, err)
	}
}

func (q *Queue) updateJobStats(ctx context.Context, status JobStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob returns a job while it is retained. A missing job yields redis.Nil.
func (q *Queue) GetJob(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+jobID).Bytes()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadJobData, err)
	}
	return &job, nil
}

// GetJobStats returns the counters per job status.
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[JobStatus]int64, len(raw))
	for status, count := range raw {
		if n, err := strconv.ParseInt(count, 10, 64); err == nil {
			stats[JobStatus(status)] = n
		}
	}
	return stats, nil
}

func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}
