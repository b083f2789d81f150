package videojob

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/clearmarkhq/clearmark/internal/pkg/cache"
	"github.com/clearmarkhq/clearmark/internal/pkg/env"
)

const (
	// Redis keys
	statusQueueKey      = "videojob_status_queue"
	statusProcessingKey = "videojob_status_processing"

	defaultPollInterval = 60 * time.Second
	defaultBatchSize    = 50
)

// UploadStore is the slice of upload persistence the poller needs.
type UploadStore interface {
	PendingTaskIDs(limit int) ([]string, error)
	MarkUploadReady(taskID, cleanedURL string) error
	MarkUploadFailed(taskID string) error
}

// Poller drives status checks for uploads still marked processing. A
// producer loop scans the database and feeds task ids through a Redis list;
// a consumer loop polls the job API and settles the rows. The callback
// endpoint usually wins the race; the poller catches lost callbacks.
type Poller struct {
	client   *redis.Client
	api      *Client
	store    UploadStore
	interval time.Duration
	batch    int

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewPoller creates a status poller using the shared Redis client.
func NewPoller(api *Client, store UploadStore) *Poller {
	interval := defaultPollInterval
	if secs, err := strconv.Atoi(env.GetEnv("VIDEOJOB_POLL_INTERVAL_SECS", "")); err == nil && secs > 0 {
		interval = time.Duration(secs) * time.Second
	}
	batch := defaultBatchSize
	if n, err := strconv.Atoi(env.GetEnv("VIDEOJOB_POLL_BATCH_SIZE", "")); err == nil && n > 0 {
		batch = n
	}

	return &Poller{
		client:   cache.GetClient(),
		api:      api,
		store:    store,
		interval: interval,
		batch:    batch,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the producer and consumer loops.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	log.Infof("[VideoJob] Status poller starting (interval=%s, batch=%d)", p.interval, p.batch)
	p.wg.Add(2)
	go p.producer()
	go p.consumer()
}

// Stop shuts both loops down and waits for them.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	log.Info("[VideoJob] Status poller stopping...")
	close(p.stopCh)
	p.running = false
	p.wg.Wait()
	log.Info("[VideoJob] Status poller stopped")
}

// producer periodically scans for unsettled uploads and enqueues their task
// ids for a status check.
func (p *Poller) producer() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	ctx := context.Background()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			taskIDs, err := p.store.PendingTaskIDs(p.batch)
			if err != nil {
				log.Errorf("[VideoJob] Pending scan error: %v", err)
				continue
			}
			for _, taskID := range taskIDs {
				if err := p.client.LPush(ctx, statusQueueKey, taskID).Err(); err != nil {
					log.Errorf("[VideoJob] Enqueue error for task %s: %v", taskID, err)
				}
			}
		}
	}
}

// consumer pops task ids and settles the matching upload rows.
func (p *Poller) consumer() {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-p.stopCh:
			return
		default:
			taskID, err := p.client.BRPopLPush(ctx, statusQueueKey, statusProcessingKey, time.Second).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) {
					log.Errorf("[VideoJob] Dequeue error: %v", err)
					time.Sleep(time.Second)
				}
				continue
			}

			if err := p.checkTask(ctx, taskID); err != nil {
				log.Errorf("[VideoJob] Status check for task %s failed: %v", taskID, err)
			}
			p.client.LRem(ctx, statusProcessingKey, 1, taskID)
		}
	}
}

func (p *Poller) checkTask(ctx context.Context, taskID string) error {
	status, err := p.api.FetchTaskStatus(ctx, taskID)
	if err != nil {
		return err
	}

	switch status.State {
	case "success":
		if status.ResultURL == "" {
			return nil
		}
		return p.store.MarkUploadReady(taskID, status.ResultURL)
	case "fail":
		return p.store.MarkUploadFailed(taskID)
	default:
		// Still running; the next producer pass requeues it.
		return nil
	}
}
