// internal/historian/historian.go pops finished game records from a Redis queue and
// persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/wordrope/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// popTimeout bounds each BLPOP so shutdown is noticed promptly.
const popTimeout = 3 * time.Second

// maxRecordAttempts is how many flushes a record may fail before it is dropped.
const maxRecordAttempts = 5

// Queue is the slice of the Redis client the historian reads from.
type Queue interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Store persists batches of records.
type Store interface {
	InsertResults(ctx context.Context, records []cache.GameResultRecord) error
}

// Options tunes batching.
type Options struct {
	QueueName  string
	BatchSize  int
	FlushDelay time.Duration
}

// Service drains the result queue into the Store.
type Service struct {
	queue  Queue
	store  Store
	opts   Options
	logger *logrus.Logger

	batchMu sync.Mutex
	batch   []pendingRecord
}

type pendingRecord struct {
	record   cache.GameResultRecord
	attempts int
}

// NewService builds a Service, filling zero options with defaults.
func NewService(queue Queue, store Store, opts Options, logger *logrus.Logger) *Service {
	if opts.QueueName == "" {
		opts.QueueName = cache.DefaultQueueName
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 20
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = 500 * time.Millisecond
	}
	return &Service{
		queue:  queue,
		store:  store,
		opts:   opts,
		logger: logger,
		batch:  make([]pendingRecord, 0, opts.BatchSize),
	}
}

// Run pops and flushes until ctx is cancelled, then flushes whatever is left.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.flushLoop(gctx) })

	s.logger.WithField("queue", s.opts.QueueName).Info("historian started")
	err := g.Wait()

	// The run context is gone; give the final flush its own deadline.
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Flush(flushCtx)

	s.logger.Info("historian stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Service) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.queue.BLPop(ctx, popTimeout, s.opts.QueueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).Error("BLPop failed")
			// Avoid spinning on a dead connection.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] is the queue name and res[1] the payload.
		if len(res) < 2 {
			continue
		}
		var record cache.GameResultRecord
		if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
			s.logger.WithError(err).Warn("dropping invalid result record")
			continue
		}
		s.appendToBatch(ctx, record)
	}
}

func (s *Service) flushLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.FlushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

func (s *Service) appendToBatch(ctx context.Context, record cache.GameResultRecord) {
	s.batchMu.Lock()
	s.batch = append(s.batch, pendingRecord{record: record})
	full := len(s.batch) >= s.opts.BatchSize
	s.batchMu.Unlock()

	if full {
		s.Flush(ctx)
	}
}

// Flush writes the pending batch in one transaction. When that fails, each record
// is retried on its own so a record the database rejects cannot hold back the
// others. Records that still fail are put back in front of newer ones and are
// dropped after maxRecordAttempts flushes.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	pending := make([]pendingRecord, len(s.batch))
	copy(pending, s.batch)
	s.batch = s.batch[:0]
	s.batchMu.Unlock()

	records := make([]cache.GameResultRecord, len(pending))
	for i, p := range pending {
		records[i] = p.record
	}
	err := s.store.InsertResults(ctx, records)
	if err == nil {
		s.logger.WithField("count", len(pending)).Debug("flushed results")
		return
	}
	s.logger.WithError(err).WithField("count", len(pending)).Warn("batch flush failed, retrying records one by one")

	var retry []pendingRecord
	for _, p := range pending {
		if err := s.store.InsertResults(ctx, []cache.GameResultRecord{p.record}); err != nil {
			p.attempts++
			entry := s.logger.WithError(err).WithFields(logrus.Fields{"game": p.record.GameID, "attempts": p.attempts})
			if p.attempts >= maxRecordAttempts {
				entry.Error("dropping result record")
				continue
			}
			entry.Warn("result record not stored")
			retry = append(retry, p)
		}
	}
	if len(retry) == 0 {
		return
	}
	s.batchMu.Lock()
	s.batch = append(retry, s.batch...)
	s.batchMu.Unlock()
}

// Pending reports how many records are waiting to be flushed.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
