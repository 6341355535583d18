package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"message-sweeper/internal/domain"
)

// DefaultMaxBatchSize matches the DynamoDB transaction item limit.
const DefaultMaxBatchSize = 100

// MessageStore reads expired messages across every room and deletes them
// in atomic batches.
type MessageStore interface {
	FindExpired(ctx context.Context, cutoff time.Time) ([]domain.MessageRef, error)
	DeleteBatch(ctx context.Context, refs []domain.MessageRef) error
}

type SweepService struct {
	store        MessageStore
	logger       *slog.Logger
	maxBatchSize int
	now          func() time.Time
}

// SweepResult reports one sweep. Deleted is the number of messages in
// committed batches, which can be less than Found when a later batch fails.
type SweepResult struct {
	RunID   string
	Cutoff  time.Time
	Found   int
	Deleted int
	Batches int
}

func NewSweepService(store MessageStore, logger *slog.Logger, maxBatchSize int) (*SweepService, error) {
	if store == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	return &SweepService{
		store:        store,
		logger:       logger,
		maxBatchSize: maxBatchSize,
		now:          time.Now,
	}, nil
}

// Sweep deletes every message whose destruction time is at or before the
// moment the sweep starts.
func (s *SweepService) Sweep(ctx context.Context) (SweepResult, error) {
	res := SweepResult{
		RunID:  newRunID(),
		Cutoff: s.now().UTC(),
	}
	log := s.logger.With("run_id", res.RunID, "cutoff", res.Cutoff.Format(time.RFC3339Nano))

	refs, err := s.store.FindExpired(ctx, res.Cutoff)
	if err != nil {
		log.Error("expired message query failed", "err", err)
		return res, newError(ErrorQuery, "find_expired_failed", err)
	}
	res.Found = len(refs)

	if res.Found == 0 {
		log.Info("no expired messages found")
		return res, nil
	}

	for _, batch := range chunk(refs, s.maxBatchSize) {
		if err := ctx.Err(); err != nil {
			log.Error("sweep interrupted", "deleted", res.Deleted, "found", res.Found, "err", err)
			return res, newError(ErrorCommit, "sweep_interrupted", err)
		}
		if err := s.store.DeleteBatch(ctx, batch); err != nil {
			log.Error("expired message delete failed",
				"batch", res.Batches+1,
				"batch_size", len(batch),
				"deleted", res.Deleted,
				"found", res.Found,
				"err", err,
			)
			return res, newError(ErrorCommit, "delete_batch_failed", err)
		}
		res.Batches++
		res.Deleted += len(batch)
	}

	log.Info("deleted expired messages", "count", res.Deleted, "batches", res.Batches)
	return res, nil
}

// chunk splits refs into consecutive slices of at most size elements.
func chunk(refs []domain.MessageRef, size int) [][]domain.MessageRef {
	batches := make([][]domain.MessageRef, 0, (len(refs)+size-1)/size)
	for start := 0; start < len(refs); start += size {
		end := min(start+size, len(refs))
		batches = append(batches, refs[start:end])
	}
	return batches
}

var newRunID = func() string {
	return uuid.NewString()
}
