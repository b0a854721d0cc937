package service

import (
	"context"
	"encoding/json"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const progressDedupePrefix = "progress:notified:"

// ProgressNotifier queues progress events for the relay worker. Each accepted
// submission is queued at most once.
type ProgressNotifier struct {
	rdb       *redis.Client
	queueName string
	dedupeTTL time.Duration
}

func NewProgressNotifier(rdb *redis.Client, queueName string, dedupeTTL time.Duration) *ProgressNotifier {
	if dedupeTTL <= 0 {
		dedupeTTL = 72 * time.Hour
	}
	return &ProgressNotifier{rdb: rdb, queueName: queueName, dedupeTTL: dedupeTTL}
}

func (n *ProgressNotifier) NotifyAccepted(ctx context.Context, event model.ProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return common.Errorf("failed to marshal progress event: %w", err)
	}

	key := progressDedupePrefix + event.SubmissionID
	first, err := n.rdb.SetNX(ctx, key, 1, n.dedupeTTL).Result()
	if err != nil {
		return common.Errorf("failed to claim progress event for submission %s: %w", event.SubmissionID, err)
	}
	if !first {
		logger.Info(ctx, "progress event already queued", zap.String("submission_id", event.SubmissionID))
		return nil
	}

	if err := n.rdb.LPush(ctx, n.queueName, payload).Err(); err != nil {
		// Release the claim so a later attempt can still queue the event.
		_ = n.rdb.Del(ctx, key).Err()
		return common.Errorf("failed to push progress event to Redis queue: %w", err)
	}

	logger.Info(ctx, "progress event queued",
		zap.String("submission_id", event.SubmissionID),
		zap.String("problem_id", event.ProblemID),
		zap.String("queue", n.queueName),
	)
	return nil
}
