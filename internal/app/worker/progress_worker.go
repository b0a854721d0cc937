package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type ProgressWorkerConfig struct {
	QueueName     string
	AggregatorURL string
	MaxAttempts   int
	PollTimeout   time.Duration // BRPOP block time, bounds shutdown latency
	RetryBackoff  time.Duration
	HTTPClient    *http.Client
}

// ProgressWorker relays queued progress events to the aggregator. Failed
// deliveries go back to the queue until MaxAttempts is reached.
type ProgressWorker struct {
	rdb        *redis.Client
	cfg        ProgressWorkerConfig
	httpClient *http.Client
}

func NewProgressWorker(rdb *redis.Client, cfg ProgressWorkerConfig) *ProgressWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProgressWorker{rdb: rdb, cfg: cfg, httpClient: httpClient}
}

func (w *ProgressWorker) Start(ctx context.Context) {
	logger.Info(ctx, "progress worker started", zap.String("queue", w.cfg.QueueName))
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "progress worker stopping")
			return
		default:
		}

		item, err := w.rdb.BRPop(ctx, w.cfg.PollTimeout, w.cfg.QueueName).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Error(ctx, "failed to pop progress queue", zap.String("queue", w.cfg.QueueName), zap.Error(err))
			w.sleep(ctx, 5*time.Second)
			continue
		}
		// item is [queueName, value]
		if len(item) < 2 || item[1] == "" {
			continue
		}
		w.HandleEvent(ctx, item[1])
	}
}

// HandleEvent delivers one raw queue entry.
func (w *ProgressWorker) HandleEvent(ctx context.Context, raw string) {
	var event model.ProgressEvent
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		metrics.ProgressRelayed.WithLabelValues("malformed").Inc()
		logger.Error(ctx, "dropping malformed progress event", zap.Error(err))
		return
	}

	event.Attempts++
	err := w.deliver(ctx, event)
	if err == nil {
		metrics.ProgressRelayed.WithLabelValues("delivered").Inc()
		logger.Info(ctx, "progress event delivered",
			zap.String("submission_id", event.SubmissionID), zap.Int("attempts", event.Attempts))
		return
	}

	if event.Attempts >= w.cfg.MaxAttempts {
		metrics.ProgressRelayed.WithLabelValues("dropped").Inc()
		logger.Error(ctx, "giving up on progress event",
			zap.String("submission_id", event.SubmissionID), zap.Int("attempts", event.Attempts), zap.Error(err))
		return
	}

	metrics.ProgressRelayed.WithLabelValues("requeued").Inc()
	logger.Warn(ctx, "progress delivery failed, re-queueing",
		zap.String("submission_id", event.SubmissionID), zap.Int("attempts", event.Attempts), zap.Error(err))
	w.sleep(ctx, w.cfg.RetryBackoff*time.Duration(event.Attempts))
	w.requeue(context.WithoutCancel(ctx), event)
}

func (w *ProgressWorker) deliver(ctx context.Context, event model.ProgressEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.AggregatorURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", event.SubmissionID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("aggregator returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *ProgressWorker) requeue(ctx context.Context, event model.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error(ctx, "failed to marshal progress event for re-queue", zap.Error(err))
		return
	}
	// LPUSH puts the event behind everything already waiting.
	if err := w.rdb.LPush(ctx, w.cfg.QueueName, payload).Err(); err != nil {
		logger.Error(ctx, "failed to re-queue progress event",
			zap.String("submission_id", event.SubmissionID), zap.Error(err))
	}
}

func (w *ProgressWorker) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
