package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HistoryStore keeps each learner's hint conversation per scope as a capped
// Redis list. Lists expire when the learner goes quiet.
type HistoryStore struct {
	rdb      *redis.Client
	maxTurns int
	ttl      time.Duration
}

func NewHistoryStore(rdb *redis.Client, maxTurns int, ttl time.Duration) *HistoryStore {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &HistoryStore{rdb: rdb, maxTurns: maxTurns, ttl: ttl}
}

func historyKey(userID string, scope model.Scope) (string, error) {
	if userID == "" || !scope.IsValid() {
		return "", common.NewValidationError(fmt.Errorf("history needs a user and a problem or lesson scope, got %q", scope.Key()))
	}
	return "mentor:history:" + userID + ":" + scope.Key(), nil
}

func (s *HistoryStore) Load(ctx context.Context, userID string, scope model.Scope) (*model.History, error) {
	key, err := historyKey(userID, scope)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, common.Errorf("failed to load hint history: %w", err)
	}
	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			logger.Warn(ctx, "skipping unreadable history turn", zap.Error(err))
			continue
		}
		turns = append(turns, t)
	}
	return model.NewHistory(scope, s.maxTurns, turns...), nil
}

func (s *HistoryStore) Append(ctx context.Context, userID string, scope model.Scope, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	key, err := historyKey(userID, scope)
	if err != nil {
		return err
	}
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return common.Errorf("failed to marshal history turn: %w", err)
		}
		values = append(values, b)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return common.Errorf("failed to save hint history: %w", err)
	}
	return nil
}
