package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookworm-assistant/server/internal/agent/model"
	errx "github.com/bookworm-assistant/server/internal/core/error"
	logx "github.com/bookworm-assistant/server/pkg/logger"
)

// RedisStateRepository checkpoints full conversation state as one JSON blob
// per thread. Writes refresh the TTL so an idle conversation eventually
// expires and the next message on that thread starts fresh.
type RedisStateRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStateRepository(rdb redis.Cmdable, ttl time.Duration) *RedisStateRepository {
	return &RedisStateRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisStateRepository) stateKey(threadID string) string {
	return fmt.Sprintf("thread:%s:state", threadID)
}

// Load returns the checkpointed state for a thread, or a fresh state when no
// checkpoint exists (a new or expired thread is not an error).
func (r *RedisStateRepository) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	key := r.stateKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return model.NewConversationState(threadID), nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation state from redis")
		return nil, errx.WrapRedis(err)
	}

	var st model.ConversationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to unmarshal conversation state")
		return nil, fmt.Errorf("unmarshal conversation state: %w", err)
	}
	return &st, nil
}

func (r *RedisStateRepository) Save(ctx context.Context, st *model.ConversationState) error {
	b, err := json.Marshal(st)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", st.ThreadID).Msg("failed to marshal conversation state")
		return fmt.Errorf("marshal conversation state: %w", err)
	}
	key := r.stateKey(st.ThreadID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write conversation state to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStateRepository) Clear(ctx context.Context, threadID string) error {
	key := r.stateKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation state from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.StateRepository = (*RedisStateRepository)(nil)
