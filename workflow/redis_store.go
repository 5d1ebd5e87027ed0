package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// The two prefixes must not overlap: under a shared prefix the completion
// marker of id "x" would collide with the state of id "done:x".
const (
	redisStateKeyPrefix = "fixflow:wf:"
	redisDoneKeyPrefix  = "fixflow:wfdone:"
)

// RedisStore persists workflow state in Redis so runs survive process
// restarts and multiple nodes can continue the same workflow.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store over an existing Redis client. A zero ttl
// keeps workflows forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func stateKey(id string) string { return redisStateKeyPrefix + id }
func doneKey(id string) string  { return redisDoneKeyPrefix + id }

// Create stores a new workflow state. SETNX guarantees id uniqueness.
func (s *RedisStore) Create(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", state.ID, err)
	}

	ok, err := s.client.SetNX(ctx, stateKey(state.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create workflow %s: %w", state.ID, err)
	}
	if !ok {
		return ErrWorkflowExists
	}
	return nil
}

// Get returns the workflow with the given id.
func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := s.client.Get(ctx, stateKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrWorkflowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow %s: %w", id, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal workflow %s: %w", id, err)
	}
	return &state, nil
}

// Update overwrites an existing workflow state. XX refuses to resurrect a
// workflow that was never created.
func (s *RedisStore) Update(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", state.ID, err)
	}

	ok, err := s.client.SetXX(ctx, stateKey(state.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("update workflow %s: %w", state.ID, err)
	}
	if !ok {
		return ErrWorkflowNotFound
	}
	return nil
}

// CompleteOnce claims the completion marker with SETNX; the single winner
// of the race gets true back from Redis, everyone else loses atomically.
func (s *RedisStore) CompleteOnce(ctx context.Context, id string) error {
	exists, err := s.client.Exists(ctx, stateKey(id)).Result()
	if err != nil {
		return fmt.Errorf("check workflow %s: %w", id, err)
	}
	if exists == 0 {
		return ErrWorkflowNotFound
	}

	ok, err := s.client.SetNX(ctx, doneKey(id), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("complete workflow %s: %w", id, err)
	}
	if !ok {
		return ErrAlreadyCompleted
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
