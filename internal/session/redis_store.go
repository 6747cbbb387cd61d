package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Hash field layout of a persisted session entry.
const (
	fieldStartTime = "start_time"
	fieldIndex     = "current_question_index"
	answerPrefix   = "q:"
)

// RedisStore persists session state as a Redis hash per session key. Using a
// hash lets Save write the start time with HSETNX, so a persisted start time
// can never be overwritten no matter what the caller passes in.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a RedisStore backed by the given client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (r *RedisStore) Load(ctx context.Context, key string) (*State, error) {
	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrNoSession
	}

	startTime, err := strconv.ParseInt(fields[fieldStartTime], 10, 64)
	if err != nil || startTime <= 0 {
		// An entry that cannot prove when it started is unusable.
		// Discard it so the next start creates a fresh session.
		_ = r.rdb.Del(ctx, key).Err()
		return nil, ErrNoSession
	}

	st := &State{
		StartTime: startTime,
		Answers:   make(map[int64]int),
	}
	if idx, err := strconv.Atoi(fields[fieldIndex]); err == nil {
		st.CurrentQuestion = idx
	}
	for field, raw := range fields {
		qid, ok := parseAnswerField(field)
		if !ok {
			continue
		}
		order, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		st.Answers[qid] = order
	}
	return st, nil
}

func (r *RedisStore) Save(ctx context.Context, key string, state *State) error {
	pipe := r.rdb.Pipeline()
	pipe.HSetNX(ctx, key, fieldStartTime, state.StartTime)
	pipe.HSet(ctx, key, fieldIndex, state.CurrentQuestion)
	for qid, order := range state.Answers {
		pipe.HSet(ctx, key, answerPrefix+strconv.FormatInt(qid, 10), order)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", key, err)
	}
	return nil
}

func parseAnswerField(field string) (int64, bool) {
	raw, ok := strings.CutPrefix(field, answerPrefix)
	if !ok {
		return 0, false
	}
	qid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return qid, true
}
