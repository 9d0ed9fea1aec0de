package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Repository persists session documents.
type Repository interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, id string) error
}

type redisRepository struct {
	kv  pkgredis.KV
	ttl time.Duration
}

// NewRedisRepository stores sessions as JSON documents that expire after ttl of inactivity.
func NewRedisRepository(kv pkgredis.KV, ttl time.Duration) (Repository, error) {
	if kv == nil {
		return nil, errors.New("redis store required")
	}
	return &redisRepository{kv: kv, ttl: ttl}, nil
}

// Get returns a fresh State when nothing is stored under id.
func (r *redisRepository) Get(ctx context.Context, id string) (*State, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	raw, err := r.kv.Get(ctx, r.kv.SessionKey(id))
	if errors.Is(err, redis.Nil) {
		return &State{ID: id}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode session")
	}
	state.ID = id
	return &state, nil
}

func (r *redisRepository) Save(ctx context.Context, state *State) error {
	if state == nil || strings.TrimSpace(state.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode session")
	}
	if err := r.kv.Set(ctx, r.kv.SessionKey(state.ID), string(payload), r.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session")
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, id string) error {
	if err := r.kv.Del(ctx, r.kv.SessionKey(id)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete session")
	}
	return nil
}
