package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/state"
)

const sessionKeyPrefix = "research:session:"

// Redis is the registry backend for deployments that want sessions to
// survive process restarts. Atomic get/set per session id is all the core
// requires of storage; Redis string keys give exactly that.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr string, ttl time.Duration, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     os.Getenv("REDIS_PASSWORD"),
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl, logger: logger}, nil
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Client exposes the underlying connection for health checks.
func (r *Redis) Client() redis.UniversalClient { return r.client }

func (r *Redis) Create(ctx context.Context, sessionID, query string, cfg state.ResearchConfig) (*state.ResearchState, error) {
	st := state.New(sessionID, query, cfg)
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	// SETNX makes duplicate detection atomic with creation.
	ok, err := r.client.SetNX(ctx, sessionKey(sessionID), data, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateSession
	}

	r.logger.Info("Created research session",
		zap.String("session_id", sessionID),
		zap.String("query", query),
	)
	return st, nil
}

func (r *Redis) Get(ctx context.Context, sessionID string) (*state.ResearchState, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var st state.ResearchState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &st, nil
}

func (r *Redis) Update(ctx context.Context, st *state.ResearchState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// XX: only write if the key still exists, so a session cancelled while
	// a step was in flight never gets silently recreated.
	ok, err := r.client.SetXX(ctx, sessionKey(st.SessionID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *Redis) Cancel(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	r.logger.Info("Cancelled research session", zap.String("session_id", sessionID))
	return true, nil
}

func (r *Redis) Close() error { return r.client.Close() }
