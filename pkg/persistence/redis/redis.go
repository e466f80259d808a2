// Package redis stores sessions and flow snapshots in Redis. Every write
// refreshes the key's TTL, so idle records expire without a sweep.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/lexflow/pkg/models"
	"github.com/dukex/lexflow/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "lexflow:session:"
	flowPrefix    = "lexflow:flow:"
)

// Persistence implements persistence.Persistence on a Redis server.
type Persistence struct {
	client      redis.UniversalClient
	logger      *slog.Logger
	sessionRepo *SessionRepository
	flowRepo    *FlowRepository
}

// NewPersistence connects to the server at redisURL (redis://[:password@]host:port/db).
// A ttl of zero keeps records forever.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string, ttl time.Duration) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)

	return &Persistence{
		client:      client,
		logger:      logger,
		sessionRepo: &SessionRepository{store: &keyStore[models.Session]{client: client, prefix: sessionPrefix, ttl: ttl, notFound: persistence.ErrSessionNotFound}},
		flowRepo:    &FlowRepository{store: &keyStore[models.StepState]{client: client, prefix: flowPrefix, ttl: ttl, notFound: persistence.ErrFlowNotFound}},
	}, nil
}

func (p *Persistence) SessionRepository() persistence.SessionRepository {
	return p.sessionRepo
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(ctx context.Context) error {
	if err := p.client.Close(); err != nil {
		p.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)

		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

type keyStore[T any] struct {
	client   redis.UniversalClient
	prefix   string
	ttl      time.Duration
	notFound error
}

func (s *keyStore[T]) save(ctx context.Context, id string, record *T) error {
	if id == "" {
		return persistence.ErrInvalidID
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	return nil
}

func (s *keyStore[T]) load(ctx context.Context, id string) (*T, error) {
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, s.notFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	return &record, nil
}

func (s *keyStore[T]) remove(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.prefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	if n == 0 {
		return s.notFound
	}

	return nil
}

type SessionRepository struct {
	store *keyStore[models.Session]
}

func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	if err := r.store.save(ctx, session.ID, session); err != nil {
		return persistence.NewSessionError("Save", session.ID, err)
	}

	return nil
}

func (r *SessionRepository) ByID(ctx context.Context, id string) (*models.Session, error) {
	session, err := r.store.load(ctx, id)
	if err != nil {
		return nil, persistence.NewSessionError("ByID", id, err)
	}

	return session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.remove(ctx, id); err != nil {
		return persistence.NewSessionError("Delete", id, err)
	}

	return nil
}

// IdleIDs reports nothing; Redis expires idle sessions through the key TTL.
func (r *SessionRepository) IdleIDs(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

type FlowRepository struct {
	store *keyStore[models.StepState]
}

func (r *FlowRepository) Save(ctx context.Context, state *models.StepState) error {
	if err := r.store.save(ctx, state.ID, state); err != nil {
		return persistence.NewFlowError("Save", state.ID, err)
	}

	return nil
}

func (r *FlowRepository) ByID(ctx context.Context, id string) (*models.StepState, error) {
	state, err := r.store.load(ctx, id)
	if err != nil {
		return nil, persistence.NewFlowError("ByID", id, err)
	}

	return state, nil
}

func (r *FlowRepository) Delete(ctx context.Context, id string) error {
	if err := r.store.remove(ctx, id); err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	return nil
}

// IdleIDs reports nothing; Redis expires idle flows through the key TTL.
func (r *FlowRepository) IdleIDs(context.Context, time.Time) ([]string, error) {
	return nil, nil
}
