package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"NFTAppraiser/internal/domain/models"
	"NFTAppraiser/pkg/cache"
	applogger "NFTAppraiser/pkg/logger"
)

// RedisPerformanceStore persists tracker snapshots as one JSON blob so the
// decayed error profiles survive restarts. Snapshots never expire; each save
// replaces the previous one.
type RedisPerformanceStore struct {
	cache cache.Service
	key   string
	l     *applogger.Logger
}

func NewRedisPerformanceStore(c cache.Service, key string) *RedisPerformanceStore {
	if key == "" {
		key = "appraiser:performance:snapshot"
	}
	return &RedisPerformanceStore{cache: c, key: key}
}

// SetLogger injects a structured logger.
func (s *RedisPerformanceStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *RedisPerformanceStore) Save(ctx context.Context, records []models.ModelPerformanceRecord) error {
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal performance snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, s.key, b, 0); err != nil {
		if s.l != nil {
			s.l.Error("performance snapshot save error", applogger.Error(err),
				applogger.String("key", s.key))
		}
		return fmt.Errorf("save performance snapshot: %w", err)
	}
	if s.l != nil {
		s.l.Debug("performance snapshot saved",
			applogger.String("key", s.key),
			applogger.Int("records", len(records)))
	}
	return nil
}

// Load returns the last snapshot, or an empty slice when none exists yet.
func (s *RedisPerformanceStore) Load(ctx context.Context) ([]models.ModelPerformanceRecord, error) {
	b, err := s.cache.Get(ctx, s.key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load performance snapshot: %w", err)
	}
	var records []models.ModelPerformanceRecord
	if err := json.Unmarshal(b, &records); err != nil {
		return nil, fmt.Errorf("decode performance snapshot: %w", err)
	}
	return records, nil
}
