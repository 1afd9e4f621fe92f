package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mfgsight/mfgsight-ai-go/internal/models"
)

// Recomputation is pure given the same input window, so short TTLs balance
// freshness against repeated store reads.
const (
	ForecastTTL = 2 * time.Minute
	HistoryTTL  = 5 * time.Minute
)

// Store is the Redis surface the cache uses; *database.RedisClient
// satisfies it. Get reports a missing key as redis.Nil.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// ForecastCache memoizes historical-series reads and derived forecasts in
// Redis, keyed by (entity key, lookback window, horizon). Cache failures
// degrade to recomputation and never fail the read path.
type ForecastCache struct {
	store  Store
	logger *logrus.Logger
}

// NewForecastCache wraps a Redis store for forecast memoization.
func NewForecastCache(store Store, logger *logrus.Logger) *ForecastCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &ForecastCache{store: store, logger: logger}
}

func forecastKey(entityKey string, lookbackDays, horizonDays int) string {
	return fmt.Sprintf("ai:forecast:%s:%d:%d", entityKey, lookbackDays, horizonDays)
}

func historyKey(entityKey string, lookbackDays int) string {
	return fmt.Sprintf("ai:history:%s:%d", entityKey, lookbackDays)
}

// GetForecast returns a memoized forecast if present.
func (c *ForecastCache) GetForecast(ctx context.Context, entityKey string, lookbackDays, horizonDays int) (*models.MetricForecast, bool) {
	payload, err := c.store.Get(ctx, forecastKey(entityKey, lookbackDays, horizonDays))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("Forecast cache read failed")
		}
		return nil, false
	}

	var forecast models.MetricForecast
	if err := json.Unmarshal(payload, &forecast); err != nil {
		c.logger.WithError(err).Warn("Corrupt forecast cache entry, ignoring")
		return nil, false
	}
	return &forecast, true
}

// SetForecast stores a forecast with the prediction TTL.
func (c *ForecastCache) SetForecast(ctx context.Context, entityKey string, lookbackDays, horizonDays int, forecast *models.MetricForecast) {
	payload, err := json.Marshal(forecast)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal forecast for caching")
		return
	}
	if err := c.store.Set(ctx, forecastKey(entityKey, lookbackDays, horizonDays), payload, ForecastTTL); err != nil {
		c.logger.WithError(err).Debug("Forecast cache write failed")
	}
}

// GetHistory returns a memoized history read if present.
func (c *ForecastCache) GetHistory(ctx context.Context, entityKey string, lookbackDays int) ([]models.HistoricalDataPoint, bool) {
	payload, err := c.store.Get(ctx, historyKey(entityKey, lookbackDays))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Debug("History cache read failed")
		}
		return nil, false
	}

	var series []models.HistoricalDataPoint
	if err := json.Unmarshal(payload, &series); err != nil {
		c.logger.WithError(err).Warn("Corrupt history cache entry, ignoring")
		return nil, false
	}
	return series, true
}

// SetHistory stores a history window with the history TTL.
func (c *ForecastCache) SetHistory(ctx context.Context, entityKey string, lookbackDays int, series []models.HistoricalDataPoint) {
	payload, err := json.Marshal(series)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal history for caching")
		return
	}
	if err := c.store.Set(ctx, historyKey(entityKey, lookbackDays), payload, HistoryTTL); err != nil {
		c.logger.WithError(err).Debug("History cache write failed")
	}
}

// Invalidate drops the memoized forecast and history window for one entity
// so the next read recomputes from the store.
func (c *ForecastCache) Invalidate(ctx context.Context, entityKey string, lookbackDays, horizonDays int) {
	keys := []string{
		forecastKey(entityKey, lookbackDays, horizonDays),
		historyKey(entityKey, lookbackDays),
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.WithError(err).Debug("Cache invalidation failed")
	}
}
