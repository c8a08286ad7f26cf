package mass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache is the byte cache used for estimates; *cache.Store satisfies it
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// EstimateResult 人群预估
type EstimateResult struct {
	Mode   Mode           `json:"mode"`
	Total  int            `json:"total"`
	By     map[string]int `json:"by"`
	Cached bool           `json:"cached"`
}

// Estimator counts the population of a targets_spec without planning anything
type Estimator struct {
	resolver *Resolver
	cache    Cache
	ttl      time.Duration
	logger   *logrus.Entry
}

// NewEstimator creates an estimator; cache may be nil
func NewEstimator(resolver *Resolver, cache Cache, ttl time.Duration, logger *logrus.Entry) *Estimator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Estimator{
		resolver: resolver,
		cache:    cache,
		ttl:      ttl,
		logger:   logger.WithField("component", "estimate"),
	}
}

func estimateKey(spec TargetSpec) string {
	sum := sha256.Sum256([]byte(CanonicalKey(spec)))
	return "estimate:" + hex.EncodeToString(sum[:])
}

// Estimate returns the uncapped population size of raw and of its parts
func (e *Estimator) Estimate(ctx context.Context, raw json.RawMessage) (*EstimateResult, error) {
	spec, err := ParseTargetSpec(raw)
	if err != nil {
		return nil, err
	}

	key := estimateKey(spec)
	if e.cache != nil {
		data, found, err := e.cache.Get(ctx, key)
		if err != nil {
			e.logger.WithError(err).Warn("Estimate cache read failed")
		} else if found {
			var cached EstimateResult
			if err := json.Unmarshal(data, &cached); err == nil {
				cached.Cached = true
				return &cached, nil
			}
		}
	}

	total, by, err := e.resolver.Breakdown(ctx, spec)
	if err != nil {
		return nil, err
	}
	result := &EstimateResult{Mode: spec.Mode(), Total: total, By: by}

	if e.cache != nil && e.ttl > 0 {
		if data, err := json.Marshal(result); err == nil {
			if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
				e.logger.WithError(err).Warn("Estimate cache write failed")
			}
		}
	}
	return result, nil
}
