package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bidsflow/bidsflow/pkg/bids"
	"github.com/bidsflow/bidsflow/pkg/ziplist"
)

// Query identifies a generated dataset: which components were loaded, the
// index revision of each, and how they were filtered
type Query struct {
	Components []string
	Filters    map[string]ziplist.Filters
	Subject    []string
	Regex      bool
	// Revisions maps component names to their index revision. A component
	// missing from the index has no entry.
	Revisions map[string]string
}

// canonicalQuery is the order-independent form of a Query that is hashed
// into its key. Nil and empty lists encode differently on purpose: an unset
// filter is not a filter that matches nothing.
type canonicalQuery struct {
	Components []string                       `json:"components"`
	Filters    map[string]map[string][]string `json:"filters"`
	Subject    []string                       `json:"subject"`
	Regex      bool                           `json:"regex"`
	Revisions  map[string]string              `json:"revisions"`
}

// sorted returns a sorted copy of values, keeping nil and empty apart
func sorted(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}

// Key derives a stable cache key from the query
func (q Query) Key() string {
	c := canonicalQuery{
		Components: sorted(q.Components),
		Filters:    make(map[string]map[string][]string, len(q.Filters)),
		Subject:    sorted(q.Subject),
		Regex:      q.Regex,
		Revisions:  q.Revisions,
	}
	for name, f := range q.Filters {
		entities := make(map[string][]string, len(f))
		for entity, values := range f {
			entities[entity] = sorted(values)
		}
		c.Filters[name] = entities
	}

	// Only strings and string maps: encoding cannot fail. Map keys are
	// sorted, so equal queries encode identically.
	data, _ := json.Marshal(c)
	sum := sha256.Sum256(data)
	return "dataset:" + hex.EncodeToString(sum[:])
}

// DatasetCache stores generated datasets in a Cache backend
type DatasetCache struct {
	backend Cache
	ttl     time.Duration
	logger  *zap.Logger
}

// NewDatasetCache wraps a backend
func NewDatasetCache(backend Cache, ttl time.Duration, logger *zap.Logger) *DatasetCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetCache{backend: backend, ttl: ttl, logger: logger}
}

// Get returns the cached dataset for a query. A miss returns ErrCacheMiss.
func (c *DatasetCache) Get(ctx context.Context, q Query) (*bids.Dataset, error) {
	key := q.Key()
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var d bids.Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		c.logger.Warn("dropping undecodable cached dataset", zap.String("key", key), zap.Error(err))
		if delErr := c.backend.Delete(ctx, key); delErr != nil {
			c.logger.Warn("failed to delete cached dataset", zap.String("key", key), zap.Error(delErr))
		}
		return nil, ErrCacheMiss{Key: key}
	}
	c.logger.Debug("dataset cache hit", zap.String("key", key))
	return &d, nil
}

// Put caches a dataset for a query
func (c *DatasetCache) Put(ctx context.Context, q Query, d *bids.Dataset) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("cache: encode dataset: %w", err)
	}
	return c.backend.Set(ctx, q.Key(), data, c.ttl)
}

// Close closes the backend
func (c *DatasetCache) Close() error {
	return c.backend.Close()
}
