package redis

import (
	"context"
	"errors"
	"time"

	"github.com/gyansetu/pulse/internal/domain/mastery"
	"github.com/gyansetu/pulse/internal/domain/shared"
)

// MasteryCache keeps hot per-concept mastery estimates in Redis. The
// mastery engine service reads through it before falling back to the
// Postgres record table.
type MasteryCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewMasteryCache creates a new MasteryCache.
func NewMasteryCache(cache *Cache) *MasteryCache {
	return &MasteryCache{
		cache: cache,
		ttl:   TTLMasteryRecord,
	}
}

// cachedRecord is the Redis representation of a mastery record.
type cachedRecord struct {
	StudentID    string    `json:"student_id"`
	ConceptID    string    `json:"concept_id"`
	MasteryScore float64   `json:"mastery_score"`
	Confidence   float64   `json:"confidence"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Get returns the cached record for (student, concept), or
// shared.ErrRecordNotFound on a miss.
func (c *MasteryCache) Get(ctx context.Context, studentID mastery.StudentID, conceptID string) (*mastery.Record, error) {
	var cr cachedRecord
	key := MasteryKey(string(studentID), conceptID)

	if err := c.cache.Get(ctx, key, &cr); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrRecordNotFound
		}
		return nil, err
	}

	return &mastery.Record{
		StudentID:    mastery.StudentID(cr.StudentID),
		ConceptID:    cr.ConceptID,
		MasteryScore: cr.MasteryScore,
		Confidence:   cr.Confidence,
		LastUpdated:  cr.LastUpdated,
	}, nil
}

// Set stores a record with the configured TTL.
func (c *MasteryCache) Set(ctx context.Context, rec *mastery.Record) error {
	if rec == nil {
		return nil
	}

	key := MasteryKey(string(rec.StudentID), rec.ConceptID)
	return c.cache.Set(ctx, key, cachedRecord{
		StudentID:    string(rec.StudentID),
		ConceptID:    rec.ConceptID,
		MasteryScore: rec.MasteryScore,
		Confidence:   rec.Confidence,
		LastUpdated:  rec.LastUpdated,
	}, c.ttl)
}

// Invalidate removes the cached record for (student, concept).
func (c *MasteryCache) Invalidate(ctx context.Context, studentID mastery.StudentID, conceptID string) error {
	return c.cache.Delete(ctx, MasteryKey(string(studentID), conceptID))
}
