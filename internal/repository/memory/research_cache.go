package memory

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ResearchCache is the in-process layer in front of the persisted research
// summaries. Hits here skip both the database and the research agent.
type ResearchCache struct {
	cache *cache.Cache
}

func NewResearchCache(ttl time.Duration) *ResearchCache {
	// Purge expired entries at a fraction of the TTL
	c := cache.New(ttl, ttl/4)
	return &ResearchCache{
		cache: c,
	}
}

func (r *ResearchCache) Save(fingerprint, summary string) {
	r.cache.Set(fingerprint, summary, cache.DefaultExpiration)
}

func (r *ResearchCache) Get(fingerprint string) (string, bool) {
	if x, found := r.cache.Get(fingerprint); found {
		return x.(string), true
	}
	return "", false
}

func (r *ResearchCache) Delete(fingerprint string) {
	r.cache.Delete(fingerprint)
}
