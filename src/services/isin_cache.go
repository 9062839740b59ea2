// backend/src/services/isin_cache.go
package services

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/utils"
)

// ISINCache holds resolution results keyed by normalized ISIN so repeated
// checks within the TTL never hit the upstream API again. Error results are
// cached too; rate-limited results are not, so they get retried.
type ISINCache struct {
	c *cache.Cache
}

func NewISINCache(ttl, cleanupInterval time.Duration) *ISINCache {
	return &ISINCache{c: cache.New(ttl, cleanupInterval)}
}

func (ic *ISINCache) Get(isin string) (models.ResolveResult, bool) {
	v, found := ic.c.Get(utils.NormalizeISIN(isin))
	if !found {
		return models.ResolveResult{}, false
	}
	res, ok := v.(models.ResolveResult)
	if !ok {
		return models.ResolveResult{}, false
	}
	return res, true
}

func (ic *ISINCache) Set(isin string, res models.ResolveResult) {
	if res.IsRateLimit {
		return
	}
	ic.c.Set(utils.NormalizeISIN(isin), res, cache.DefaultExpiration)
}

func (ic *ISINCache) Delete(isin string) {
	ic.c.Delete(utils.NormalizeISIN(isin))
}

func (ic *ISINCache) Flush() {
	ic.c.Flush()
}

func (ic *ISINCache) ItemCount() int {
	return ic.c.ItemCount()
}
