package steam

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/yohcop/openid-go"
)

const (
	discoveryTTL      = time.Hour
	discoveryCapacity = 1024
)

// discoveryCache implements openid.DiscoveryCache on a bounded ttlcache.
// Claimed ids come from the callback query, so entries must expire and be capped.
type discoveryCache struct {
	cache *ttlcache.Cache[string, openid.DiscoveredInfo]
}

func newDiscoveryCache(ttl time.Duration, capacity uint64) *discoveryCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, openid.DiscoveredInfo](ttl),
		ttlcache.WithCapacity[string, openid.DiscoveredInfo](capacity),
		ttlcache.WithDisableTouchOnHit[string, openid.DiscoveredInfo](),
	)
	go cache.Start()
	return &discoveryCache{cache: cache}
}

func (c *discoveryCache) Put(id string, info openid.DiscoveredInfo) {
	c.cache.Set(id, info, ttlcache.DefaultTTL)
}

func (c *discoveryCache) Get(id string) openid.DiscoveredInfo {
	item := c.cache.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (c *discoveryCache) Len() int {
	return c.cache.Len()
}

func (c *discoveryCache) Close() {
	c.cache.Stop()
}
