package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes issue-tracker lookups between polls so a watch loop does
// not search for the same dedup key on every tick
type Cache struct {
	cache    *gocache.Cache
	duration time.Duration
}

func New(duration time.Duration) *Cache {
	return &Cache{
		cache:    gocache.New(duration, duration*2),
		duration: duration,
	}
}

// SetIssueURL records that an open issue exists for key
func (c *Cache) SetIssueURL(key, url string) {
	c.cache.Set("issue:"+key, url, c.duration)
}

// GetIssueURL returns the cached issue URL for key
func (c *Cache) GetIssueURL(key string) (string, bool) {
	if v, found := c.cache.Get("issue:" + key); found {
		return v.(string), true
	}
	return "", false
}

func (c *Cache) Flush() {
	c.cache.Flush()
}
