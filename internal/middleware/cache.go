package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHeader     = "X-Cache"
)

type responseMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta starts the clock for catalog responses and collects the meta fields
// handlers attach before writing the envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether the catalog cache served the response, in the meta block
// and as an X-Cache header.
func SetCacheHit(c *gin.Context, hit bool) {
	if m := metaFrom(c); m != nil {
		m.values["cache_hit"] = hit
	}
	if hit {
		c.Header(cacheHeader, "HIT")
	} else {
		c.Header(cacheHeader, "MISS")
	}
}

// ExtractMeta snapshots the collected fields plus the elapsed processing time. It returns
// nil on routes mounted without WithResponseMeta.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	m := metaFrom(c)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m.values)+1)
	for k, v := range m.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(m.start).Milliseconds()
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	v, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	m, _ := v.(*responseMeta)
	return m
}
