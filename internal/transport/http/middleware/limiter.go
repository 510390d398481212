// file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// IPRateLimiter 按客户端 IP 限速。不活跃的 IP 条目由缓存过期自动清理。
type IPRateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter 创建一个新的IP速率限制器
func NewIPRateLimiter(r float64, b int) *IPRateLimiter {
	if b <= 0 {
		b = 1
	}
	return &IPRateLimiter{
		limiters: cache.New(15*time.Minute, 10*time.Minute),
		rate:     rate.Limit(r),
		burst:    b,
	}
}

// getLimiter 返回或创建指定IP的速率限制器，并刷新其过期时间
func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if x, found := l.limiters.Get(ip); found {
		limiter := x.(*rate.Limiter)
		l.limiters.SetDefault(ip, limiter)
		return limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters.SetDefault(ip, limiter)
	return limiter
}

// Middleware 返回 gin 中间件，超出速率时返回 429
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试。"})
			return
		}
		c.Next()
	}
}
