package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"campus-events/pkg/response"
)

// RateLimiter 分布式限流器（Redis 实现）
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 速率限制中间件
// 优先使用 Redis 滑动窗口；rdb 为 nil 或出错时退回进程内固定窗口计数
func RateLimit(rdb RateLimiter, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	local := newLocalLimiter(window)

	return func(c *gin.Context) {
		if limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.ClientIP(), c.FullPath())

		var allowed bool
		if rdb != nil {
			var err error
			allowed, err = rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
			if err != nil {
				logger.Warn("Redis 限流失败，使用本地计数", zap.Error(err))
				allowed = local.allow(key, limit)
			}
		} else {
			allowed = local.allow(key, limit)
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			response.AbortError(c, http.StatusTooManyRequests, 10004, "Too many requests, please try again later")
			return
		}

		c.Next()
	}
}

// ── 进程内限流 ──

type localLimiter struct {
	counters *gocache.Cache
	window   time.Duration
}

func newLocalLimiter(window time.Duration) *localLimiter {
	return &localLimiter{
		counters: gocache.New(window, 2*window),
		window:   window,
	}
}

// allow 窗口内第一次请求创建计数器，之后原子递增
func (l *localLimiter) allow(key string, limit int) bool {
	if err := l.counters.Add(key, 1, l.window); err == nil {
		return limit >= 1
	}
	n, err := l.counters.IncrementInt(key, 1)
	if err != nil {
		// 计数器恰好过期，重新开始一个窗口
		l.counters.Set(key, 1, l.window)
		return true
	}
	return n <= limit
}
