package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	rediskey "webshop/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// luaRateLimit：Redis 滑动窗口限流 Lua 脚本（原子操作）
// KEYS[1]=限流key，ARGV[1]=当前时间戳，ARGV[2]=窗口开始时间戳，ARGV[3]=窗口秒数
// ARGV[4]=本次请求的唯一成员，ARGV[5]=窗口内上限
// 返回：当前窗口内的请求数（超限返回 -1）
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// MaxBodyBytes 限流前读取请求体的上限。
const MaxBodyBytes = 1 << 20

// RedisRateLimit Redis 分布式限流，按客户邮箱计数，取不到邮箱时按 IP。
// route 用于区分不同接口的计数器。rdb 为 nil 时不限流。
func RedisRateLimit(rdb *rd.Client, route string, limit int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		email, err := extractCustomerEmail(c)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": "A kérés túl nagy",
				"kind":  "invalid_order",
			})
			return
		}

		var key string
		if email != "" {
			key = rediskey.RateLimitCustomerKey(route, email)
		} else {
			key = rediskey.RateLimitIPKey(route, c.ClientIP())
		}

		now := time.Now()
		windowSec := int64(window.Seconds())
		windowStart := now.Unix() - windowSec
		member := fmt.Sprintf("%d-%d", now.Unix(), now.UnixNano())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.Unix(), windowStart, windowSec, member, limit).Int()
		if err != nil {
			// Redis 出错时放行（降级策略）
			log.Warn("rate limit check failed, allowing request", zap.String("route", route), zap.Error(err))
			c.Next()
			return
		}

		if res < 0 {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Túl sok kérés, kérjük próbálja újra később",
				"kind":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}

// extractCustomerEmail 从 body 中读取客户邮箱（不消耗 body，后续 handler 可重复读）。
// 兼容 complete-order（顶层 customerInfo）和 create-payment-intent（orderData.customerInfo）。
// 只有读 body 失败（包括超过 MaxBodyBytes）才返回错误。
func extractCustomerEmail(c *gin.Context) (string, error) {
	if c.Request.Body == nil {
		return "", nil
	}
	bodyBytes, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	type customer struct {
		Email string `json:"email"`
	}
	var req struct {
		CustomerInfo customer `json:"customerInfo"`
		OrderData    struct {
			CustomerInfo customer `json:"customerInfo"`
		} `json:"orderData"`
	}
	if err := json.Unmarshal(bodyBytes, &req); err != nil {
		return "", nil
	}
	if e := strings.TrimSpace(req.CustomerInfo.Email); e != "" {
		return e, nil
	}
	return strings.TrimSpace(req.OrderData.CustomerInfo.Email), nil
}
