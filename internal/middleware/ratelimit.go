package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix   = "rl:verify:"
	rateLimitWindow   = time.Minute
	defaultVerifyRate = 5
)

// VerificationRateLimit caps verification requests per phone number (or
// client IP when the body carries none) per minute. Every request sends an
// SMS through the provider. Without Redis, or on cache errors, it fails open.
func VerificationRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = defaultVerifyRate
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		_ = c.BodyParser(&req)
		subject := strings.Join(strings.Fields(req.PhoneNumber), "")
		if subject == "" {
			subject = c.IP()
		}
		key := rateLimitPrefix + subject

		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		defer cancel()

		var incr *redis.IntCmd
		var ttlCmd *redis.DurationCmd
		_, err := cache.Pipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			ttlCmd = p.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Warn("rate limit lookup failed", slog.Any("error", err))
			return c.Next()
		}

		// Every counter must expire. A key found without a TTL gets the
		// window applied, fresh or not.
		ttl := ttlCmd.Val()
		if ttl < 0 {
			if err := cache.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
				logger.Warn("rate limit expiry failed", slog.Any("error", err))
				cache.Del(ctx, key)
				return c.Next()
			}
			ttl = rateLimitWindow
		}

		if incr.Val() > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, formatSeconds(ttl))
			return fiber.NewError(fiber.StatusTooManyRequests, "too many verification attempts, try again later")
		}
		return c.Next()
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int((d + time.Second - 1) / time.Second))
}
