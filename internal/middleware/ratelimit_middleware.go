package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"hoa-ledger/internal/redis"
	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"
	ledger_errors "hoa-ledger/pkg/errors"

	"github.com/gin-gonic/gin"
)

type limitFunc func(ctx context.Context, key string) (*redis.RateLimitResult, error)

// ReceiptRateLimitMiddleware throttles receipt lookups per client IP, which
// keeps the receipt space from being enumerated.
func ReceiptRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return rateLimit(limiter.AllowReceiptLookup, func(c *gin.Context) string {
		return c.ClientIP()
	}, "receipt lookup rate limit exceeded")
}

// VoteRateLimitMiddleware throttles vote submissions per voter, falling back
// to the client IP for anonymous callers. Should run after AuthMiddleware.
func VoteRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	if limiter == nil {
		return passThrough
	}
	return rateLimit(limiter.AllowVote, func(c *gin.Context) string {
		if voterID, ok := services.VoterIDFromContext(c.Request.Context()); ok {
			return redis.VoterKey(voterID)
		}
		return redis.AddressKey(c.ClientIP())
	}, "vote rate limit exceeded")
}

func rateLimit(allow limitFunc, keyOf func(*gin.Context) string, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := allow(c.Request.Context(), keyOf(c))
		if err != nil {
			// ErrorHandler renders it as a retryable 503 with Retry-After
			_ = c.Error(fmt.Errorf("%w: rate limit store: %v", ledger_errors.ErrServiceUnavailable, err))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func passThrough(c *gin.Context) {
	c.Next()
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
