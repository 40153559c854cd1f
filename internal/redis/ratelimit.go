package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{ip}:receipts              - receipt lookups per window
// - ratelimit:voter:{id}:votes           - cast attempts per window
// - ratelimit:ip:{ip}:votes              - anonymous cast attempts per window

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	ReceiptLimit  int           // Max receipt lookups per window
	ReceiptWindow time.Duration // Receipt lookup window
	VoteLimit     int           // Max cast attempts per window
	VoteWindow    time.Duration // Cast attempt window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		ReceiptLimit:  30,
		ReceiptWindow: time.Minute,
		VoteLimit:     10,
		VoteWindow:    time.Minute,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client goredis.UniversalClient
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// fixed window counter; the first hit in a window sets the expiry
var rateLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	if current >= limit then
		local ttl = redis.call('PTTL', key)
		if ttl < 0 then
			ttl = window
		end
		return {0, 0, ttl}
	end

	current = redis.call('INCR', key)
	if current == 1 then
		redis.call('PEXPIRE', key, window)
	end
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window)
		ttl = window
	end
	return {1, limit - current, ttl}
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client goredis.UniversalClient, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// VoterKey is the vote limit subject for an identified voter.
func VoterKey(voterID string) string {
	return "voter:" + voterID
}

// AddressKey is the vote limit subject for an anonymous caller.
func AddressKey(ip string) string {
	return "ip:" + ip
}

func receiptsKey(clientKey string) string {
	return fmt.Sprintf("ratelimit:%s:receipts", clientKey)
}

func votesKey(voterKey string) string {
	return fmt.Sprintf("ratelimit:%s:votes", voterKey)
}

// AllowReceiptLookup checks if a client may verify another receipt. Lookups
// are throttled so receipt codes cannot be enumerated.
func (r *RateLimiter) AllowReceiptLookup(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, receiptsKey(clientKey), r.config.ReceiptLimit, r.config.ReceiptWindow)
}

// AllowVote checks if a voter (or client address, for anonymous casts) may
// submit another cast attempt.
func (r *RateLimiter) AllowVote(ctx context.Context, voterKey string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, votesKey(voterKey), r.config.VoteLimit, r.config.VoteWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := rateLimitScript.Run(ctx, r.client, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Millisecond,
		Limit:     limit,
	}, nil
}

// ResetVoter clears the vote window of an identified voter.
func (r *RateLimiter) ResetVoter(ctx context.Context, voterID string) (bool, error) {
	return r.reset(ctx, votesKey(VoterKey(voterID)))
}

// ResetAddress clears both windows held by a client address: its receipt
// lookups and its anonymous cast attempts.
func (r *RateLimiter) ResetAddress(ctx context.Context, ip string) (bool, error) {
	return r.reset(ctx, receiptsKey(ip), votesKey(AddressKey(ip)))
}

// reset reports whether any window existed.
func (r *RateLimiter) reset(ctx context.Context, keys ...string) (bool, error) {
	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit reset failed: %w", err)
	}
	return n > 0, nil
}
