package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/docfinder/appointments-api/pkg/logging"
)

var velocityTracer = otel.Tracer("docfinder.internal.payments.velocity")

// VelocityChecker limits how many checkout sessions a user may open per window.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	MaxSessionsPerUser int
	Window             time.Duration
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxSessionsPerUser: 10,
		Window:             time.Hour,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker creates a new velocity checker.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if logger == nil {
		logger = logging.Default()
	}
	defaults := DefaultVelocityConfig()
	if config.MaxSessionsPerUser <= 0 {
		config.MaxSessionsPerUser = defaults.MaxSessionsPerUser
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

// CheckSessionVelocity counts a checkout attempt for userID. Redis errors fail open.
func (v *VelocityChecker) CheckSessionVelocity(ctx context.Context, userID string) (*VelocityResult, error) {
	if v == nil || v.redis == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := velocityTracer.Start(ctx, "velocity.check_checkout_session")
	defer span.End()
	span.SetAttributes(attribute.String("docfinder.user_id", userID))

	key := sessionVelocityKey(userID)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.Window)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open - allow the checkout if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxSessionsPerUser,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxSessionsPerUser,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d checkout sessions in %s", v.config.MaxSessionsPerUser, v.config.Window)
		v.logger.Warn("checkout session velocity exceeded",
			"user_id", userID,
			"count", count,
			"max", v.config.MaxSessionsPerUser,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// ResetSessionVelocity clears the counter for a user (admin use).
func (v *VelocityChecker) ResetSessionVelocity(ctx context.Context, userID string) error {
	if v == nil || v.redis == nil {
		return nil
	}
	return v.redis.Del(ctx, sessionVelocityKey(userID)).Err()
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	// Set expiry only on first increment
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}

	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

func sessionVelocityKey(userID string) string {
	return "velocity:checkout:" + userID
}
