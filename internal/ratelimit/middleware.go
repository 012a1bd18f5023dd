package ratelimit

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// Rule is the budget applied to one route.
type Rule struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// Key builds the counter key for a client address.
func (r Rule) Key(clientAddr string) string {
	return r.Prefix + ":" + clientAddr
}

// Recorder receives a notification for every rejected request.
type Recorder interface {
	RecordRateLimited(rule string)
}

// MiddlewareOption customizes the middleware.
type MiddlewareOption func(*middleware)

// WithRecorder reports rejections to r.
func WithRecorder(r Recorder) MiddlewareOption {
	return func(m *middleware) { m.recorder = r }
}

// WithMiddlewareLogger sets the logger used for store failures and rejections.
func WithMiddlewareLogger(logger *zap.Logger) MiddlewareOption {
	return func(m *middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

type middleware struct {
	limiter  Limiter
	rule     Rule
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// Middleware enforces rule per client address. It belongs after
// authentication and authorization so only permitted callers spend budget.
// A cancelled request or a limiter failure does not proceed.
func Middleware(limiter Limiter, rule Rule, opts ...MiddlewareOption) fiber.Handler {
	m := &middleware{limiter: limiter, rule: rule, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m.handle
}

func (m *middleware) handle(c *fiber.Ctx) error {
	ctx := c.UserContext()
	key := m.rule.Key(c.IP())

	decision, err := m.limiter.CheckAndIncrement(ctx, key, m.rule.MaxAttempts, m.rule.Window)
	if err != nil && !errors.Is(err, ErrLimitExceeded) {
		m.logger.Error("rate limiter unavailable", zap.String("key", key), zap.Error(err))
		return apperrors.NewInternalError(err)
	}

	c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

	if !decision.Allowed {
		retry := decision.RetryAfter(m.now())
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry/time.Second)))
		if m.recorder != nil {
			m.recorder.RecordRateLimited(m.rule.Prefix)
		}
		m.logger.Warn("rate limit exceeded", zap.String("key", key), zap.Int("count", decision.Count))
		return apperrors.NewRateLimitExceeded("too many requests, please try again later")
	}

	if ctx.Err() != nil {
		return apperrors.NewInternalError(ctx.Err())
	}
	return c.Next()
}
