package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"hongeet.dev/backend/internal/models"
	"hongeet.dev/backend/internal/utils"
)

// Limiter decides whether one more request from key fits in its window.
type Limiter interface {
	Check(ctx context.Context, key string) (utils.LimitDecision, error)
}

// RateLimitMiddleware limits requests per client IP.
type RateLimitMiddleware struct {
	limiter Limiter
	logger  *utils.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter Limiter, logger *utils.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger.Named("rate_limit"),
	}
}

// Limit rejects requests over the limit with 429. Limiter failures let the request through.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := utils.GetRequestIP(r)

		decision, err := m.limiter.Check(r.Context(), ip)
		if err != nil {
			m.logger.Warn("Rate limiter unavailable", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			m.logger.Debug("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			h.Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(time.Until(decision.ResetAt).Seconds())))))
			err := models.NewDomainError(models.ErrTooManyRequests, nil, "rate limit exceeded", http.StatusTooManyRequests, "api")
			utils.RespondWithError(w, models.CodeRateLimited, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}
