package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/airsentry/airsentry/internal/api/models"
)

// RateLimitConfig is a request budget over a sliding window.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Per-route budgets. Alert endpoints can trigger outbound SMS sends, so
// their budget is the strictest.
var (
	AlertRateLimit     = RateLimitConfig{RequestLimit: 10, WindowLength: time.Minute}
	ExpensiveRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}
	StandardRateLimit  = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits requests per client IP. The key honors
// X-Forwarded-For, which chi's RealIP middleware has already resolved.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(
				GetRequestID(r.Context()),
				"Rate limit exceeded. Please try again later.",
			)
			problem.Instance = r.URL.Path

			// httprate does not expose the window reset time, so advise
			// the full window.
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowLength.Seconds())))
			problem.Write(w)
		}),
	)
}
