package backend

import (
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/logger"
)

// handleRateLimit installs a token bucket of requestsPerSecond in front of all routes. The
// bucket holds the tokens of one second, at least one.
func (b *Backend) handleRateLimit(requestsPerSecond float64) {
	burst := int(math.Max(1, math.Ceil(requestsPerSecond)))
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	logger.Default().Debugf("rate limit: %g requests per second, burst %d", requestsPerSecond, burst)

	rateLimitMiddleware := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				b.metrics.RateLimited()
				logger.FromContext(r.Context()).Warnln("rate limited", r.URL, r.Method)
				envelope.Error(w, r, apierror.TooManyRequests())
				return
			}
			h.ServeHTTP(w, r)
		})
	}
	b.router.Use(rateLimitMiddleware)
}
