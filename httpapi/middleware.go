package httpapi

import (
	"net/http"
	"time"

	"github.com/arloliu/go-uhf/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the id of a request in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RateLimiter is a token bucket limiting commands sent to the reader.
type RateLimiter struct {
	limiter  *rate.Limiter
	allowed  prometheus.Counter
	rejected prometheus.Counter
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. Non-positive values fall back to 10 rps and twice the rate.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps * 2)
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		allowed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uhf_http_rate_limit_allowed_total",
			Help: "Hardware requests admitted by the rate limiter.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uhf_http_rate_limit_rejected_total",
			Help: "Hardware requests rejected by the rate limiter.",
		}),
	}
}

// Allow reports whether a request may proceed now.
func (l *RateLimiter) Allow() bool {
	if l.limiter.Allow() {
		l.allowed.Inc()
		return true
	}
	l.rejected.Inc()

	return false
}

func (l *RateLimiter) collectors() []prometheus.Collector {
	return []prometheus.Collector{l.allowed, l.rejected}
}

func (l *RateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, response{
				Success: false,
				Message: "too many requests",
			})

			return
		}
		c.Next()
	}
}

// requestID propagates X-Request-ID, generating one when the client sent
// none.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func accessLog(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Debug("http: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// cors allows browser clients from origin. Preflight requests are answered
// directly.
func cors(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		h.Set("Access-Control-Expose-Headers", RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
