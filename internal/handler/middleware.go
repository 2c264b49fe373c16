package handler

import (
	"context"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/matthewbaird/compliance/internal/logging"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	requestIDKey
)

// TenantID returns the tenant set by RequireTenant.
func TenantID(ctx context.Context) string {
	id, _ := ctx.Value(tenantKey).(string)
	return id
}

// WithTenant returns a context scoped to tenantID.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// RequestID returns the request ID set by RequestLogger.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestLogger assigns a request ID, stores a request-scoped logger in the
// context and logs each request on completion.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}
			start := time.Now()

			reqLogger := logger.With(
				zap.String(logging.FieldRequestID, requestID),
				zap.String(logging.FieldMethod, r.Method),
				zap.String(logging.FieldPath, r.URL.Path),
				zap.String(logging.FieldRemoteAddr, r.RemoteAddr),
			)
			if tenantID := r.Header.Get("X-Tenant-ID"); tenantID != "" {
				reqLogger = reqLogger.With(zap.String(logging.FieldTenantID, tenantID))
			}

			ctx := logging.WithLogger(r.Context(), reqLogger)
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int(logging.FieldStatusCode, status),
				zap.Duration(logging.FieldDuration, time.Since(start)),
				zap.Int(logging.FieldBytes, ww.BytesWritten()),
			}
			switch {
			case status >= 500:
				reqLogger.Error("request completed with server error", fields...)
			case status >= 400:
				reqLogger.Warn("request completed with client error", fields...)
			default:
				reqLogger.Info("request completed", fields...)
			}
		})
	}
}

// Recovery turns a panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.FromContext(r.Context()).Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequireTenant rejects requests without a tenant. Browsers cannot set
// headers on websocket upgrades, so the tenant_id query parameter is accepted
// when the header is absent.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			tenantID = r.URL.Query().Get("tenant_id")
		}
		if tenantID == "" {
			writeError(w, http.StatusBadRequest, "MISSING_TENANT", "X-Tenant-ID header is required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
	})
}

// TenantRateLimiter applies a token bucket per tenant.
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewTenantRateLimiter(rps float64, burst int) *TenantRateLimiter {
	return &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (l *TenantRateLimiter) limiter(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[tenantID] = lim
	}
	return lim
}

// Cleanup drops limiters whose bucket is full, i.e. tenants that have been
// idle long enough to refill.
func (l *TenantRateLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
}

// Run calls Cleanup every interval until ctx is done.
func (l *TenantRateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Middleware answers 429 once a tenant exceeds its budget. It must run after
// RequireTenant.
func (l *TenantRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.limiter(TenantID(r.Context())).Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
