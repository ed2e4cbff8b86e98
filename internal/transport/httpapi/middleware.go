package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mindcare/booking-core/internal/logging"
	"github.com/mindcare/booking-core/internal/service"
)

type actorKey struct{}

func contextWithActor(ctx context.Context, actor service.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) (service.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(service.Actor)
	return actor, ok
}

// requestLogger кладёт в контекст логгер с request_id и пишет итог запроса.
func requestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := base.With(
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
			)
			ctx := logging.ContextWithLogger(r.Context(), logger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.InfoContext(ctx, "request",
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// TokenParser проверяет bearer-токен и возвращает id пользователя.
type TokenParser interface {
	Parse(token string) (uuid.UUID, error)
}

// ActorResolver загружает пользователя и его роль из хранилища.
type ActorResolver interface {
	ResolveActor(ctx context.Context, userID uuid.UUID) (service.Actor, error)
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// authenticate требует валидный токен активного пользователя.
func authenticate(tokens TokenParser, actors ActorResolver, resp responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := bearerToken(r)
			if token == "" {
				resp.writeError(ctx, w, http.StatusUnauthorized, "authentication required", nil)
				return
			}
			userID, err := tokens.Parse(token)
			if err != nil {
				resp.loggerFor(ctx).InfoContext(ctx, "token rejected", "error", err)
				resp.writeError(ctx, w, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			actor, err := actors.ResolveActor(ctx, userID)
			if err != nil {
				if errors.Is(err, service.ErrUnauthenticated) {
					resp.writeError(ctx, w, http.StatusUnauthorized, "user is not active", nil)
					return
				}
				resp.handleServiceError(ctx, w, err)
				return
			}

			logger := resp.loggerFor(ctx).With("user_id", actor.UserID, "role", actor.Role)
			ctx = logging.ContextWithLogger(contextWithActor(ctx, actor), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimiter — фиксированное окно на ключ «IP + путь».
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count int
	reset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.After(b.reset) {
		// Истёкшие окна удаляются при открытии нового.
		for k, old := range rl.buckets {
			if now.After(old.reset) {
				delete(rl.buckets, k)
			}
		}
		rl.buckets[key] = &bucket{count: 1, reset: now.Add(rl.window)}
		return true
	}

	if b.count >= rl.limit {
		return false
	}
	b.count++
	return true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl == nil || rl.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := clientIP(r) + ":" + r.URL.Path
		if !rl.Allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
