package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mindcare/booking-core/internal/cache"
)

const defaultCalendarTTL = 5 * time.Minute

// CalendarCache кэширует проекции календаря. Ключ включает версию эксперта,
// которая растёт при каждой записи правил или исключений.
type CalendarCache struct {
	c      cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCalendarCache(c cache.Cache, ttl time.Duration, logger *slog.Logger) *CalendarCache {
	if c == nil {
		c = cache.NewNoop()
	}
	if ttl <= 0 {
		ttl = defaultCalendarTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarCache{c: c, ttl: ttl, logger: logger}
}

func versionKey(expertID uuid.UUID) string {
	return "calendar:ver:" + expertID.String()
}

func (cc *CalendarCache) version(ctx context.Context, expertID uuid.UUID) int64 {
	raw, ok, err := cc.c.Get(ctx, versionKey(expertID))
	if err != nil {
		cc.logger.WarnContext(ctx, "calendar cache version read failed", "expert_id", expertID, "error", err)
		return 0
	}
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Key строит ключ проекции эксперта за диапазон.
func (cc *CalendarCache) Key(ctx context.Context, expertID uuid.UUID, from, to string) string {
	return fmt.Sprintf("calendar:%s:%d:%s:%s", expertID, cc.version(ctx, expertID), from, to)
}

// Load читает значение; промах и ошибки кэша не различаются для вызывающего.
func (cc *CalendarCache) Load(ctx context.Context, key string, dst any) bool {
	raw, ok, err := cc.c.Get(ctx, key)
	if err != nil {
		cc.logger.WarnContext(ctx, "calendar cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		cc.logger.WarnContext(ctx, "calendar cache decode failed", "key", key, "error", err)
		return false
	}
	return true
}

func (cc *CalendarCache) Store(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		cc.logger.WarnContext(ctx, "calendar cache encode failed", "key", key, "error", err)
		return
	}
	if err := cc.c.Set(ctx, key, raw, cc.ttl); err != nil {
		cc.logger.WarnContext(ctx, "calendar cache write failed", "key", key, "error", err)
	}
}

// Invalidate сдвигает версию эксперта; старые ключи истекают по TTL.
func (cc *CalendarCache) Invalidate(ctx context.Context, expertID uuid.UUID) {
	if _, err := cc.c.Incr(ctx, versionKey(expertID)); err != nil {
		cc.logger.WarnContext(ctx, "calendar cache invalidate failed", "expert_id", expertID, "error", err)
	}
}
