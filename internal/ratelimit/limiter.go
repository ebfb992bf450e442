// Package ratelimit ограничивает частоту отправки оценок одним читателем
// в окне фиксированной длины.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type Limiter interface {
	// Allow учитывает попытку для ключа и сообщает, укладывается ли она в лимит,
	// и через сколько окно сбросится.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// === Memory ===

type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	store  map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		store:  make(map[string]*bucket),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.store[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(m.window)}
		m.store[key] = b
		m.evictExpired(now)
	}

	if b.count >= m.limit {
		return false, b.resetAt.Sub(now), nil
	}
	b.count++
	return true, b.resetAt.Sub(now), nil
}

// evictExpired удаляет истекшие окна, чтобы карта не росла бесконечно.
func (m *MemoryLimiter) evictExpired(now time.Time) {
	for k, b := range m.store {
		if !now.Before(b.resetAt) {
			delete(m.store, k)
		}
	}
}

// === Redis ===

// RedisLimiter хранит счетчик окна в Redis, так что лимит общий для всех экземпляров сервиса.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "ratelimit:"}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := r.prefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, k, r.window).Err(); err != nil {
			return false, 0, err
		}
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// Ключ остался без срока жизни (сбой между INCR и PEXPIRE)
		if err := r.client.PExpire(ctx, k, r.window).Err(); err != nil {
			return false, 0, err
		}
		ttl = r.window
	}
	return count <= int64(r.limit), ttl, nil
}
