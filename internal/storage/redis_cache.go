package storage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// CacheConfig конфигурация Redis кеша
type CacheConfig struct {
	RedisURL      string        `yaml:"redis_url"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
	KeyPrefix     string        `yaml:"key_prefix"`
}

// CacheStats счётчики кеша
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// HitRatio доля попаданий
func (s CacheStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// RedisCache горячий кеш чанков в Redis поверх постоянного хранилища.
// Хранилище остаётся источником истины: запись идёт сначала в него,
// затем в кеш (write-through). Ошибки Redis не фатальны: кеш
// пропускается и запрос уходит в хранилище.
type RedisCache struct {
	client *redis.Client
	inner  world.ChunkStore
	codec  *Codec
	ttl    time.Duration
	prefix string
	logger *logging.Logger

	hits   int64
	misses int64
	errors int64
}

var _ world.ChunkStore = (*RedisCache)(nil)

// NewRedisCache подключается к Redis и оборачивает inner
func NewRedisCache(cfg CacheConfig, inner world.ChunkStore, codec *Codec) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// Проверяем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis %s: %w", cfg.RedisURL, err)
	}

	c := NewRedisCacheWithClient(rdb, inner, codec, cfg.TTL)
	if cfg.KeyPrefix != "" {
		c.prefix = cfg.KeyPrefix
	}
	c.logger.Info("Redis кеш чанков подключён: %s (TTL %v)", cfg.RedisURL, c.ttl)
	return c, nil
}

// NewRedisCacheWithClient оборачивает inner готовым клиентом без проверки соединения
func NewRedisCacheWithClient(client *redis.Client, inner world.ChunkStore, codec *Codec, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		client: client,
		inner:  inner,
		codec:  codec,
		ttl:    ttl,
		prefix: "blockworld:",
		logger: logging.GetStorageLogger(),
	}
}

func (r *RedisCache) key(coords vec.Vec3) string {
	return r.prefix + ChunkKey(coords)
}

// LoadChunk читает чанк из кеша, при промахе из хранилища с заполнением кеша
func (r *RedisCache) LoadChunk(ctx context.Context, coords vec.Vec3) (*world.ChunkData, error) {
	blob, err := r.client.Get(ctx, r.key(coords)).Bytes()
	switch {
	case err == nil:
		data, derr := r.codec.DecodeChunk(blob)
		if derr == nil {
			atomic.AddInt64(&r.hits, 1)
			return data, nil
		}
		atomic.AddInt64(&r.errors, 1)
		r.logger.Warn("повреждённая запись кеша для чанка %v: %v", coords, derr)
	case errors.Is(err, redis.Nil):
	default:
		atomic.AddInt64(&r.errors, 1)
		r.logger.Warn("ошибка Redis при чтении чанка %v: %v", coords, err)
	}
	atomic.AddInt64(&r.misses, 1)

	data, err := r.inner.LoadChunk(ctx, coords)
	if err != nil || data == nil {
		return data, err
	}
	r.put(ctx, data)
	return data, nil
}

// SaveChunk пишет чанк в хранилище, затем обновляет кеш
func (r *RedisCache) SaveChunk(ctx context.Context, data *world.ChunkData) error {
	if err := r.inner.SaveChunk(ctx, data); err != nil {
		// Кеш не должен пережить неудачную запись
		r.Invalidate(ctx, data.Coords)
		return err
	}
	r.put(ctx, data)
	return nil
}

// Invalidate удаляет чанк из кеша
func (r *RedisCache) Invalidate(ctx context.Context, coords vec.Vec3) {
	if err := r.client.Del(ctx, r.key(coords)).Err(); err != nil {
		atomic.AddInt64(&r.errors, 1)
		r.logger.Warn("ошибка Redis при инвалидации чанка %v: %v", coords, err)
	}
}

func (r *RedisCache) put(ctx context.Context, data *world.ChunkData) {
	blob, err := r.codec.EncodeChunk(data)
	if err != nil {
		atomic.AddInt64(&r.errors, 1)
		r.logger.Warn("не удалось закодировать чанк %v для кеша: %v", data.Coords, err)
		return
	}
	if err := r.client.Set(ctx, r.key(data.Coords), blob, r.ttl).Err(); err != nil {
		atomic.AddInt64(&r.errors, 1)
		r.logger.Warn("ошибка Redis при записи чанка %v: %v", data.Coords, err)
	}
}

// Stats возвращает счётчики кеша
func (r *RedisCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&r.hits),
		Misses: atomic.LoadInt64(&r.misses),
		Errors: atomic.LoadInt64(&r.errors),
	}
}

// Close закрывает соединение с Redis. Обёрнутое хранилище не закрывается.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
