package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jumble-api/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

const (
	fieldAllowed = "allowed"
	fieldDenied  = "denied"
)

// RedisStatsStore acumula as decisões em hashes do Redis.
//
// Layout (prefix padrão "jumble:stats"):
//
//	<prefix>:total              allowed/denied (cumulativo, sem TTL)
//	<prefix>:minute:<yyyymmddHHMM>  allowed/denied por minuto (com TTL)
//	<prefix>:route              "<METHOD> <path>:allowed|denied"
//	<prefix>:key:<key>          allowed/denied por cliente (opcional, com TTL)
//
// Só as estatísticas vão para o Redis; o estado da cota continua local.
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl vale para as chaves por minuto e por cliente.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		if p := strings.Trim(prefix, ":"); p != "" {
			s.prefix = p
		}
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "jumble:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ domain.StatsStore  = (*RedisStatsStore)(nil)
	_ domain.StatsReader = (*RedisStatsStore)(nil)
)

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := fieldDenied
	if ev.Allowed {
		field = fieldAllowed
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.totalKey(), field, 1)

	if s.bucket == "minute" {
		bucketKey := s.MinuteKey(at)
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if route := routeField(ev.Method, ev.Path); route != "" {
		pipe.HIncrBy(ctx, s.routeKey(), route+":"+field, 1)
	}

	if s.trackKeys {
		if k := strings.TrimSpace(string(ev.Key)); k != "" {
			keyKey := s.prefix + ":key:" + k
			pipe.HIncrBy(ctx, keyKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, keyKey, s.ttl)
			}
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

// Snapshot lê o total e o agregado por rota.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (domain.StatsSnapshot, error) {
	out := domain.StatsSnapshot{ByRoute: make(map[string]domain.Counters)}

	total, err := s.rdb.HGetAll(ctx, s.totalKey()).Result()
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("read total stats: %w", err)
	}
	out.Total.Allowed = parseCount(total[fieldAllowed])
	out.Total.Denied = parseCount(total[fieldDenied])

	routes, err := s.rdb.HGetAll(ctx, s.routeKey()).Result()
	if err != nil {
		return domain.StatsSnapshot{}, fmt.Errorf("read route stats: %w", err)
	}
	for f, v := range routes {
		i := strings.LastIndexByte(f, ':')
		if i <= 0 {
			continue
		}
		route, kind := f[:i], f[i+1:]
		c := out.ByRoute[route]
		switch kind {
		case fieldAllowed:
			c.Allowed += parseCount(v)
		case fieldDenied:
			c.Denied += parseCount(v)
		default:
			continue
		}
		out.ByRoute[route] = c
	}
	return out, nil
}

func (s *RedisStatsStore) MinuteKey(at time.Time) string {
	return fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
}

func (s *RedisStatsStore) totalKey() string { return s.prefix + ":total" }
func (s *RedisStatsStore) routeKey() string { return s.prefix + ":route" }

func routeField(method, path string) string {
	return strings.TrimSpace(strings.TrimSpace(method) + " " + strings.TrimSpace(path))
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
