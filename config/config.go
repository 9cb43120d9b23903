// Package config centraliza o carregamento da configuração do serviço.
//
// Ordem de precedência (a última vence):
//
//  1. valores padrão
//  2. arquivo YAML apontado por JUMBLE_CONFIG_FILE (opcional)
//  3. variáveis de ambiente (um .env no diretório atual é carregado antes)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	ListenAddr string          `yaml:"listen_addr"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	Inflight   InflightConfig  `yaml:"inflight"`
	Stats      StatsConfig     `yaml:"stats"`
	Log        LogConfig       `yaml:"log"`
}

type RateLimitConfig struct {
	MaxCalls int           `yaml:"max_calls"`
	Window   time.Duration `yaml:"window"`

	// IdleTTL zero acompanha Window; CleanupEvery zero desliga a limpeza.
	IdleTTL      time.Duration `yaml:"idle_ttl"`
	CleanupEvery time.Duration `yaml:"cleanup_every"`
	KeyHeader    string        `yaml:"key_header"`
	TrustXFF     bool          `yaml:"trust_xff"`
	AddHeaders   bool          `yaml:"add_headers"`
}

type InflightConfig struct {
	Max     int           `yaml:"max"`
	Timeout time.Duration `yaml:"timeout"`
}

type StatsConfig struct {
	Enabled bool `yaml:"enabled"`

	// RedisAddr vazio mantém as estatísticas em memória.
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	Prefix        string        `yaml:"prefix"`
	TTL           time.Duration `yaml:"ttl"`
	Bucket        string        `yaml:"bucket"`
	TrackKeys     bool          `yaml:"track_keys"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		RateLimit: RateLimitConfig{
			MaxCalls:     10,
			Window:       time.Minute,
			CleanupEvery: time.Minute,
		},
		Inflight: InflightConfig{Max: 100},
		Stats: StatsConfig{
			Prefix: "jumble:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load monta a configuração a partir de padrão, YAML e ambiente, e valida.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("JUMBLE_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	e := envReader{}

	c.ListenAddr = e.getString("LISTEN_ADDR", c.ListenAddr)

	c.RateLimit.MaxCalls = e.getInt("RATE_LIMIT_MAX_CALLS", c.RateLimit.MaxCalls)
	c.RateLimit.Window = e.getDuration("RATE_LIMIT_WINDOW", c.RateLimit.Window)
	c.RateLimit.IdleTTL = e.getDuration("RATE_LIMIT_IDLE_TTL", c.RateLimit.IdleTTL)
	c.RateLimit.CleanupEvery = e.getDuration("RATE_LIMIT_CLEANUP_EVERY", c.RateLimit.CleanupEvery)
	c.RateLimit.KeyHeader = e.getString("RATE_KEY_HEADER", c.RateLimit.KeyHeader)
	c.RateLimit.TrustXFF = e.getBool("TRUST_XFF", c.RateLimit.TrustXFF)
	c.RateLimit.AddHeaders = e.getBool("ADD_RATELIMIT_HEADERS", c.RateLimit.AddHeaders)

	c.Inflight.Max = e.getInt("CONCURRENCY_MAX", c.Inflight.Max)
	c.Inflight.Timeout = e.getDuration("CONCURRENCY_TIMEOUT", c.Inflight.Timeout)

	c.Stats.Enabled = e.getBool("RATE_STATS_ENABLED", c.Stats.Enabled)
	c.Stats.RedisAddr = e.getString("RATE_STATS_REDIS_ADDR", c.Stats.RedisAddr)
	c.Stats.RedisPassword = e.getString("RATE_STATS_REDIS_PASSWORD", c.Stats.RedisPassword)
	c.Stats.RedisDB = e.getInt("RATE_STATS_REDIS_DB", c.Stats.RedisDB)
	c.Stats.Prefix = e.getString("RATE_STATS_PREFIX", c.Stats.Prefix)
	c.Stats.TTL = e.getDuration("RATE_STATS_TTL", c.Stats.TTL)
	c.Stats.Bucket = e.getString("RATE_STATS_BUCKET", c.Stats.Bucket)
	c.Stats.TrackKeys = e.getBool("RATE_STATS_TRACK_KEYS", c.Stats.TrackKeys)

	c.Log.Level = e.getString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = e.getString("LOG_FORMAT", c.Log.Format)

	return e.err()
}

// Validate confere limites de valores já carregados.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ListenAddr) == "" {
		errs = append(errs, errors.New("listen addr is required"))
	}
	if c.RateLimit.MaxCalls < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_CALLS must be >= 1"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be > 0"))
	}
	// um registro descartado antes da janela acabar devolveria a cota cheia
	if c.RateLimit.IdleTTL != 0 && c.RateLimit.IdleTTL < c.RateLimit.Window {
		errs = append(errs, errors.New("RATE_LIMIT_IDLE_TTL must be 0 or >= RATE_LIMIT_WINDOW"))
	}
	if c.RateLimit.IdleTTL < 0 || c.RateLimit.CleanupEvery < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_IDLE_TTL and RATE_LIMIT_CLEANUP_EVERY must be >= 0"))
	}
	if c.Inflight.Max < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	switch strings.ToLower(c.Stats.Bucket) {
	case "minute", "none":
	default:
		errs = append(errs, fmt.Errorf("RATE_STATS_BUCKET must be minute or none, got %q", c.Stats.Bucket))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EffectiveIdleTTL devolve o TTL de registros inativos, usando a janela quando
// nenhum foi configurado.
func (c RateLimitConfig) EffectiveIdleTTL() time.Duration {
	if c.IdleTTL == 0 {
		return c.Window
	}
	return c.IdleTTL
}

// StatsBackend descreve onde as estatísticas ficam: "none", "memory" ou "redis".
func (c Config) StatsBackend() string {
	switch {
	case !c.Stats.Enabled:
		return "none"
	case strings.TrimSpace(c.Stats.RedisAddr) == "":
		return "memory"
	default:
		return "redis"
	}
}

// envReader acumula erros de conversão em vez de cair silenciosamente no padrão.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) getString(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *envReader) getInt(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return i
}

func (e *envReader) getBool(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return b
}

func (e *envReader) getDuration(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return d
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(e.errs...))
}
