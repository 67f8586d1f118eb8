package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "PIXELSHIFT"
	ConfigFileEnv = EnvPrefix + "_CONFIG"
)

type Config struct {
	API       APIConfig
	CORS      CORSConfig
	Log       LogConfig
	RateLimit RateLimitConfig
	Telemetry TelemetryConfig
	Vips      VipsConfig
}

type APIConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type CORSConfig struct {
	AllowedOrigin  string
	AllowedMethods string
	AllowedHeaders string
	MaxAgeSeconds  int
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig sizes the per-client bucket. TrustedProxies counts the
// proxies in front of the service whose X-Forwarded-For entries can be
// believed; zero ignores the header.
type RateLimitConfig struct {
	Enabled        bool
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	Requests       int
	Window         time.Duration
	KeyPrefix      string
	TrustedProxies int
}

func (r RateLimitConfig) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.RedisAddr,
		Password: r.RedisPassword,
		DB:       r.RedisDB,
	}
}

type TelemetryConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type VipsConfig struct {
	Concurrency  int
	MaxCacheMem  int
	MaxCacheSize int
}

// Load reads configuration once from defaults, an optional TOML/YAML/JSON file
// named by PIXELSHIFT_CONFIG, and PIXELSHIFT_* environment variables, in
// increasing order of precedence.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := Config{
		API: APIConfig{
			Addr:            v.GetString("api.addr"),
			ReadTimeout:     v.GetDuration("api.read_timeout"),
			WriteTimeout:    v.GetDuration("api.write_timeout"),
			IdleTimeout:     v.GetDuration("api.idle_timeout"),
			ShutdownTimeout: v.GetDuration("api.shutdown_timeout"),
			MaxBodyBytes:    v.GetInt64("api.max_body_bytes"),
		},
		CORS: CORSConfig{
			AllowedOrigin:  v.GetString("cors.allowed_origin"),
			AllowedMethods: v.GetString("cors.allowed_methods"),
			AllowedHeaders: v.GetString("cors.allowed_headers"),
			MaxAgeSeconds:  v.GetInt("cors.max_age"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		RateLimit: RateLimitConfig{
			Enabled:        v.GetBool("rate_limit.enabled"),
			RedisAddr:      v.GetString("rate_limit.redis_addr"),
			RedisPassword:  v.GetString("rate_limit.redis_password"),
			RedisDB:        v.GetInt("rate_limit.redis_db"),
			Requests:       v.GetInt("rate_limit.requests"),
			Window:         v.GetDuration("rate_limit.window"),
			KeyPrefix:      v.GetString("rate_limit.key_prefix"),
			TrustedProxies: v.GetInt("rate_limit.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			ServiceName:  v.GetString("telemetry.service_name"),
			Exporter:     strings.ToLower(v.GetString("telemetry.exporter")),
			OTLPEndpoint: v.GetString("telemetry.otlp_endpoint"),
			OTLPInsecure: v.GetBool("telemetry.otlp_insecure"),
			SampleRatio:  v.GetFloat64("telemetry.sample_ratio"),
		},
		Vips: VipsConfig{
			Concurrency:  v.GetInt("vips.concurrency"),
			MaxCacheMem:  v.GetInt("vips.max_cache_mem"),
			MaxCacheSize: v.GetInt("vips.max_cache_size"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 60*time.Second)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.max_body_bytes", 8<<20)

	v.SetDefault("cors.allowed_origin", "https://oualator.com")
	v.SetDefault("cors.allowed_methods", "POST, OPTIONS")
	v.SetDefault("cors.allowed_headers", "Content-Type, Authorization")
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.redis_addr", "localhost:6379")
	v.SetDefault("rate_limit.redis_password", "")
	v.SetDefault("rate_limit.redis_db", 0)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.key_prefix", "pixelshift:ratelimit")
	v.SetDefault("rate_limit.trusted_proxies", 0)

	v.SetDefault("telemetry.service_name", "pixelshift")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("vips.concurrency", max(1, runtime.NumCPU()))
	v.SetDefault("vips.max_cache_mem", 128*1024*1024)
	v.SetDefault("vips.max_cache_size", 100)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.Addr) == "" {
		errs = append(errs, errors.New("api.addr is required"))
	}
	if c.API.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("api.max_body_bytes must be positive"))
	}
	if c.CORS.MaxAgeSeconds < 0 {
		errs = append(errs, errors.New("cors.max_age must not be negative"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log.format: %s", c.Log.Format))
	}
	if c.RateLimit.TrustedProxies < 0 {
		errs = append(errs, errors.New("rate_limit.trusted_proxies must not be negative"))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			errs = append(errs, errors.New("rate_limit.requests must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			errs = append(errs, errors.New("rate_limit.window must be positive"))
		}
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}
