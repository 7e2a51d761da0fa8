package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App             AppConfig
	Server          ServerConfig
	Database        DatabaseConfig
	JWT             JWTConfig
	Redis           RedisConfig
	Personalization PersonalizationConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey string
}

type RedisConfig struct {
	Enabled       bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DialTimeout   time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PoolSize      int
	MinIdleConns  int
}

type PersonalizationConfig struct {
	ProfileWindowDays  int
	RefreshQueueSize   int
	RefreshWorkers     int
	RefreshJobTimeout  time.Duration
	RequestTimeout     time.Duration
	ProfileCacheTTL    time.Duration
	RecommendationTTL  time.Duration
	PromoPriceFloor    float64
	UpsellPriceFloor   float64
	UpsellGlobalFloor  float64
	MaxRecommendations int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, errors.New("invalid redis database")
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "MyMarketplace Personalization"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:8080"},
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "my_marketplace"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", ""),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       redisDB,
			DialTimeout:   5 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			PoolSize:      10,
			MinIdleConns:  2,
		},
		Personalization: DefaultPersonalization(),
	}

	r := &cfg.Redis
	if r.DialTimeout, err = getEnvDuration("REDIS_DIAL_TIMEOUT", r.DialTimeout); err != nil {
		return nil, errors.New("invalid redis dial timeout")
	}
	if r.ReadTimeout, err = getEnvDuration("REDIS_READ_TIMEOUT", r.ReadTimeout); err != nil {
		return nil, errors.New("invalid redis read timeout")
	}
	if r.WriteTimeout, err = getEnvDuration("REDIS_WRITE_TIMEOUT", r.WriteTimeout); err != nil {
		return nil, errors.New("invalid redis write timeout")
	}
	if r.PoolSize, err = getEnvInt("REDIS_POOL_SIZE", r.PoolSize); err != nil {
		return nil, errors.New("invalid redis pool size")
	}
	if r.MinIdleConns, err = getEnvInt("REDIS_MIN_IDLE_CONNS", r.MinIdleConns); err != nil {
		return nil, errors.New("invalid redis min idle conns")
	}
	if r.PoolSize <= 0 || r.MinIdleConns < 0 || r.MinIdleConns > r.PoolSize {
		return nil, errors.New("redis pool size must be positive and hold the idle connections")
	}

	p := &cfg.Personalization
	if p.ProfileWindowDays, err = getEnvInt("PROFILE_WINDOW_DAYS", p.ProfileWindowDays); err != nil {
		return nil, errors.New("invalid profile window days")
	}
	if p.RefreshQueueSize, err = getEnvInt("PROFILE_REFRESH_QUEUE_SIZE", p.RefreshQueueSize); err != nil {
		return nil, errors.New("invalid profile refresh queue size")
	}
	if p.RefreshWorkers, err = getEnvInt("PROFILE_REFRESH_WORKERS", p.RefreshWorkers); err != nil {
		return nil, errors.New("invalid profile refresh workers")
	}
	if p.RefreshJobTimeout, err = getEnvDuration("PROFILE_REFRESH_TIMEOUT", p.RefreshJobTimeout); err != nil {
		return nil, errors.New("invalid profile refresh timeout")
	}
	if p.RequestTimeout, err = getEnvDuration("RECOMMENDATION_TIMEOUT", p.RequestTimeout); err != nil {
		return nil, errors.New("invalid recommendation timeout")
	}
	if p.ProfileCacheTTL, err = getEnvDuration("PROFILE_CACHE_TTL", p.ProfileCacheTTL); err != nil {
		return nil, errors.New("invalid profile cache ttl")
	}
	if p.RecommendationTTL, err = getEnvDuration("RECOMMENDATION_TTL", p.RecommendationTTL); err != nil {
		return nil, errors.New("invalid recommendation ttl")
	}

	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("missing jwt secret")
	}

	if cfg.Database.Password == "" {
		return nil, errors.New("missing database password")
	}

	if p.RefreshQueueSize <= 0 || p.RefreshWorkers <= 0 {
		return nil, errors.New("profile refresh queue size and workers must be positive")
	}

	return cfg, nil
}

// DefaultPersonalization holds the engine defaults used when no env override is set.
func DefaultPersonalization() PersonalizationConfig {
	return PersonalizationConfig{
		ProfileWindowDays:  30,
		RefreshQueueSize:   1024,
		RefreshWorkers:     2,
		RefreshJobTimeout:  15 * time.Second,
		RequestTimeout:     3 * time.Second,
		ProfileCacheTTL:    10 * time.Minute,
		RecommendationTTL:  24 * time.Hour,
		PromoPriceFloor:    100,
		UpsellPriceFloor:   50,
		UpsellGlobalFloor:  200,
		MaxRecommendations: 50,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(val)
}
