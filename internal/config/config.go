package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendExcel    = "excel"
	BackendPostgres = "postgres"
)

var (
	ErrInvalidBackend     = errors.New("STORE_BACKEND must be 'excel' or 'postgres'")
	ErrMissingDSN         = errors.New("POSTGRES_DSN is required for the postgres backend")
	ErrMissingDataPath    = errors.New("DATA_PATH is required for the excel backend")
	ErrInvalidTimeout     = errors.New("FETCH_TIMEOUT must be positive")
	ErrInvalidDelay       = errors.New("SOURCE_DELAY must be non-negative")
	ErrInvalidConcurrency = errors.New("FETCH_CONCURRENCY must be at least 1")
)

type Config struct {
	AppPort string

	StoreBackend string
	DataPath     string
	PostgresDSN  string
	RedisAddr    string

	CronSpec string

	FetchTimeout     time.Duration
	SourceDelay      time.Duration
	FetchConcurrency int
	UserAgent        string
	Accept           string
	AcceptLanguage   string
	// SourcesFile 可选的 YAML 文件，存在时替换内置的新闻源列表
	SourcesFile string

	Timezone string
	Location *time.Location

	LogLevel string

	// 可选的全局访问密码（Basic Auth），均非空时启用
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	loadEnvFiles()

	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "9000"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendExcel)),
		DataPath:         getEnv("DATA_PATH", "data/noticias.xlsx"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		CronSpec:         getEnv("CRON_SPEC", "0 */6 * * *"),
		FetchTimeout:     getDuration("FETCH_TIMEOUT", 15*time.Second),
		SourceDelay:      getDuration("SOURCE_DELAY", time.Second),
		FetchConcurrency: getInt("FETCH_CONCURRENCY", 1),
		UserAgent:        getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		Accept:           getEnv("ACCEPT", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"),
		AcceptLanguage:   getEnv("ACCEPT_LANGUAGE", "es-CO,es;q=0.9,en;q=0.8"),
		SourcesFile:      getEnv("SOURCES_FILE", ""),
		Timezone:         getEnv("TIMEZONE", "America/Bogota"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		BasicAuthUser:    getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:    getEnv("APP_BASIC_PASS", ""),
	}
	cfg.Location = loadLocation(cfg.Timezone)

	log.Printf("config loaded: port=%s backend=%s cron=%s", cfg.AppPort, cfg.StoreBackend, cfg.CronSpec)
	return cfg
}

// Validate 检查会导致运行期才暴露的配置错误
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendExcel:
		if c.DataPath == "" {
			return ErrMissingDataPath
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidBackend, c.StoreBackend)
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.SourceDelay < 0 {
		return ErrInvalidDelay
	}
	if c.FetchConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	return nil
}

// loadEnvFiles 依次加载 ENV_FILE 或 .env.local / .env，文件不存在时忽略
func loadEnvFiles() {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Printf("warn: load env file %s: %v", envFile, err)
		}
		return
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			log.Printf("warn: load %s: %v", f, err)
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// loadLocation 时区加载失败时退回固定的 UTC-5（哥伦比亚无夏令时）
func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil || loc == nil {
		log.Printf("warn: load timezone %q failed, using fixed UTC-5", name)
		return time.FixedZone("COT", -5*60*60)
	}
	return loc
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
