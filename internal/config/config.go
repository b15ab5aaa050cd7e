package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Questions QuestionsConfig `yaml:"questions"`
	Reporter  ReporterConfig  `yaml:"reporter"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"QUIZ_SERVER_PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"QUIZ_REDIS_ADDR"`
	Password string `yaml:"password" env:"QUIZ_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"QUIZ_REDIS_DB"`
	TTL      string `yaml:"ttl" env:"QUIZ_REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"QUIZ_POSTGRES_URL"`
}

// SQLiteConfig selects a local SQLite file for results when Postgres is not configured.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"QUIZ_SQLITE_PATH"`
}

type QuizConfig struct {
	TimePerQuestion  string `yaml:"time_per_question" env:"QUIZ_TIME_PER_QUESTION"`
	Retention        string `yaml:"retention" env:"QUIZ_RETENTION"`
	SweepInterval    string `yaml:"sweep_interval" env:"QUIZ_SWEEP_INTERVAL"`
	PointsPerCorrect int    `yaml:"points_per_correct" env:"QUIZ_POINTS_PER_CORRECT"`
	MaxQuestions     int    `yaml:"max_questions" env:"QUIZ_MAX_QUESTIONS"`
}

type QuestionsConfig struct {
	CacheTTL string `yaml:"cache_ttl" env:"QUIZ_QUESTIONS_CACHE_TTL"`
}

type ReporterConfig struct {
	QueueSize      int    `yaml:"queue_size" env:"QUIZ_REPORTER_QUEUE_SIZE"`
	MaxRetries     uint64 `yaml:"max_retries" env:"QUIZ_REPORTER_MAX_RETRIES"`
	InitialBackoff string `yaml:"initial_backoff" env:"QUIZ_REPORTER_INITIAL_BACKOFF"`
}

type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"QUIZ_OTEL_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"QUIZ_OTEL_SERVICE_NAME"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"QUIZ_LOG_LEVEL"`
	Format string `yaml:"format" env:"QUIZ_LOG_FORMAT"`
}

// Load reads YAML config from path, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
