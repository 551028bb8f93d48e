package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL       = "http://localhost:8000"
	DefaultPollInterval = 5 * time.Second
	DefaultLogLimit     = 20
	DefaultPageSize     = 20
	DefaultWebURL       = "http://localhost:5173"
)

type Config struct {
	API          APIConfig
	Poller       PollerConfig
	PageSize     int
	LogPath      string
	LogLevel     string
	ScheduleFile string
	MetricsAddr  string
	// WebURL is the listing page address that shared queries are appended to.
	WebURL       string
}

type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	ProxyURL  string
}

type PollerConfig struct {
	Interval time.Duration
	LogLimit int
}

// Schedule is one recurring scrape submission.
type Schedule struct {
	Name          string   `yaml:"name"`
	Cron          string   `yaml:"cron"`
	City          string   `yaml:"city"`
	Region        string   `yaml:"region"`
	PropertyTypes []string `yaml:"property_types"`
	MaxPages      int      `yaml:"max_pages"`
}

type scheduleFile struct {
	Schedules []Schedule `yaml:"schedules"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			BaseURL:   getEnv("API_URL", DefaultAPIURL),
			Timeout:   getEnvDuration("API_TIMEOUT", 15*time.Second),
			RateLimit: getEnvFloat("API_RATE_LIMIT", 10),
			ProxyURL:  os.Getenv("HTTP_PROXY_URL"),
		},
		Poller: PollerConfig{
			Interval: getEnvDuration("POLL_INTERVAL", DefaultPollInterval),
			LogLimit: getEnvInt("LOG_LIMIT", DefaultLogLimit),
		},
		PageSize:     getEnvInt("PAGE_SIZE", DefaultPageSize),
		LogPath:      getEnv("LOG_PATH", "scooby.log"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		ScheduleFile: getEnv("SCHEDULE_FILE", "config/schedules.yaml"),
		MetricsAddr:  os.Getenv("METRICS_ADDR"),
		WebURL:       getEnv("WEB_URL", DefaultWebURL),
	}

	if cfg.Poller.LogLimit < 1 || cfg.Poller.LogLimit > 100 {
		return nil, fmt.Errorf("LOG_LIMIT must be between 1 and 100, got %d", cfg.Poller.LogLimit)
	}
	if cfg.API.RateLimit <= 0 {
		return nil, fmt.Errorf("API_RATE_LIMIT must be positive, got %v", cfg.API.RateLimit)
	}

	return cfg, nil
}

// LoadSchedules reads the schedule file. A missing file yields no schedules.
func (c *Config) LoadSchedules() ([]Schedule, error) {
	data, err := os.ReadFile(c.ScheduleFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseSchedules(data)
}

func ParseSchedules(data []byte) ([]Schedule, error) {
	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}
	for i, s := range f.Schedules {
		if s.Cron == "" {
			return nil, fmt.Errorf("schedule %d (%s): cron is required", i, s.Name)
		}
		if s.MaxPages == 0 {
			f.Schedules[i].MaxPages = 5
		}
		if len(s.PropertyTypes) == 0 {
			f.Schedules[i].PropertyTypes = []string{"casas"}
		}
	}
	return f.Schedules, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
