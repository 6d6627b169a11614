package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"PortfolioSentinel/internal/store"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendGitHub = "github"
	BackendS3     = "s3"
)

// Config holds all application configuration.
type Config struct {
	Storage struct {
		Backend string      `yaml:"backend"` // file, github or s3
		Dir     string      `yaml:"dir"`
		Files   store.Files `yaml:"files"`
		GitHub  struct {
			Repo   string `yaml:"repo"` // owner/name
			Token  string `yaml:"token"`
			Branch string `yaml:"branch"`
			Dir    string `yaml:"dir"`
		} `yaml:"github"`
		S3 store.S3Config `yaml:"s3"`
	} `yaml:"storage"`
	Pushover struct {
		UserKey  string `yaml:"user_key"`
		APIToken string `yaml:"api_token"`
		Priority int    `yaml:"priority"`
	} `yaml:"pushover"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Alerts struct {
		LowRatio   float64 `yaml:"low_ratio"`
		HighRatio  float64 `yaml:"high_ratio"` // 0 disables the derived high threshold
		OncePerDay bool    `yaml:"once_per_day"`
	} `yaml:"alerts"`
	Schedule struct {
		OpenCron  string `yaml:"open_cron"`
		CheckCron string `yaml:"check_cron"`
		CloseCron string `yaml:"close_cron"`
	} `yaml:"schedule"`
	Pricing struct {
		Timeout     time.Duration `yaml:"timeout"`
		OpenFIGIKey string        `yaml:"openfigi_key"`
		ScrapeURL   string        `yaml:"scrape_url"` // contains {isin}
		ScrapePath  string        `yaml:"scrape_path"`
		ScrapeKey   string        `yaml:"scrape_key"`
	} `yaml:"pricing"`
	News struct {
		Count int `yaml:"count"`
	} `yaml:"news"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Path returns the config file location from CONFIG_PATH.
func Path() string {
	return getEnv("CONFIG_PATH", "configs/config.yaml")
}

// Load reads a .env file if present, the YAML file at path, then applies
// environment variable overrides and defaults. A missing file is not an
// error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Pushover.UserKey = getEnv("PUSHOVER_USER_KEY", c.Pushover.UserKey)
	c.Pushover.APIToken = getEnv("PUSHOVER_API_TOKEN", c.Pushover.APIToken)
	c.Telegram.BotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", c.Telegram.ChatID)

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.Dir = getEnv("DATA_DIR", c.Storage.Dir)
	c.Storage.GitHub.Repo = getEnv("GH_REPO", c.Storage.GitHub.Repo)
	c.Storage.GitHub.Token = getEnv("GH_TOKEN", c.Storage.GitHub.Token)
	c.Storage.GitHub.Branch = getEnv("GH_BRANCH", c.Storage.GitHub.Branch)
	c.Storage.S3.Bucket = getEnv("S3_BUCKET", c.Storage.S3.Bucket)
	c.Storage.S3.Endpoint = getEnv("S3_ENDPOINT", c.Storage.S3.Endpoint)
	c.Storage.S3.Region = getEnv("AWS_REGION", c.Storage.S3.Region)
	c.Storage.S3.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.Storage.S3.AccessKeyID)
	c.Storage.S3.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.Storage.S3.SecretAccessKey)

	c.Alerts.LowRatio = getEnvAsFloat("ALERT_LOW_RATIO", c.Alerts.LowRatio)
	c.Alerts.HighRatio = getEnvAsFloat("ALERT_HIGH_RATIO", c.Alerts.HighRatio)
	c.Alerts.OncePerDay = getEnvAsBool("ALERT_ONCE_PER_DAY", c.Alerts.OncePerDay)

	c.Schedule.CheckCron = getEnv("CRON_CHECK", c.Schedule.CheckCron)
	c.Pricing.OpenFIGIKey = getEnv("OPENFIGI_API_KEY", c.Pricing.OpenFIGIKey)
	c.Database.SQLitePath = getEnv("SQLITE_PATH", c.Database.SQLitePath)
	c.Server.Addr = getEnv("HTTP_ADDR", c.Server.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("LOG_PRETTY", c.Log.Pretty)
	c.Proxy = getEnv("HTTPS_PROXY", c.Proxy)
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.Files.Holdings == "" {
		c.Storage.Files.Holdings = store.DefaultFiles.Holdings
	}
	if c.Storage.Files.Watchlist == "" {
		c.Storage.Files.Watchlist = store.DefaultFiles.Watchlist
	}
	if c.Storage.Files.Dividends == "" {
		c.Storage.Files.Dividends = store.DefaultFiles.Dividends
	}
	if c.Storage.GitHub.Branch == "" {
		c.Storage.GitHub.Branch = "main"
	}
	if c.Pushover.Priority == 0 {
		c.Pushover.Priority = 1
	}
	if c.Alerts.LowRatio == 0 {
		c.Alerts.LowRatio = 0.7
	}
	if c.Schedule.OpenCron == "" {
		c.Schedule.OpenCron = "0 5 9 * * 1-5"
	}
	if c.Schedule.CheckCron == "" {
		c.Schedule.CheckCron = "0 */30 9-17 * * 1-5"
	}
	if c.Schedule.CloseCron == "" {
		c.Schedule.CloseCron = "0 45 17 * * 1-5"
	}
	if c.Pricing.Timeout == 0 {
		c.Pricing.Timeout = 10 * time.Second
	}
	if c.News.Count == 0 {
		c.News.Count = 3
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/portfolio_sentinel.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks that the configuration is usable. Notification
// transports are optional; alerts are logged when none is configured.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required"))
		}
	case BackendGitHub:
		if c.Storage.GitHub.Repo == "" || c.Storage.GitHub.Token == "" {
			errs = append(errs, errors.New("storage.github.repo and storage.github.token are required"))
		}
	case BackendS3:
		if c.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be one of file, github, s3", c.Storage.Backend))
	}

	if (c.Pushover.UserKey == "") != (c.Pushover.APIToken == "") {
		errs = append(errs, errors.New("pushover.user_key and pushover.api_token must be set together"))
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		errs = append(errs, errors.New("telegram.bot_token and telegram.chat_id must be set together"))
	}

	if c.Alerts.LowRatio <= 0 || c.Alerts.LowRatio >= 1 {
		errs = append(errs, errors.New("alerts.low_ratio must be between 0 and 1"))
	}
	if c.Alerts.HighRatio != 0 && c.Alerts.HighRatio <= 1 {
		errs = append(errs, errors.New("alerts.high_ratio must be greater than 1, or 0 to disable"))
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.open_cron":  c.Schedule.OpenCron,
		"schedule.check_cron": c.Schedule.CheckCron,
		"schedule.close_cron": c.Schedule.CloseCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// HasPushover reports whether Pushover credentials are configured.
func (c *Config) HasPushover() bool {
	return c.Pushover.UserKey != "" && c.Pushover.APIToken != ""
}

// HasTelegram reports whether the Telegram bot is configured.
func (c *Config) HasTelegram() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
