package config

import (
	"fmt"
	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"os"
	"time"
)

type LogConfig struct {
	Level string `toml:"level"`
}

type StoresConfig struct {
	UserAgent            string   `toml:"user_agent"`
	TimeoutMilliseconds  uint     `toml:"timeout_ms"`
	DeadlineMilliseconds uint     `toml:"deadline_ms"`
	Workers              int      `toml:"workers"`
	Disabled             []string `toml:"disabled"`
}

type KnownBook struct {
	Isbns         []string `toml:"isbns"`
	TitleContains string   `toml:"title_contains"`
	Location      string   `toml:"location"`
	CallNumber    string   `toml:"call_number"`
	Available     bool     `toml:"available"`
}

type LibraryConfig struct {
	BackendUrl          string      `toml:"backend_url"`
	SiteUrl             string      `toml:"site_url"`
	TimeoutMilliseconds uint        `toml:"timeout_ms"`
	CacheTTLSeconds     uint        `toml:"cache_ttl_seconds"`
	Scrape              bool        `toml:"scrape"`
	Known               []KnownBook `toml:"known"`
}

type SearchConfig struct {
	TimeoutMilliseconds uint `toml:"timeout_ms"`
	CacheTTLSeconds     uint `toml:"cache_ttl_seconds"`
	MaxRetries          int  `toml:"max_retries"`
}

type KakaoConfig struct {
	ApiKey            string  `toml:"api_key"`
	Url               string  `toml:"url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type AladinConfig struct {
	TtbKey            string  `toml:"ttb_key"`
	Url               string  `toml:"url"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type RedisConfig struct {
	Enable   bool   `toml:"enable"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type ServerConfig struct {
	Listen                     string `toml:"listen"`
	HealthCheckIntervalSeconds uint   `toml:"health_check_interval_seconds"`
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Stores  StoresConfig  `toml:"stores"`
	Library LibraryConfig `toml:"library"`
	Search  SearchConfig  `toml:"search"`
	Kakao   KakaoConfig   `toml:"kakao"`
	Aladin  AladinConfig  `toml:"aladin"`
	Redis   RedisConfig   `toml:"redis"`
	Server  ServerConfig  `toml:"server"`
}

var Defaults = map[string]any{
	"log.level": "info",

	"stores.user_agent":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"stores.timeout_ms":  10000,
	"stores.deadline_ms": 15000,
	"stores.workers":     4,

	"library.backend_url":       "http://library-scraper:8090",
	"library.site_url":          "https://lib.yju.ac.kr",
	"library.timeout_ms":        10000,
	"library.cache_ttl_seconds": 600,

	"search.timeout_ms":        10000,
	"search.cache_ttl_seconds": 600,
	"search.max_retries":       0,

	"kakao.url":                  "https://dapi.kakao.com/v3/search/book",
	"kakao.requests_per_second":  10.0,
	"aladin.url":                 "https://www.aladin.co.kr/ttb/api/ItemSearch.aspx",
	"aladin.requests_per_second": 10.0,

	"redis.addr":   "localhost:6379",
	"redis.prefix": "bookscout:",

	"server.listen":                        ":8080",
	"server.health_check_interval_seconds": 30,
}

// Env overrides for credentials, which should not live in the config file.
const (
	KakaoApiKeyEnv  = "KAKAO_REST_API_KEY"
	AladinTtbKeyEnv = "ALADIN_TTB_KEY"
)

func NewConfig(configPath string) (*Config, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	return Parse(string(configData))
}

func Parse(configData string) (*Config, error) {
	var config Config
	_, err := toml.Decode(configData, &config)
	if err != nil {
		return nil, err
	}

	err = config.Validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns a validated configuration with every default applied.
func Default() *Config {
	var config Config
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return &config
}

func (c *Config) Validate() error {
	if len(c.Log.Level) == 0 {
		c.Log.Level = Defaults["log.level"].(string)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if len(c.Stores.UserAgent) == 0 {
		c.Stores.UserAgent = Defaults["stores.user_agent"].(string)
	}
	if c.Stores.TimeoutMilliseconds == 0 {
		c.Stores.TimeoutMilliseconds = uint(Defaults["stores.timeout_ms"].(int))
	}
	if c.Stores.DeadlineMilliseconds == 0 {
		c.Stores.DeadlineMilliseconds = uint(Defaults["stores.deadline_ms"].(int))
	}
	if c.Stores.Workers < 0 {
		return fmt.Errorf("stores.workers must not be negative")
	}
	if c.Stores.Workers == 0 {
		c.Stores.Workers = Defaults["stores.workers"].(int)
	}

	if len(c.Library.BackendUrl) == 0 {
		c.Library.BackendUrl = Defaults["library.backend_url"].(string)
	}
	if len(c.Library.SiteUrl) == 0 {
		c.Library.SiteUrl = Defaults["library.site_url"].(string)
	}
	if c.Library.TimeoutMilliseconds == 0 {
		c.Library.TimeoutMilliseconds = uint(Defaults["library.timeout_ms"].(int))
	}
	if c.Library.CacheTTLSeconds == 0 {
		c.Library.CacheTTLSeconds = uint(Defaults["library.cache_ttl_seconds"].(int))
	}
	for i, known := range c.Library.Known {
		if len(known.Isbns) == 0 && len(known.TitleContains) == 0 {
			return fmt.Errorf("library.known[%d] needs isbns or title_contains", i)
		}
	}

	if c.Search.TimeoutMilliseconds == 0 {
		c.Search.TimeoutMilliseconds = uint(Defaults["search.timeout_ms"].(int))
	}
	if c.Search.CacheTTLSeconds == 0 {
		c.Search.CacheTTLSeconds = uint(Defaults["search.cache_ttl_seconds"].(int))
	}
	// retries are opt-in, a negative value means none
	if c.Search.MaxRetries < 0 {
		c.Search.MaxRetries = Defaults["search.max_retries"].(int)
	}

	if len(c.Kakao.ApiKey) == 0 {
		c.Kakao.ApiKey = os.Getenv(KakaoApiKeyEnv)
	}
	if len(c.Kakao.Url) == 0 {
		c.Kakao.Url = Defaults["kakao.url"].(string)
	}
	if c.Kakao.RequestsPerSecond <= 0 {
		c.Kakao.RequestsPerSecond = Defaults["kakao.requests_per_second"].(float64)
	}

	if len(c.Aladin.TtbKey) == 0 {
		c.Aladin.TtbKey = os.Getenv(AladinTtbKeyEnv)
	}
	if len(c.Aladin.Url) == 0 {
		c.Aladin.Url = Defaults["aladin.url"].(string)
	}
	if c.Aladin.RequestsPerSecond <= 0 {
		c.Aladin.RequestsPerSecond = Defaults["aladin.requests_per_second"].(float64)
	}

	if c.Redis.Enable {
		if len(c.Redis.Addr) == 0 {
			c.Redis.Addr = Defaults["redis.addr"].(string)
		}
		if len(c.Redis.Prefix) == 0 {
			c.Redis.Prefix = Defaults["redis.prefix"].(string)
		}
	}

	if len(c.Server.Listen) == 0 {
		c.Server.Listen = Defaults["server.listen"].(string)
	}
	if c.Server.HealthCheckIntervalSeconds == 0 {
		c.Server.HealthCheckIntervalSeconds = uint(Defaults["server.health_check_interval_seconds"].(int))
	}

	return nil
}

func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func milliseconds(ms uint) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c *StoresConfig) Timeout() time.Duration {
	return milliseconds(c.TimeoutMilliseconds)
}

func (c *StoresConfig) Deadline() time.Duration {
	return milliseconds(c.DeadlineMilliseconds)
}

func (c *LibraryConfig) Timeout() time.Duration {
	return milliseconds(c.TimeoutMilliseconds)
}

func (c *LibraryConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *SearchConfig) Timeout() time.Duration {
	return milliseconds(c.TimeoutMilliseconds)
}

func (c *SearchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *ServerConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}
