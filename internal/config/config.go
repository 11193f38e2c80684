// Package config loads the service configuration from defaults, an optional
// YAML file, and SCREENING_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelrisk/screening/internal/screening/risk"
	"github.com/sentinelrisk/screening/internal/watcher"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `json:"allowed_origins" mapstructure:"allowed_origins"`
}

// ListConfig configures one cached reference list.
type ListConfig struct {
	URL         string        `json:"url" mapstructure:"url"`
	FallbackURL string        `json:"fallback_url" mapstructure:"fallback_url"`
	TTL         time.Duration `json:"ttl" mapstructure:"ttl"`
}

// URLs returns the primary and fallback URLs in priority order.
func (l ListConfig) URLs() []string {
	urls := []string{l.URL}
	if l.FallbackURL != "" {
		urls = append(urls, l.FallbackURL)
	}
	return urls
}

// SourcesConfig holds per-source endpoints and credentials. An empty API key
// disables the sources that require one.
type SourcesConfig struct {
	SDN           ListConfig `json:"sdn" mapstructure:"sdn"`
	WalletList    ListConfig `json:"wallet_list" mapstructure:"wallet_list"`
	OpenSanctions struct {
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		APIKey  string `json:"api_key" mapstructure:"api_key"`
	} `json:"opensanctions" mapstructure:"opensanctions"`
	CourtRecords struct {
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		APIKey  string `json:"api_key" mapstructure:"api_key"`
	} `json:"court_records" mapstructure:"court_records"`
	OffshoreLeaks struct {
		BaseURL string `json:"base_url" mapstructure:"base_url"`
		Enabled bool   `json:"enabled" mapstructure:"enabled"`
	} `json:"offshore_leaks" mapstructure:"offshore_leaks"`
	FanOutTimeout time.Duration `json:"fanout_timeout" mapstructure:"fanout_timeout"`
}

// WatcherConfig configures the change-stream watcher.
type WatcherConfig struct {
	Feeds         []watcher.FeedConfig `json:"feeds" mapstructure:"feeds"`
	Backoff       time.Duration        `json:"backoff" mapstructure:"backoff"`
	AlertCapacity int                  `json:"alert_capacity" mapstructure:"alert_capacity"`
}

// RedisConfig configures the optional Redis-backed watchlist store.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Address  string `json:"address" mapstructure:"address"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
}

// KafkaConfig configures the optional alert publisher.
type KafkaConfig struct {
	Brokers    []string `json:"brokers" mapstructure:"brokers"`
	AlertTopic string   `json:"alert_topic" mapstructure:"alert_topic"`
}

// Enabled reports whether a broker list was configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Config is the full service configuration.
type Config struct {
	LogLevel string        `json:"log_level" mapstructure:"log_level"`
	Server   ServerConfig  `json:"server" mapstructure:"server"`
	Sources  SourcesConfig `json:"sources" mapstructure:"sources"`
	Risk     risk.Profile  `json:"risk" mapstructure:"risk"`
	Watcher  WatcherConfig `json:"watcher" mapstructure:"watcher"`
	Redis    RedisConfig   `json:"redis" mapstructure:"redis"`
	Kafka    KafkaConfig   `json:"kafka" mapstructure:"kafka"`
}

// Load reads configuration from an optional config file and the environment
// on top of code defaults. path may be empty, in which case the usual
// locations are searched; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SCREENING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/screening")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("sources.sdn.url", "https://www.treasury.gov/ofac/downloads/sdn.csv")
	v.SetDefault("sources.sdn.fallback_url", "https://sanctionslistservice.ofac.treas.gov/api/download/sdn.csv")
	v.SetDefault("sources.sdn.ttl", 12*time.Hour)
	v.SetDefault("sources.wallet_list.ttl", 12*time.Hour)
	v.SetDefault("sources.opensanctions.base_url", "https://api.opensanctions.org")
	v.SetDefault("sources.court_records.base_url", "https://www.courtlistener.com/api/rest/v4")
	v.SetDefault("sources.offshore_leaks.base_url", "https://offshoreleaks.icij.org/api")
	v.SetDefault("sources.offshore_leaks.enabled", true)
	v.SetDefault("sources.fanout_timeout", 30*time.Second)

	p := risk.DefaultProfile()
	v.SetDefault("risk.critical_threshold", p.CriticalThreshold)
	v.SetDefault("risk.high_threshold", p.HighThreshold)
	v.SetDefault("risk.medium_threshold", p.MediumThreshold)
	v.SetDefault("risk.sanctions_exact_points", p.SanctionsExactPoints)
	v.SetDefault("risk.sanctions_fuzzy_points", p.SanctionsFuzzyPoints)
	v.SetDefault("risk.sanctions_extra_points", p.SanctionsExtraPoints)
	v.SetDefault("risk.sanctions_cap", p.SanctionsCap)
	v.SetDefault("risk.consolidated_points", p.ConsolidatedPoints)
	v.SetDefault("risk.consolidated_cap", p.ConsolidatedCap)
	v.SetDefault("risk.pep_points", p.PEPPoints)
	v.SetDefault("risk.pep_cap", p.PEPCap)
	v.SetDefault("risk.court_record_points", p.CourtRecordPoints)
	v.SetDefault("risk.court_records_cap", p.CourtRecordsCap)
	v.SetDefault("risk.leak_match_points", p.LeakMatchPoints)
	v.SetDefault("risk.leak_cap", p.LeakCap)
	v.SetDefault("risk.wallet_remarks_points", p.WalletRemarksPoints)

	v.SetDefault("watcher.backoff", 5*time.Second)
	v.SetDefault("watcher.alert_capacity", 10000)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.alert_topic", "screening.alerts")
}
