package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port int `yaml:"port" json:"port"`
}

// SourceConfig locates the upstream table. The API token is never stored
// here; see the secrets package.
type SourceConfig struct {
	APIURL            string   `yaml:"api_url" json:"api_url"`
	BaseID            string   `yaml:"base_id" json:"base_id"`
	Table             string   `yaml:"table" json:"table"`
	Fields            []string `yaml:"fields" json:"fields"`
	PageSize          int      `yaml:"page_size" json:"page_size"`
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int      `yaml:"burst" json:"burst"`
	TimeoutSeconds    int      `yaml:"timeout_seconds" json:"timeout_seconds"`
	TokenEnv          string   `yaml:"token_env" json:"token_env"`
	KeyringAccount    string   `yaml:"keyring_account" json:"keyring_account"`
}

type CacheConfig struct {
	TTLSeconds int `yaml:"ttl_seconds" json:"ttl_seconds"`
}

type RefreshConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds"`
}

type DashboardConfig struct {
	ExpertURLTemplate string `yaml:"expert_url_template" json:"expert_url_template"`
	PageSizes         []int  `yaml:"page_sizes" json:"page_sizes"`
	DefaultPageSize   int    `yaml:"default_page_size" json:"default_page_size"`
	ShowIDsDefault    bool   `yaml:"show_ids_default" json:"show_ids_default"`
}

type Config struct {
	App       AppConfig       `yaml:"app" json:"app"`
	Source    SourceConfig    `yaml:"source" json:"source"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Refresh   RefreshConfig   `yaml:"refresh" json:"refresh"`
	Dashboard DashboardConfig `yaml:"dashboard" json:"dashboard"`
}

const (
	DefaultPort     = 38471
	DefaultTokenEnv = "AIRTABLE_TOKEN"
)

func Default() Config {
	var cfg Config
	cfg.App.Port = DefaultPort
	cfg.Source.APIURL = "https://api.airtable.com"
	cfg.Source.RequestsPerSecond = 5
	cfg.Source.Burst = 1
	cfg.Source.TimeoutSeconds = 30
	cfg.Source.TokenEnv = DefaultTokenEnv
	cfg.Cache.TTLSeconds = 3600
	cfg.Dashboard.ExpertURLTemplate = "https://maven2.dialecticanet.com/experts/view/{id}"
	cfg.Dashboard.PageSizes = []int{10, 20, 50}
	cfg.Dashboard.DefaultPageSize = 20
	return cfg
}

// Load reads path over the defaults, so keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Addr() string { return fmt.Sprintf("127.0.0.1:%d", c.App.Port) }

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}
