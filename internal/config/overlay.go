package config

import "strings"

// Deployment environment names for the upstream identifiers.
const (
	EnvBaseID = "AIRTABLE_BASE_ID"
	EnvTable  = "AIRTABLE_TABLE_NAME"
	EnvAPIURL = "SURVEYDASH_API_URL"
)

// OverlayEnv lets the hosting environment supply the base and table without
// editing the file. Empty variables leave the file values alone.
func OverlayEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvBaseID)); v != "" {
		cfg.Source.BaseID = v
	}
	if v := strings.TrimSpace(getenv(EnvTable)); v != "" {
		cfg.Source.Table = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		cfg.Source.APIURL = v
	}
}
