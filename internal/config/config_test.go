package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	_, vr := NormalizeAndValidate(Default())
	assert.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.NotEmpty(t, vr.Warnings, "empty base/table should warn")
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  base_id: appXYZ\n  table: Surveys\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "appXYZ", cfg.Source.BaseID)
	assert.Equal(t, "Surveys", cfg.Source.Table)
	assert.Equal(t, DefaultPort, cfg.App.Port)
	assert.Equal(t, 3600, cfg.Cache.TTLSeconds)
	assert.Equal(t, []int{10, 20, 50}, cfg.Dashboard.PageSizes)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalizeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.App.Port = 70000 },
			wantErr: "app.port must be 1..65535",
		},
		{
			name:    "relative api url",
			mutate:  func(c *Config) { c.Source.APIURL = "api.airtable.com" },
			wantErr: `source.api_url must be an absolute URL, got "api.airtable.com"`,
		},
		{
			name:    "template without id",
			mutate:  func(c *Config) { c.Dashboard.ExpertURLTemplate = "https://example.com/experts" },
			wantErr: "dashboard.expert_url_template must contain {id}",
		},
		{
			name:    "default page size not offered",
			mutate:  func(c *Config) { c.Dashboard.DefaultPageSize = 25 },
			wantErr: "dashboard.default_page_size 25 is not one of page_sizes [10 20 50]",
		},
		{
			name:    "page size over api max",
			mutate:  func(c *Config) { c.Source.PageSize = 500 },
			wantErr: "source.page_size must be 0..100",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Cache.TTLSeconds = -1 },
			wantErr: "cache.ttl_seconds must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			_, vr := NormalizeAndValidate(cfg)
			assert.False(t, vr.OK())
			assert.Contains(t, vr.Errors, tt.wantErr)
		})
	}
}

func TestNormalizeTrimsAndDedupes(t *testing.T) {
	cfg := Default()
	cfg.Source.APIURL = " https://api.airtable.com/ "
	cfg.Source.Fields = []string{" Region ", "Region", "", "Expert Id"}
	cfg.Dashboard.PageSizes = []int{50, 10, 20, 10}

	out, vr := NormalizeAndValidate(cfg)
	require.True(t, vr.OK(), "errors: %v", vr.Errors)
	assert.Equal(t, "https://api.airtable.com", out.Source.APIURL)
	assert.Equal(t, []string{"Region", "Expert Id"}, out.Source.Fields)
	assert.Equal(t, []int{10, 20, 50}, out.Dashboard.PageSizes)
	assert.Equal(t, []int{50, 10, 20, 10}, cfg.Dashboard.PageSizes, "input not modified")
}

func TestOverlayEnv(t *testing.T) {
	cfg := Default()
	cfg.Source.BaseID = "fromfile"
	env := map[string]string{
		EnvTable: " Survey Tracker ",
	}
	OverlayEnv(&cfg, func(k string) string { return env[k] })

	assert.Equal(t, "fromfile", cfg.Source.BaseID, "unset env keeps file value")
	assert.Equal(t, "Survey Tracker", cfg.Source.Table)
}

func TestEnsureUserConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.yml"), path)

	cfg, err := Load(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.App, cfg.App)
	assert.Equal(t, def.Cache, cfg.Cache)
	assert.Equal(t, def.Dashboard, cfg.Dashboard)
	assert.Equal(t, def.Source.APIURL, cfg.Source.APIURL)
	assert.Equal(t, def.Source.TokenEnv, cfg.Source.TokenEnv)
}

func TestEnsureUserConfigCopiesDefaultFile(t *testing.T) {
	dir := t.TempDir()
	def := filepath.Join(dir, "default.yml")
	require.NoError(t, os.WriteFile(def, []byte("app:\n  port: 40000\n"), 0o644))

	path, err := EnsureUserConfig(dir, def)
	require.NoError(t, err)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.App.Port)

	// existing user config is left alone
	require.NoError(t, os.WriteFile(def, []byte("app:\n  port: 41000\n"), 0o644))
	_, err = EnsureUserConfig(dir, def)
	require.NoError(t, err)
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 40000, cfg.App.Port)
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	first := Default()
	require.NoError(t, SaveAtomic(path, first))

	second := Default()
	second.Source.BaseID = "appNEW"
	require.NoError(t, SaveAtomic(path, second))

	cur, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "appNEW", cur.Source.BaseID)

	bak, err := Load(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "", bak.Source.BaseID)
}

func TestSaveAtomicRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := Default()
	cfg.App.Port = 0
	err := SaveAtomic(path, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app.port")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
