package httpapi

import (
	"database/sql"
	"sync/atomic"

	"go.uber.org/zap"

	"surveydash/internal/config"
	"surveydash/internal/events"
	"surveydash/internal/metrics"
	"surveydash/internal/pipeline"
)

type Deps struct {
	DB *sql.DB

	Hub      *events.Hub
	Pipeline *pipeline.Service
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// Atomic stores
	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Applied after a config PUT or a token change so the pipeline picks up
	// the new source.
	Apply func(config.Config)

	Version string
}

func (d Deps) config() config.Config {
	if d.CfgVal == nil {
		return config.Default()
	}
	cfg, ok := d.CfgVal.Load().(config.Config)
	if !ok {
		return config.Default()
	}
	return cfg
}
