package pipeline

import (
	"surveydash/internal/config"
	"surveydash/internal/source/airtable"
	"surveydash/internal/source/util"
)

// NewAirtableFetcher builds the upstream client for cfg. token comes from
// the secrets package; an empty token still builds a client so the API's
// own 401 reaches the dashboard.
func NewAirtableFetcher(cfg config.Config, token string) *airtable.Client {
	src := cfg.Source
	return airtable.New(airtable.Config{
		APIURL:   src.APIURL,
		BaseID:   src.BaseID,
		Table:    src.Table,
		Token:    token,
		Fields:   src.Fields,
		PageSize: src.PageSize,
		Timeout:  cfg.SourceTimeout(),
	}, util.NewHostLimiter(src.RequestsPerSecond, src.Burst))
}
