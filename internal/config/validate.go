package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" || seen[x] {
				continue
			}
			seen[x] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Source.APIURL = strings.TrimRight(strings.TrimSpace(out.Source.APIURL), "/")
	out.Source.BaseID = strings.TrimSpace(out.Source.BaseID)
	out.Source.Table = strings.TrimSpace(out.Source.Table)
	out.Source.Fields = trimList(out.Source.Fields)
	out.Source.TokenEnv = strings.TrimSpace(out.Source.TokenEnv)
	out.Dashboard.ExpertURLTemplate = strings.TrimSpace(out.Dashboard.ExpertURLTemplate)

	sizes := slices.Clone(out.Dashboard.PageSizes)
	slices.Sort(sizes)
	out.Dashboard.PageSizes = slices.Compact(sizes)

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if u, err := url.Parse(out.Source.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		res.addErr("source.api_url must be an absolute URL, got %q", out.Source.APIURL)
	}
	if out.Source.BaseID == "" {
		res.addWarn("source.base_id is empty; set it here or via %s", EnvBaseID)
	}
	if out.Source.Table == "" {
		res.addWarn("source.table is empty; set it here or via %s", EnvTable)
	}
	if out.Source.TokenEnv == "" {
		res.addWarn("source.token_env is empty; the token can only come from the keychain")
	}
	if out.Source.PageSize < 0 || out.Source.PageSize > 100 {
		res.addErr("source.page_size must be 0..100")
	}
	if out.Source.RequestsPerSecond < 0 {
		res.addErr("source.requests_per_second must be >= 0")
	} else if out.Source.RequestsPerSecond > 5 {
		res.addWarn("source.requests_per_second is %.1f; the API rejects more than 5 per base", out.Source.RequestsPerSecond)
	}
	if out.Source.Burst < 0 {
		res.addErr("source.burst must be >= 0")
	}
	if out.Source.TimeoutSeconds < 0 {
		res.addErr("source.timeout_seconds must be >= 0")
	}

	if out.Cache.TTLSeconds < 0 {
		res.addErr("cache.ttl_seconds must be >= 0")
	} else if out.Cache.TTLSeconds == 0 {
		res.addWarn("cache.ttl_seconds is 0; every page view fetches the whole table")
	}
	if out.Refresh.IntervalSeconds < 0 {
		res.addErr("refresh.interval_seconds must be >= 0")
	} else if out.Refresh.IntervalSeconds > 0 && out.Refresh.IntervalSeconds < 60 {
		res.addWarn("refresh.interval_seconds is very low (%d) and may hit rate limits.", out.Refresh.IntervalSeconds)
	}

	if !strings.Contains(out.Dashboard.ExpertURLTemplate, "{id}") {
		res.addErr("dashboard.expert_url_template must contain {id}")
	}
	if len(out.Dashboard.PageSizes) == 0 {
		res.addErr("dashboard.page_sizes must have at least 1 entry")
	}
	for _, n := range out.Dashboard.PageSizes {
		if n <= 0 {
			res.addErr("dashboard.page_sizes entries must be > 0, got %d", n)
		}
	}
	if len(out.Dashboard.PageSizes) > 0 && !slices.Contains(out.Dashboard.PageSizes, out.Dashboard.DefaultPageSize) {
		res.addErr("dashboard.default_page_size %d is not one of page_sizes %v", out.Dashboard.DefaultPageSize, out.Dashboard.PageSizes)
	}

	return out, res
}
