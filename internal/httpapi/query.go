package httpapi

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"surveydash/internal/aggregate"
	"surveydash/internal/config"
	"surveydash/internal/source/util"
)

// parseView reads the dashboard query parameters. Unknown sort orders,
// page sizes outside the configured choices and malformed numbers are
// rejected; an out-of-range page number is clamped later.
func parseView(q url.Values, cfg config.Config) (aggregate.View, error) {
	v := aggregate.View{
		Query:    util.CleanText(q.Get("q")),
		ShowIDs:  cfg.Dashboard.ShowIDsDefault,
		Page:     1,
		PageSize: cfg.Dashboard.DefaultPageSize,
		Sort:     aggregate.SortName,
	}

	if raw := strings.TrimSpace(q.Get("show_ids")); raw != "" {
		b, err := parseBool(raw)
		if err != nil {
			return v, fmt.Errorf("show_ids: %w", err)
		}
		v.ShowIDs = b
	}

	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return v, fmt.Errorf("page must be an integer, got %q", raw)
		}
		v.Page = n
	}

	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return v, fmt.Errorf("page_size must be an integer, got %q", raw)
		}
		if len(cfg.Dashboard.PageSizes) > 0 && !slices.Contains(cfg.Dashboard.PageSizes, n) {
			return v, fmt.Errorf("page_size must be one of %v", cfg.Dashboard.PageSizes)
		}
		if n <= 0 {
			return v, fmt.Errorf("page_size must be positive")
		}
		v.PageSize = n
	}

	if raw := strings.TrimSpace(q.Get("count")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return v, fmt.Errorf("count must be a non-negative integer, got %q", raw)
		}
		v.ExactCount = n
	}

	switch s := strings.TrimSpace(q.Get("sort")); s {
	case "", aggregate.SortName:
	case aggregate.SortCountDesc:
		v.Sort = s
	default:
		return v, fmt.Errorf("sort must be %q or %q", aggregate.SortName, aggregate.SortCountDesc)
	}

	return v, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}

// viewQuery is the inverse of parseView, used for pagination links.
func viewQuery(v aggregate.View, page int) string {
	q := url.Values{}
	if v.Query != "" {
		q.Set("q", v.Query)
	}
	if v.ShowIDs {
		q.Set("show_ids", "1")
	} else {
		q.Set("show_ids", "0")
	}
	if v.ExactCount > 0 {
		q.Set("count", strconv.Itoa(v.ExactCount))
	}
	if v.Sort != "" && v.Sort != aggregate.SortName {
		q.Set("sort", v.Sort)
	}
	q.Set("page_size", strconv.Itoa(v.PageSize))
	q.Set("page", strconv.Itoa(page))
	return q.Encode()
}
