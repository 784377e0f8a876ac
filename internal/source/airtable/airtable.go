package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"surveydash/internal/domain"
	"surveydash/internal/source/types"
	"surveydash/internal/source/util"
)

const DefaultAPIURL = "https://api.airtable.com"

// maxErrorBody bounds how much of a failed response is kept for the operator.
const maxErrorBody = 64 * 1024

type Config struct {
	APIURL   string // scheme+host, e.g. https://api.airtable.com
	BaseID   string
	Table    string
	Token    string
	Fields   []string
	PageSize int // 0 lets the API choose
	Timeout  time.Duration
}

type Client struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = domain.DefaultFields()
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
	}
}

func (c *Client) Name() string { return "airtable" }

// listResponse is the list-records page shape: {"records":[...],"offset":"..."}.
type listResponse struct {
	Records []domain.RawRecord `json:"records"`
	Offset  string             `json:"offset"`
}

// Endpoint returns the list URL for the configured base and table.
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/v0/%s/%s",
		strings.TrimRight(c.cfg.APIURL, "/"),
		url.PathEscape(c.cfg.BaseID),
		url.PathEscape(c.cfg.Table),
	)
}

// FetchAll pages through the table until the API stops returning an offset.
// Records are accumulated in page order. Any non-2xx page aborts the fetch
// with a *FetchError.
func (c *Client) FetchAll(ctx context.Context) (types.FetchResult, error) {
	if strings.TrimSpace(c.cfg.BaseID) == "" || strings.TrimSpace(c.cfg.Table) == "" {
		return types.FetchResult{}, errors.New("airtable: base id and table are required")
	}

	var (
		out    []domain.RawRecord
		offset string
		pages  int
		seen   = map[string]bool{}
	)

	for {
		pages++
		page, err := c.fetchPage(ctx, offset, pages)
		if err != nil {
			return types.FetchResult{}, err
		}
		out = append(out, page.Records...)

		if page.Offset == "" {
			break
		}
		if seen[page.Offset] {
			return types.FetchResult{}, fmt.Errorf("page %d: %w", pages, ErrRepeatedOffset)
		}
		seen[page.Offset] = true
		offset = page.Offset
	}

	return types.FetchResult{
		Source:    c.Name(),
		Records:   out,
		Pages:     pages,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) pageURL(offset string) string {
	q := url.Values{}
	for _, f := range c.cfg.Fields {
		q.Add("fields[]", f)
	}
	if c.cfg.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	return c.Endpoint() + "?" + q.Encode()
}

func (c *Client) fetchPage(ctx context.Context, offset string, n int) (listResponse, error) {
	u := c.pageURL(offset)

	if c.limiter != nil {
		if err := c.limiter.WaitURL(ctx, u); err != nil {
			return listResponse{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return listResponse{}, fmt.Errorf("airtable build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "surveydash/1.0 (+local)")

	res, err := c.hc.Do(req)
	if err != nil {
		return listResponse{}, fmt.Errorf("airtable get: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return listResponse{}, &FetchError{
			StatusCode: res.StatusCode,
			Status:     res.Status,
			Body:       string(b),
			Page:       n,
		}
	}

	var page listResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&page); err != nil {
		return listResponse{}, fmt.Errorf("airtable decode page %d: %w", n, err)
	}
	return page, nil
}
