// Package openalex queries the OpenAlex works API for grouped publication
// counts and caches responses as dated JSON files under data/raw
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	perr "resurgence/internal/platform/errors"
	"resurgence/internal/platform/logger"
)

// ConceptAI is the OpenAlex concept id for Artificial Intelligence, the
// denominator of the field-normalized ratio
const ConceptAI = "C154945302"

const defaultBaseURL = "https://api.openalex.org"

// Group is one bucket of a group_by response
type Group struct {
	Key            string `json:"key"`
	KeyDisplayName string `json:"key_display_name"`
	Count          int    `json:"count"`
}

// Payload is the subset of the works response we consume and cache
type Payload struct {
	Meta struct {
		Count       int `json:"count"`
		GroupsCount int `json:"groups_count"`
	} `json:"meta"`
	GroupBy []Group `json:"group_by"`
}

// Client calls the works endpoint. Zero value is not usable; use New
type Client struct {
	base string
	http *http.Client
}

// New returns a client against the public API. baseURL overrides the
// endpoint for tests; empty means production
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// GroupBy fetches a single page of grouped counts. Non-2xx responses are
// ExternalService errors; there are no retries
func (c *Client) GroupBy(ctx context.Context, filter, groupBy string, page int) (Payload, error) {
	q := url.Values{}
	q.Set("filter", filter)
	q.Set("group_by", groupBy)
	q.Set("per-page", "200")
	if page > 1 {
		q.Set("page", fmt.Sprint(page))
	}
	u := c.base + "/works?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Payload{}, perr.Wrap(err, perr.ErrorCodeUnknown, "build openalex request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, perr.Wrap(err, perr.ErrorCodeExternalService, "openalex request")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Payload{}, perr.ExternalServicef("openalex %s: status %d", groupBy, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, perr.Wrap(err, perr.ErrorCodeExternalService, "read openalex response")
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, perr.Wrap(err, perr.ErrorCodeExternalService, "decode openalex response")
	}
	return p, nil
}

// GroupByAll pages through a grouped query until meta.groups_count buckets
// have been collected or a page comes back empty
func (c *Client) GroupByAll(ctx context.Context, filter, groupBy string) (Payload, error) {
	var out Payload
	for page := 1; ; page++ {
		p, err := c.GroupBy(ctx, filter, groupBy, page)
		if err != nil {
			return Payload{}, err
		}
		if page == 1 {
			out.Meta = p.Meta
		}
		if len(p.GroupBy) == 0 {
			break
		}
		out.GroupBy = append(out.GroupBy, p.GroupBy...)
		logger.C(ctx).Debug().Str("group_by", groupBy).Int("page", page).
			Int("collected", len(out.GroupBy)).Int("total", out.Meta.GroupsCount).Msg("openalex page")
		if out.Meta.GroupsCount > 0 && len(out.GroupBy) >= out.Meta.GroupsCount {
			break
		}
	}
	return out, nil
}
