// Package propertyapi is the client for the remote listing API.
//
// Every response is memoized with a fixed TTL per resource kind, and
// concurrent requests for the same resource share one upstream call.
// Nothing is invalidated except by TTL expiry or an explicit ClearCache.
package propertyapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/cache"
	"github.com/uyjoy/site/pkg/dirlist"
)

const (
	maxBodyBytes    = 8 << 20
	cleanupInterval = 5 * time.Minute
)

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	ListTTL   time.Duration
	DetailTTL time.Duration
	StaticTTL time.Duration // districts and image directory listings

	// Now is the cache clock. nil = time.Now.
	Now func() time.Time
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
	log     *zap.Logger

	lists     *cache.Loader[models.PropertyList]
	details   *cache.Loader[models.Property]
	districts *cache.Loader[[]models.District]
	images    *cache.Loader[[]string]
}

// New creates a client. Close it to stop the cache janitors.
func New(opts Options, log *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:   opts.BaseURL,
		http:      &http.Client{Timeout: opts.Timeout},
		opts:      opts,
		log:       log,
		lists:     cache.NewLoader[models.PropertyList](opts.ListTTL, cleanupInterval),
		details:   cache.NewLoader[models.Property](opts.DetailTTL, cleanupInterval),
		districts: cache.NewLoader[[]models.District](opts.StaticTTL, cleanupInterval),
		images:    cache.NewLoader[[]string](opts.StaticTTL, cleanupInterval),
	}
	if opts.Now != nil {
		c.lists.SetClock(opts.Now)
		c.details.SetClock(opts.Now)
		c.districts.SetClock(opts.Now)
		c.images.SetClock(opts.Now)
	}
	return c
}

// ListProperties returns one page of listings matching filter.
func (c *Client) ListProperties(ctx context.Context, filter models.PropertyFilter) (models.PropertyList, error) {
	filter.Normalize()
	q := filter.Values()
	q.Set("page", strconv.Itoa(filter.Page))
	q.Set("page_size", strconv.Itoa(filter.PageSize))

	endpoint := c.baseURL + "/properties"
	return c.lists.Load(ctx, cacheKey(endpoint, q), c.opts.ListTTL, func(ctx context.Context) (models.PropertyList, error) {
		var list models.PropertyList
		if err := c.getJSON(ctx, endpoint, q, &list); err != nil {
			return list, err
		}
		if list.Results == nil {
			list.Results = []models.Property{}
		}
		return list, nil
	})
}

// GetProperty returns one listing. A remote 404 is pkg.ErrNotFound.
func (c *Client) GetProperty(ctx context.Context, id int64) (models.Property, error) {
	if id <= 0 {
		return models.Property{}, fmt.Errorf("%w: property %d", pkg.ErrNotFound, id)
	}
	endpoint := c.baseURL + "/properties/" + strconv.FormatInt(id, 10)
	return c.details.Load(ctx, cacheKey(endpoint, nil), c.opts.DetailTTL, func(ctx context.Context) (models.Property, error) {
		var p models.Property
		err := c.getJSON(ctx, endpoint, nil, &p)
		return p, err
	})
}

// ListDistricts returns every district.
func (c *Client) ListDistricts(ctx context.Context) ([]models.District, error) {
	endpoint := c.baseURL + "/districts"
	return c.districts.Load(ctx, cacheKey(endpoint, nil), c.opts.StaticTTL, func(ctx context.Context) ([]models.District, error) {
		var ds []models.District
		err := c.getJSON(ctx, endpoint, nil, &ds)
		return ds, err
	})
}

// ListImages scrapes an HTML directory listing for image files.
func (c *Client) ListImages(ctx context.Context, dirURL string) ([]string, error) {
	return c.images.Load(ctx, cacheKey(dirURL, nil), c.opts.StaticTTL, func(ctx context.Context) ([]string, error) {
		body, err := c.get(ctx, dirURL, nil, "text/html")
		if err != nil {
			return nil, err
		}
		return dirlist.Parse(dirURL, body)
	})
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.lists.Clear()
	c.details.Clear()
	c.districts.Clear()
	c.images.Clear()
	c.log.Info("cache cleared")
}

// Stats sums cache counters across resource kinds.
func (c *Client) Stats() cache.Stats {
	var total cache.Stats
	for _, s := range []cache.Stats{c.lists.Stats(), c.details.Stats(), c.districts.Stats(), c.images.Stats()} {
		total.Hits += s.Hits
		total.Misses += s.Misses
		total.Shared += s.Shared
		total.Entries += s.Entries
	}
	return total
}

// Close stops the cache janitors.
func (c *Client) Close() {
	c.lists.Close()
	c.details.Close()
	c.districts.Close()
	c.images.Close()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out any) error {
	body, err := c.get(ctx, endpoint, q, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", pkg.ErrUpstream, endpoint, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, accept string) ([]byte, error) {
	target := endpoint
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkg.ErrUpstream, err)
	}
	defer resp.Body.Close()

	c.log.Debug("cache miss",
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", pkg.ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned %d", pkg.ErrUpstream, endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", pkg.ErrUpstream, endpoint, err)
	}
	return body, nil
}

// cacheKey is URL + "|" + the sorted query.
func cacheKey(endpoint string, q url.Values) string {
	return endpoint + "|" + q.Encode()
}
