package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"shoppulse/logger"
	"shoppulse/models"
)

var log = logger.GetLogger().WithComponent("platform")

// Client fetches pre-aggregated geographic summaries from the commerce
// platform. It is the fallback source when locally stored orders carry no
// usable address data. Requests are rate limited because platform APIs
// throttle aggressively.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	BurstSize         int
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.BurstSize <= 0 {
		opts.BurstSize = opts.RequestsPerSecond
	}

	return &Client{
		baseURL: opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.BurstSize),
	}
}

// geoSummaryResponse mirrors the platform's location rollup payload.
type geoSummaryResponse struct {
	Countries []geoSummaryNode `json:"countries"`
}

type geoSummaryNode struct {
	Name     string           `json:"name"`
	Orders   int              `json:"orders"`
	Sales    float64          `json:"sales"`
	Children []geoSummaryNode `json:"children,omitempty"`
}

// GeoSummary fetches the country level sales rollup for a store over the
// given period. Transport and server failures wrap
// models.ErrUpstreamUnavailable so callers can degrade instead of failing
// the whole report.
func (c *Client) GeoSummary(ctx context.Context, storeID string, period models.Period) ([]models.GeoNode, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/stores/%s/geo-summary", c.baseURL, url.PathEscape(storeID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build geo summary request: %w", err)
	}
	q := req.URL.Query()
	q.Set("start", period.Start.UTC().Format(time.RFC3339))
	q.Set("end", period.End.UTC().Format(time.RFC3339))
	req.URL.RawQuery = q.Encode()

	logger.IncrementPlatformCalls()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo summary request for store %s: %w: %v", storeID, models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithFields(logger.Fields{
			"store_id": storeID,
			"status":   resp.StatusCode,
		}).Warn("Platform geo summary returned non-200 status")
		return nil, fmt.Errorf("geo summary for store %s: %w: status %d", storeID, models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var payload geoSummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geo summary for store %s: %w: %v", storeID, models.ErrUpstreamUnavailable, err)
	}

	nodes := make([]models.GeoNode, 0, len(payload.Countries))
	for _, country := range payload.Countries {
		nodes = append(nodes, toGeoNode(country, models.GeoLevelCountry))
	}

	log.WithFields(logger.Fields{
		"store_id":  storeID,
		"countries": len(nodes),
	}).Debug("Fetched platform geo summary")
	return nodes, nil
}

var childLevel = map[string]string{
	models.GeoLevelCountry: models.GeoLevelRegion,
	models.GeoLevelRegion:  models.GeoLevelCity,
	models.GeoLevelCity:    models.GeoLevelDistrict,
}

func toGeoNode(n geoSummaryNode, level string) models.GeoNode {
	node := models.GeoNode{
		Name:   n.Name,
		Level:  level,
		Orders: n.Orders,
		Sales:  decimal.NewFromFloat(n.Sales),
	}
	next, ok := childLevel[level]
	if !ok {
		return node
	}
	for _, child := range n.Children {
		node.Children = append(node.Children, toGeoNode(child, next))
	}
	return node
}
