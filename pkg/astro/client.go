// Package astro provides a client for the chart and compatibility scoring
// microservice.
package astro

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the scoring service operations used by the matching core.
//
// Callers treat any error as "no result for this pair": scoring failures are
// dropped from the batch they belong to and are never retried here.
type Client interface {
	// ComputeMatch runs the full pairwise match computation for the daily job.
	ComputeMatch(ctx context.Context, userA, userB Subject) (*MatchResult, error)
	// QuickScore computes the lightweight harmony/lust/soul scores for ranking.
	QuickScore(ctx context.Context, userA, userB Subject) (*QuickScoreResult, error)
	// CalculateChart computes natal chart fields from birth data.
	CalculateChart(ctx context.Context, req ChartRequest) (*Chart, error)
}

// Subject is the birth data sent for one side of a pairwise computation.
type Subject struct {
	UserID    string  `json:"user_id"`
	BirthDate string  `json:"birth_date"`
	BirthTime string  `json:"birth_time,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
}

// MatchResult is the parsed compute-match response.
type MatchResult struct {
	KernelScore float64   `json:"kernel_score"`
	PowerScore  float64   `json:"power_score"`
	GlitchScore float64   `json:"glitch_score"`
	TotalScore  float64   `json:"total_score"`
	MatchType   string    `json:"match_type"`
	Tags        []string  `json:"tags"`
	RadarA      []float64 `json:"radar_a,omitempty"`
	RadarB      []float64 `json:"radar_b,omitempty"`
	CardColor   string    `json:"card_color,omitempty"`
}

// QuickScoreResult is the parsed quick-score response.
type QuickScoreResult struct {
	Harmony      float64            `json:"harmony"`
	Lust         float64            `json:"lust"`
	Soul         float64            `json:"soul"`
	PrimaryTrack string             `json:"primary_track"`
	Quadrant     string             `json:"quadrant"`
	Labels       []string           `json:"labels"`
	Tracks       map[string]float64 `json:"tracks"`
}

// ChartRequest is the calculate-chart request body.
type ChartRequest struct {
	BirthDate string  `json:"birth_date"`
	BirthTime string  `json:"birth_time,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timezone  string  `json:"timezone"`
}

// Chart holds the natal chart fields returned by the service.
type Chart struct {
	SunSign       string  `json:"sun_sign"`
	MoonSign      string  `json:"moon_sign"`
	AscendantSign string  `json:"ascendant_sign"`
	AscendantDeg  float64 `json:"ascendant_deg"`
	BoundaryCase  bool    `json:"boundary_case"`
}

// Option configures the astro client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound calls at rps requests per second. Zero leaves
// the client unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a scoring service client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends a JSON body and decodes the response into out. Non-2xx responses
// are returned as errors without retrying.
func (c *httpClient) post(ctx context.Context, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "astro: rate limit wait")
		}
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return eris.Wrapf(err, "astro: marshal %s request", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrapf(err, "astro: create %s request", path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "astro: %s request failed", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "astro: read %s response", path)
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("astro: %s unexpected status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "astro: unmarshal %s response", path)
	}
	return nil
}

type pairRequest struct {
	UserA Subject `json:"user_a"`
	UserB Subject `json:"user_b"`
}

func (c *httpClient) ComputeMatch(ctx context.Context, userA, userB Subject) (*MatchResult, error) {
	var result MatchResult
	if err := c.post(ctx, "/compute-match", pairRequest{UserA: userA, UserB: userB}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) QuickScore(ctx context.Context, userA, userB Subject) (*QuickScoreResult, error) {
	var result QuickScoreResult
	if err := c.post(ctx, "/quick-score", pairRequest{UserA: userA, UserB: userB}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) CalculateChart(ctx context.Context, req ChartRequest) (*Chart, error) {
	var chart Chart
	if err := c.post(ctx, "/calculate-chart", req, &chart); err != nil {
		return nil, err
	}
	return &chart, nil
}
