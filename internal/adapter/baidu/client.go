// Package baidu implements domain.TrafficSource with the Baidu Maps
// rectangular traffic API.
package baidu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// DefaultBaseURL is the production bound-query endpoint.
const DefaultBaseURL = "https://api.map.baidu.com/traffic/v1/bound"

// boxDelta is the half-width in degrees of the queried box, roughly 500 m.
const boxDelta = 0.005

// Road congestion levels reported by the API.
const (
	statusSmooth          = 1
	statusSlow            = 2
	statusCongested       = 3
	statusSevereCongested = 4
)

// Descriptions attached to normalized readings.
const (
	DescClear           = "surroundings clear"
	DescRoadClear       = "road clear"
	DescSlow            = "slow traffic"
	DescCongested       = "congested"
	DescSevereCongested = "severe congestion"
)

// Client implements domain.TrafficSource. It carries no timeout of its own;
// callers bound each lookup through the context.
type Client struct {
	ak         string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// Compile-time check that Client implements domain.TrafficSource.
var _ domain.TrafficSource = (*Client)(nil)

// NewClient creates a traffic client. An empty baseURL selects DefaultBaseURL.
func NewClient(ak, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		ak:         ak,
		httpClient: &http.Client{},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// Congestion returns the worst congestion level among roads inside a small
// box around at.
func (c *Client) Congestion(ctx context.Context, at domain.Coordinate) (domain.TrafficReading, error) {
	params := url.Values{
		"ak":               {c.ak},
		"bounds":           {bounds(at)},
		"coord_type_input": {"wgs84"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.TrafficReading{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TrafficReading{}, fmt.Errorf("traffic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.TrafficReading{}, fmt.Errorf("baidu API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.TrafficReading{}, fmt.Errorf("decode response: %w", err)
	}
	if out.Status != 0 {
		c.logger.Debug("baidu traffic query rejected", "status", out.Status, "message", out.Message)
		return domain.TrafficReading{}, fmt.Errorf("baidu API error: status %d: %s", out.Status, out.Message)
	}

	return classify(out.RoadTraffic), nil
}

// classify maps the worst road status to a reading. Roads without a status
// count as smooth.
func classify(roads []road) domain.TrafficReading {
	if len(roads) == 0 {
		return domain.TrafficReading{Severity: domain.SeverityGreen, Description: DescClear}
	}

	worst := 0
	for _, r := range roads {
		s := statusSmooth
		if r.Status != nil && *r.Status != 0 {
			s = *r.Status
		}
		worst = max(worst, s)
	}

	switch worst {
	case statusSevereCongested:
		return domain.TrafficReading{Severity: domain.SeverityRed, Description: DescSevereCongested}
	case statusCongested:
		return domain.TrafficReading{Severity: domain.SeverityRed, Description: DescCongested}
	case statusSlow:
		return domain.TrafficReading{Severity: domain.SeverityYellow, Description: DescSlow}
	default:
		return domain.TrafficReading{Severity: domain.SeverityGreen, Description: DescRoadClear}
	}
}

// bounds renders "minLat,minLng;maxLat,maxLng".
func bounds(at domain.Coordinate) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return f(at.Lat-boxDelta) + "," + f(at.Lng-boxDelta) + ";" + f(at.Lat+boxDelta) + "," + f(at.Lng+boxDelta)
}

// Baidu API response types.

type response struct {
	Status      int    `json:"status"`
	Message     string `json:"message"`
	RoadTraffic []road `json:"road_traffic"`
}

type road struct {
	RoadName string `json:"road_name"`
	Status   *int   `json:"status"`
}
