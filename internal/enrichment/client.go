// Package enrichment fetches raw feature records from the external enrichment
// pipeline.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ugobe007/pythh-sub021/internal/scoring"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient creates a client for baseURL. requestsPerSecond <= 0 disables
// client-side rate limiting.
func NewHTTPClient(baseURL string, timeout time.Duration, requestsPerSecond float64) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return c
}

type featuresResponse struct {
	StartupID string             `json:"startup_id"`
	Features  map[string]float64 `json:"features"`
}

// Features returns the latest feature record for a startup. A startup the
// pipeline has not seen yet yields nil, nil.
func (c *HTTPClient) Features(ctx context.Context, startupID uuid.UUID) (scoring.Features, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "enrichment: rate limit wait")
		}
	}

	url := fmt.Sprintf("%s/api/v1/startups/%s/features", c.baseURL, startupID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "enrichment: fetch features for %s", startupID)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: read response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("enrichment: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw featuresResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, eris.Wrap(err, "enrichment: decode features")
	}
	if len(raw.Features) == 0 {
		return nil, nil
	}
	return scoring.Features(raw.Features), nil
}
