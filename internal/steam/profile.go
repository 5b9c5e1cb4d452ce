package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

var ErrPlayerNotFound = errors.New("steam player not found")

// APIStatusError is returned when the Steam Web API answers with a non-200 status
type APIStatusError struct {
	StatusCode int
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("steam web api returned status %d", e.StatusCode)
}

// maxProfileBody caps how much of a GetPlayerSummaries response is read
const maxProfileBody = 1 << 20

// ProfileClient fetches public player summaries from the Steam Web API
type ProfileClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewProfileClient creates a Web API client
func NewProfileClient(httpClient *http.Client, baseURL, apiKey string) *ProfileClient {
	return &ProfileClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

type playerSummariesResponse struct {
	Response struct {
		Players []map[string]any `json:"players"`
	} `json:"response"`
}

// PlayerSummary returns the raw player object for steamID
// GET /ISteamUser/GetPlayerSummaries/v0002/?key=...&steamids=...
func (c *ProfileClient) PlayerSummary(ctx context.Context, steamID string) (map[string]any, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("steamids", steamID)
	endpoint := c.baseURL + "/ISteamUser/GetPlayerSummaries/v0002/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build player summary request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the request URL carries the API key; drop it from the error
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = c.baseURL + "/ISteamUser/GetPlayerSummaries/v0002/"
		}
		return nil, fmt.Errorf("failed to fetch player summary: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIStatusError{StatusCode: resp.StatusCode}
	}

	var body playerSummariesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode player summary: %w", err)
	}

	for _, player := range body.Response.Players {
		if id, _ := player["steamid"].(string); id == steamID {
			return player, nil
		}
	}
	return nil, ErrPlayerNotFound
}
