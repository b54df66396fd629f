package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"barmeet_server/internal/config"
	"barmeet_server/pkg/errorx"
)

// httpSearcher talks to a REST place-search endpoint. The client carries a
// hard timeout so a slow provider can never wedge an assignment attempt.
type httpSearcher struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// NewHTTPSearcher builds the searcher from config. The config timeout is in
// seconds.
func NewHTTPSearcher(cfg config.VenueConfig) Searcher {
	timeout := cfg.Timeout * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &httpSearcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: cfg.Endpoint,
		apiKey:   cfg.ApiKey,
	}
}

// searchResponse mirrors the provider's wire format.
type searchResponse struct {
	Results []struct {
		Name    string  `json:"name"`
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Id      string  `json:"id"`
		Rating  float64 `json:"rating"`
	} `json:"results"`
}

func (s *httpSearcher) Search(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Venue, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', 6, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("category", category)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderUnavailable, "build venue search request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	rsp, err := s.client.Do(req)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderUnavailable, "venue search request failed")
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return nil, errorx.Wrap(
			fmt.Errorf("status %d", rsp.StatusCode),
			errorx.CodeProviderUnavailable, "venue search returned non-200")
	}

	var body searchResponse
	if err := json.NewDecoder(rsp.Body).Decode(&body); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeProviderUnavailable, "decode venue search response")
	}

	venues := make([]Venue, 0, len(body.Results))
	for _, r := range body.Results {
		venues = append(venues, Venue{
			Name:         r.Name,
			Address:      r.Address,
			Latitude:     r.Lat,
			Longitude:    r.Lng,
			ExternalRef:  r.Id,
			QualityScore: r.Rating,
		})
	}
	return venues, nil
}
