// Package venue abstracts the external venue-search provider.
package venue

import "context"

// Venue is one ranked search result.
type Venue struct {
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ExternalRef  string  `json:"externalRef"`
	QualityScore float64 `json:"qualityScore"`
}

// Searcher finds venues of a category around a coordinate. Implementations
// must honor ctx cancellation and bound their own request time; the caller
// treats a timeout like any other provider failure.
type Searcher interface {
	Search(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]Venue, error)
}
