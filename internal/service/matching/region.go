package matching

import "barmeet_server/internal/config"

// Coordinate is a WGS84 position. A nil *Coordinate means the caller has no
// location, which the matcher rejects outright.
type Coordinate struct {
	Lat float64
	Lng float64
}

// RegionNormalizer collapses coordinates inside a configured metro bounding
// box onto that metro's single canonical hub. Without it GPS jitter and dense
// urban geography would splinter the matching pool into near-empty groups
// that never fill.
type RegionNormalizer struct {
	hubs []config.HubConfig
}

// NewRegionNormalizer builds a normalizer over the configured hubs.
func NewRegionNormalizer(hubs []config.HubConfig) *RegionNormalizer {
	return &RegionNormalizer{hubs: hubs}
}

// Normalize is pure: inside a hub's box it returns the hub coordinate, its
// name and its search radius; outside all hubs the input passes through
// unchanged with no hub name and a zero radius (the caller substitutes the
// default). First matching hub wins; boxes are expected not to overlap.
func (n *RegionNormalizer) Normalize(coord Coordinate) (Coordinate, string, int) {
	for _, hub := range n.hubs {
		if coord.Lat >= hub.MinLat && coord.Lat <= hub.MaxLat &&
			coord.Lng >= hub.MinLng && coord.Lng <= hub.MaxLng {
			return Coordinate{Lat: hub.HubLat, Lng: hub.HubLng}, hub.Name, hub.SearchRadius
		}
	}
	return coord, "", 0
}
