package matching_test

import (
	"testing"

	"barmeet_server/internal/config"
	"barmeet_server/internal/service/matching"
)

var testHubs = []config.HubConfig{
	{
		Name:   "downtown",
		MinLat: 40.70, MaxLat: 40.78,
		MinLng: -74.02, MaxLng: -73.95,
		HubLat: 40.7410, HubLng: -73.9896,
		SearchRadius: 2000,
	},
	{
		Name:   "brooklyn",
		MinLat: 40.65, MaxLat: 40.70,
		MinLng: -74.00, MaxLng: -73.92,
		HubLat: 40.6782, HubLng: -73.9442,
		SearchRadius: 2500,
	},
}

func TestNormalizeInsideHub(t *testing.T) {
	n := matching.NewRegionNormalizer(testHubs)

	coord, hub, radius := n.Normalize(matching.Coordinate{Lat: 40.75, Lng: -73.99})
	if hub != "downtown" {
		t.Fatalf("hub = %q", hub)
	}
	if coord.Lat != 40.7410 || coord.Lng != -73.9896 {
		t.Fatalf("coord = %+v, want hub coordinate", coord)
	}
	if radius != 2000 {
		t.Fatalf("radius = %d", radius)
	}
}

func TestNormalizeFirstMatchingHubWins(t *testing.T) {
	n := matching.NewRegionNormalizer(testHubs)

	// 40.70 sits on both boxes' edge; the first configured hub takes it.
	_, hub, _ := n.Normalize(matching.Coordinate{Lat: 40.70, Lng: -73.96})
	if hub != "downtown" {
		t.Fatalf("hub = %q, want downtown", hub)
	}
}

func TestNormalizeOutsideAllHubs(t *testing.T) {
	n := matching.NewRegionNormalizer(testHubs)

	in := matching.Coordinate{Lat: 51.5072, Lng: -0.1276}
	coord, hub, radius := n.Normalize(in)
	if hub != "" || radius != 0 {
		t.Fatalf("hub=%q radius=%d, want passthrough", hub, radius)
	}
	if coord != in {
		t.Fatalf("coord = %+v, want unchanged", coord)
	}
}

func TestNormalizeNoHubsConfigured(t *testing.T) {
	n := matching.NewRegionNormalizer(nil)

	in := matching.Coordinate{Lat: 40.75, Lng: -73.99}
	coord, hub, _ := n.Normalize(in)
	if hub != "" || coord != in {
		t.Fatalf("coord=%+v hub=%q, want passthrough", coord, hub)
	}
}
