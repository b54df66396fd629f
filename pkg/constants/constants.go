package constants

import "time"

const (
	CHANNEL_SIZE  = 100 // buffered channel size for ws and event plumbing
	REDIS_TIMEOUT = 30  // cache entry ttl (minutes)

	// GROUP_CAPACITY is the fixed number of confirmed participants per outing.
	// The whole lifecycle is designed around exactly five people; it is a
	// constant, not a config knob.
	GROUP_CAPACITY = 5

	// DEFAULT_SEARCH_RADIUS is the matching radius in meters for groups
	// created outside any configured metro hub.
	DEFAULT_SEARCH_RADIUS = 3000

	// VENUE_PENDING is the sentinel written into a group's venue_ref while an
	// assignment attempt holds the single-writer lock. A real external venue
	// reference never collides with it.
	VENUE_PENDING = "__pending__"

	// MEETING_OFFSET is how far after confirmation the meeting time is set.
	MEETING_OFFSET = time.Hour

	// Sweeper thresholds.
	PARTICIPANT_INACTIVITY = 2 * time.Hour       // heartbeat age before a participant is reclaimed
	GROUP_STALENESS        = 24 * time.Hour      // empty waiting group age before deletion
	MEETING_GRACE          = 6 * time.Hour       // confirmed group kept after its meeting time
	SWEEP_INTERVAL         = 90 * time.Minute    // default sweep cadence
	ACTIVATE_INTERVAL      = 30 * time.Second    // default schedule-activation cadence
	PRESENCE_TTL           = 90 * time.Second    // presence set entry lifetime
)
