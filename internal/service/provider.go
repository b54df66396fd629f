// Package service wires the business layer together.
package service

import (
	"barmeet_server/internal/dao/mysql/repository"
	myredis "barmeet_server/internal/dao/redis"
	"barmeet_server/internal/service/matching"
	"barmeet_server/internal/service/outing"
)

// Services aggregates all service instances. Handlers reach them through
// the package-level Svc.
type Services struct {
	Outing OutingService
}

// Deps carries everything the service layer needs from the outer wiring.
type Deps struct {
	Repos    *repository.Repositories
	Matcher  *matching.GeoMatcher
	Capacity *matching.CapacityController
	Presence outing.Presence
	Cache    myredis.AsyncCacheService
}

// NewServices builds the service aggregate.
func NewServices(d Deps) *Services {
	return &Services{
		Outing: outing.NewOutingService(d.Repos, d.Matcher, d.Capacity, d.Presence, d.Cache),
	}
}

// Svc is the global service aggregate, set once at startup.
var Svc *Services

// InitServices initializes Svc. Call after the repositories are ready.
func InitServices(d Deps) {
	Svc = NewServices(d)
}
