package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"barmeet_server/internal/config"
	dao "barmeet_server/internal/dao/mysql"
	myredis "barmeet_server/internal/dao/redis"
	"barmeet_server/internal/handler"
	"barmeet_server/internal/https_server"
	"barmeet_server/internal/infrastructure/logger"
	"barmeet_server/internal/infrastructure/mq"
	"barmeet_server/internal/infrastructure/notify"
	"barmeet_server/internal/infrastructure/venue"
	"barmeet_server/internal/service"
	"barmeet_server/internal/service/assignment"
	"barmeet_server/internal/service/chat"
	"barmeet_server/internal/service/matching"
	"barmeet_server/internal/service/schedule"
	"barmeet_server/internal/service/sweep"
	"barmeet_server/pkg/constants"
	"barmeet_server/pkg/util/jwt"
	"barmeet_server/pkg/util/snowflake"
)

func main() {
	conf := config.GetConfig()

	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("logger ready")

	snowflake.Init(conf.SnowflakeConfig.MachineID)
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.RefreshTokenExpiry)

	repos := dao.Init()
	zap.L().Info("database ready")

	cache := myredis.Init()
	zap.L().Info("redis ready")

	if err := handler.InitTrans("en"); err != nil {
		zap.L().Fatal("validator translator init failed", zap.Error(err))
	}

	// Event bus: in-process channel by default, kafka when configured.
	var bus mq.EventBus
	if conf.KafkaConfig.MessageMode == "kafka" {
		bus = mq.NewKafkaBus(conf.KafkaConfig)
	} else {
		bus = mq.NewChannelBus()
	}

	broker := chat.NewChannelBroker(repos.Message, repos.Participant, cache)
	handler.Broker = broker

	capacity := matching.NewCapacityController(repos, bus, broker, cache)
	normalizer := matching.NewRegionNormalizer(conf.MatchingConfig.Hubs)
	matcher := matching.NewGeoMatcher(repos, normalizer, capacity, conf.MatchingConfig.DefaultRadius)

	dispatcher, err := notify.Init(nil)
	if err != nil {
		zap.L().Fatal("dispatcher init failed", zap.Error(err))
	}
	searcher := venue.NewHTTPSearcher(conf.VenueConfig)
	// Config durations are plain integers, seconds.
	assigner := assignment.NewService(repos, searcher, dispatcher, broker, assignment.Options{
		Category:      conf.VenueConfig.Category,
		MinQuality:    conf.VenueConfig.MinQuality,
		SearchTimeout: conf.VenueConfig.Timeout * time.Second,
		MeetingOffset: conf.VenueConfig.MeetingOffset * time.Second,
	})

	service.InitServices(service.Deps{
		Repos:    repos,
		Matcher:  matcher,
		Capacity: capacity,
		Presence: broker,
		Cache:    cache,
	})
	zap.L().Info("services ready")

	go broker.Start()
	go bus.Start(assigner.HandleGroupFilled)

	ctx, cancel := context.WithCancel(context.Background())

	sweepInterval := orDefault(conf.SweepConfig.Interval*time.Second, constants.SWEEP_INTERVAL)
	ages := sweep.Ages{
		ParticipantInactivity: orDefault(conf.SweepConfig.InactivityAge*time.Second, constants.PARTICIPANT_INACTIVITY),
		StaleGroup:            orDefault(conf.SweepConfig.StaleGroupAge*time.Second, constants.GROUP_STALENESS),
		MeetingGrace:          orDefault(conf.SweepConfig.MeetingGrace*time.Second, constants.MEETING_GRACE),
	}
	sweeper := sweep.NewSweeper(repos, capacity, broker, sweepInterval, ages)
	go sweeper.Run(ctx)

	activateInterval := orDefault(conf.SweepConfig.ActivateInterval*time.Second, constants.ACTIVATE_INTERVAL)
	activator := schedule.NewActivator(repos, bus, broker, activateInterval)
	go activator.Run(ctx)

	engine := https_server.Init()
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()
	zap.L().Info("server listening", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}

	bus.Close()
	broker.Close()

	zap.L().Info("server stopped")
	_ = zap.L().Sync()
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
