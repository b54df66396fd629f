// Package config loads and exposes the application configuration.
// The file format is TOML; several candidate paths are tried in order.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// MainConfig holds the basic server settings.
type MainConfig struct {
	AppName string `toml:"appName"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Mode    string `toml:"mode"` // "dev" or "release"
}

// MysqlConfig holds the MySQL connection settings.
type MysqlConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	DatabaseName string `toml:"databaseName"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	Db       int    `toml:"db"`
}

// LogConfig configures zap output and lumberjack rotation.
type LogConfig struct {
	LogPath    string `toml:"logPath"`
	FileName   string `toml:"fileName"`
	MaxSize    int    `toml:"maxSize"`    // MB per file
	MaxBackups int    `toml:"maxBackups"` // rotated files kept
	MaxAge     int    `toml:"maxAge"`     // days kept
	Level      string `toml:"level"`
}

// KafkaConfig configures the GroupFilled event bus.
// messageMode selects between the in-process channel bus ("channel") and
// kafka ("kafka"); the rest only applies to kafka mode.
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"`
	HostPort    string        `toml:"hostPort"`
	FilledTopic string        `toml:"filledTopic"`
	Partition   int           `toml:"partition"`
	Timeout     time.Duration `toml:"timeout"`
}

// JWTConfig holds token signing and verification settings. In release mode
// issuance lives with the external user directory; dev mode can mint its own
// pairs through the /dev/token route.
type JWTConfig struct {
	Secret             string `toml:"secret"`
	AccessTokenExpiry  int    `toml:"accessTokenExpiry"`  // minutes
	RefreshTokenExpiry int    `toml:"refreshTokenExpiry"` // hours
}

// HubConfig defines one metro hub: a bounding box that collapses onto a single
// canonical meeting coordinate so matching demand pools instead of fragmenting
// on GPS jitter.
type HubConfig struct {
	Name         string  `toml:"name"`
	MinLat       float64 `toml:"minLat"`
	MaxLat       float64 `toml:"maxLat"`
	MinLng       float64 `toml:"minLng"`
	MaxLng       float64 `toml:"maxLng"`
	HubLat       float64 `toml:"hubLat"`
	HubLng       float64 `toml:"hubLng"`
	SearchRadius int     `toml:"searchRadius"` // meters
}

// MatchingConfig tunes group matching.
type MatchingConfig struct {
	DefaultRadius int         `toml:"defaultRadius"` // meters, outside all hubs
	Hubs          []HubConfig `toml:"hubs"`
}

// VenueConfig configures the external venue-search provider. Durations are
// plain integers in seconds, multiplied by time.Second at the use site.
type VenueConfig struct {
	Endpoint      string        `toml:"endpoint"`
	ApiKey        string        `toml:"apiKey"`
	Category      string        `toml:"category"`
	MinQuality    float64       `toml:"minQuality"`
	Timeout       time.Duration `toml:"timeout"`
	MeetingOffset time.Duration `toml:"meetingOffset"`
}

// SmsConfig configures the Alibaba SMS notification channel.
type SmsConfig struct {
	Enabled         bool   `toml:"enabled"`
	AccessKeyID     string `toml:"accessKeyID"`
	AccessKeySecret string `toml:"accessKeySecret"`
	SignName        string `toml:"signName"`
	TemplateCode    string `toml:"templateCode"`
}

// SweepConfig tunes the reclamation sweeper and schedule activator.
// All values are integers in seconds; zero falls back to the built-in
// defaults.
type SweepConfig struct {
	Interval         time.Duration `toml:"interval"`
	ActivateInterval time.Duration `toml:"activateInterval"`
	InactivityAge    time.Duration `toml:"inactivityAge"`
	StaleGroupAge    time.Duration `toml:"staleGroupAge"`
	MeetingGrace     time.Duration `toml:"meetingGrace"`
}

// SnowflakeConfig holds the snowflake node id, unique per instance.
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"`
}

// Config aggregates all sections.
type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	JWTConfig       `toml:"jwtConfig"`
	MatchingConfig  `toml:"matchingConfig"`
	VenueConfig     `toml:"venueConfig"`
	SmsConfig       `toml:"smsConfig"`
	SweepConfig     `toml:"sweepConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
}

var config *Config

// LoadConfig tries the candidate paths in order and stops at the first file
// that parses.
func LoadConfig() error {
	paths := []string{
		"configs/config_local.toml",
		"configs/config.toml",
		"../../configs/config_local.toml",
		"../../configs/config.toml",
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig returns the global configuration, loading it on first use.
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // fall back to zero values when no file is present
	}
	return config
}
