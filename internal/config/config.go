package config

import (
	"fmt"
	"time"

	"github.com/galaxycore/galaxyview/internal/layout"
	"github.com/galaxycore/galaxyview/internal/viewport"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "galaxyview.cfg.json"

// APIConfig holds backend connection settings.
type APIConfig struct {
	ServerURL     string        `json:"serverUrl" mapstructure:"serverUrl"`
	Token         string        `json:"token" mapstructure:"token"`
	Timeout       time.Duration `json:"timeout" mapstructure:"timeout"`
	SubmitTimeout time.Duration `json:"submitTimeout" mapstructure:"submitTimeout"`
}

// PollConfig holds snapshot refresh pacing and the notify channel.
type PollConfig struct {
	Interval       time.Duration `json:"interval" mapstructure:"interval"`
	RetryInterval  time.Duration `json:"retryInterval" mapstructure:"retryInterval"`
	MaxPerSecond   float64       `json:"maxPerSecond" mapstructure:"maxPerSecond"`
	Burst          int           `json:"burst" mapstructure:"burst"`
	NotifyEnabled  bool          `json:"notifyEnabled" mapstructure:"notifyEnabled"`
	NotifyPath     string        `json:"notifyPath" mapstructure:"notifyPath"`
	InitialBackoff time.Duration `json:"initialBackoff" mapstructure:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff" mapstructure:"maxBackoff"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// ArchiveConfig holds local snapshot archive settings.
type ArchiveConfig struct {
	Enabled  bool           `json:"enabled" mapstructure:"enabled"`
	Type     string         `json:"type" mapstructure:"type"` // "memory", "sqlite" or "postgres"
	Path     string         `json:"path" mapstructure:"path"`
	Keep     int            `json:"keep" mapstructure:"keep"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds client telemetry settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// WindowConfig holds the initial window.
type WindowConfig struct {
	Title  string `json:"title" mapstructure:"title"`
	Width  int    `json:"width" mapstructure:"width"`
	Height int    `json:"height" mapstructure:"height"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; it is exported for
// running without a config file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("playerId", "")
	viper.SetDefault("debugAddr", "127.0.0.1:7070")

	viper.SetDefault("window.title", "Galaxy")
	viper.SetDefault("window.width", 1280)
	viper.SetDefault("window.height", 800)

	viper.SetDefault("api.serverUrl", "http://localhost:8080")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.timeout", "30s")
	viper.SetDefault("api.submitTimeout", "15s")

	viper.SetDefault("poll.interval", "30s")
	viper.SetDefault("poll.retryInterval", "5s")
	viper.SetDefault("poll.maxPerSecond", 1.0)
	viper.SetDefault("poll.burst", 2)
	viper.SetDefault("poll.notifyEnabled", true)
	viper.SetDefault("poll.notifyPath", "/api/notify")
	viper.SetDefault("poll.initialBackoff", "1s")
	viper.SetDefault("poll.maxBackoff", "30s")

	dv := viewport.DefaultConfig()
	viper.SetDefault("viewport.minZoom", dv.MinZoom)
	viper.SetDefault("viewport.maxZoom", dv.MaxZoom)
	viper.SetDefault("viewport.mediumThreshold", dv.MediumThreshold)
	viper.SetDefault("viewport.fineThreshold", dv.FineThreshold)

	dl := layout.DefaultConfig()
	viper.SetDefault("layout.satelliteRadius", dl.SatelliteRadius)
	viper.SetDefault("layout.satelliteStep", dl.SatelliteStep)
	viper.SetDefault("layout.fleetRingPx", dl.FleetRingPx)
	viper.SetDefault("layout.fleetRingStepPx", dl.FleetRingStepPx)
	viper.SetDefault("layout.bodyRadius", dl.BodyRadius)
	viper.SetDefault("layout.minMarkerPx", dl.MinMarkerPx)
	viper.SetDefault("layout.fleetMarkerPx", dl.FleetMarkerPx)
	viper.SetDefault("layout.hitTolerancePx", dl.HitTolerancePx)
	viper.SetDefault("layout.perTurnDistance", dl.PerTurnDistance)

	viper.SetDefault("archive.enabled", true)
	viper.SetDefault("archive.type", "sqlite")
	viper.SetDefault("archive.path", "./galaxyview.db")
	viper.SetDefault("archive.keep", 5)
	viper.SetDefault("archive.postgres.host", "localhost")
	viper.SetDefault("archive.postgres.port", "5432")
	viper.SetDefault("archive.postgres.username", "postgres")
	viper.SetDefault("archive.postgres.password", "postgres")
	viper.SetDefault("archive.postgres.database", "galaxyview")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "galaxyview")
	viper.SetDefault("influx.bucket", "client")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "galaxyview")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func unmarshal[T any](key string) T {
	var out T
	// a malformed value leaves zero fields, which consumers replace with defaults
	_ = viper.UnmarshalKey(key, &out)
	return out
}

// GetAPIConfig returns the backend connection settings.
func GetAPIConfig() APIConfig { return unmarshal[APIConfig]("api") }

// GetPollConfig returns the refresh settings.
func GetPollConfig() PollConfig { return unmarshal[PollConfig]("poll") }

// GetArchiveConfig returns the snapshot archive settings.
func GetArchiveConfig() ArchiveConfig { return unmarshal[ArchiveConfig]("archive") }

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig { return unmarshal[OTelConfig]("otel") }

// GetInfluxConfig returns the client telemetry settings.
func GetInfluxConfig() InfluxConfig { return unmarshal[InfluxConfig]("influx") }

// GetGraylogConfig returns the GELF sink settings.
func GetGraylogConfig() GraylogConfig { return unmarshal[GraylogConfig]("graylog") }

// GetWindowConfig returns the initial window settings.
func GetWindowConfig() WindowConfig { return unmarshal[WindowConfig]("window") }

// GetViewportConfig returns zoom bounds and level-of-detail thresholds.
func GetViewportConfig() viewport.Config { return unmarshal[viewport.Config]("viewport") }

// GetLayoutConfig returns placement and hit-test tuning.
func GetLayoutConfig() layout.Config { return unmarshal[layout.Config]("layout") }
