package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// CurrentVersion of the config file format.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	Server     Server     `koanf:"server"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	RateLimit  RateLimit  `koanf:"rate_limit"`
	Engagement Engagement `koanf:"engagement"`
	Hub        Hub        `koanf:"hub"`
	Cache      Cache      `koanf:"cache"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Directory for session log files.
	LogDir string `koanf:"log_dir"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Server contains HTTP server configuration.
type Server struct {
	// Listen host.
	Host string `koanf:"host"`
	// Listen port.
	Port int `koanf:"port"`
	// Origins allowed by the CORS middleware.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// RateLimit contains per-operation-class rate limiting configuration.
// Reactions are cheap to produce and get a higher allowance; comments are
// more expensive to produce and moderate, so their threshold is lower.
type RateLimit struct {
	Reactions OperationLimit `koanf:"reactions"`
	Comments  OperationLimit `koanf:"comments"`
}

// OperationLimit is the sliding-window allowance for one operation class.
type OperationLimit struct {
	// Sustained operations per minute.
	PerMinute float64 `koanf:"per_minute"`
	// Burst size above the sustained rate.
	Burst int `koanf:"burst"`
}

// Engagement contains the warmth scoring constants. The multiplier tables
// for reaction types and intensities are fixed in code; this section holds
// the deployment-tunable normalization constants and combination weights.
type Engagement struct {
	// Divisor normalizing summed reaction warmth deltas to [0,1].
	ReactionNorm float64 `koanf:"reaction_norm"`
	// Divisor normalizing the weighted comment count to [0,1].
	CommentNorm float64 `koanf:"comment_norm"`
	// Weight of a reply relative to a top-level comment.
	ReplyWeight float64 `koanf:"reply_weight"`
	// Sliding window for engagement velocity, in minutes.
	VelocityWindowMinutes int `koanf:"velocity_window_minutes"`
	// Interactions within the window that count as full velocity.
	VelocityExpected float64 `koanf:"velocity_expected"`
	// Cap on the warmth delta a single user can contribute to one post.
	MaxUserWarmth float64 `koanf:"max_user_warmth"`
	// Sub-score combination weights. Must sum to 1.
	WeightReaction      float64 `koanf:"weight_reaction"`
	WeightComment       float64 `koanf:"weight_comment"`
	WeightVelocity      float64 `koanf:"weight_velocity"`
	WeightParticipation float64 `koanf:"weight_participation"`
}

// Hub contains live-channel configuration.
type Hub struct {
	// Seconds between heartbeat pings.
	HeartbeatInterval int `koanf:"heartbeat_interval"`
	// Consecutive missed heartbeats before a connection is dropped.
	MaxMissedHeartbeats int `koanf:"max_missed_heartbeats"`
	// Outbound event queue size per connection.
	SendQueueSize int `koanf:"send_queue_size"`
}

// Cache contains read-model cache configuration.
type Cache struct {
	// Feed page TTL in seconds.
	FeedTTL int `koanf:"feed_ttl"`
	// Post and thread TTL in seconds.
	PostTTL int `koanf:"post_ttl"`
}

// LoadConfig loads the configuration from the first config path containing
// a bumpring.toml file. Returns the config along with the used config path.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".bumpring",
		homeDir + "/.bumpring/config",
		"/etc/bumpring/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := path + "/bumpring.toml"
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: bumpring.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Version != CurrentVersion {
		return nil, "", fmt.Errorf("%w: got version %d, expected %d",
			ErrConfigVersionMismatch, config.Version, CurrentVersion)
	}

	return &config, usedConfigPath, nil
}
