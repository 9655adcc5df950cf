// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/resolve"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Remote  RemoteConfig  `mapstructure:"remote"`
	Broker  BrokerConfig  `mapstructure:"broker"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Poll    PollConfig    `mapstructure:"poll"`
	Resolve ResolveConfig `mapstructure:"resolve"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// RemoteConfig identifies the remote service and its credentials. Either
// username/password (basic) or token (bearer) must be set.
type RemoteConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
}

// BrokerConfig controls the local session broker listener.
type BrokerConfig struct {
	// Port 0 requests an OS-assigned port.
	Port int `mapstructure:"port"`
}

// BatchConfig bounds outbound request sizes. The caps exist because the
// remote transport has practical URL-length and response-size limits.
type BatchConfig struct {
	PageIDs    int `mapstructure:"page_ids"`
	ContentIDs int `mapstructure:"content_ids"`
}

// PollConfig controls the session and publish-job polling loops.
type PollConfig struct {
	SessionIntervalSeconds int `mapstructure:"session_interval_seconds"`
	SessionAttempts        int `mapstructure:"session_attempts"`
	JobIntervalSeconds     int `mapstructure:"job_interval_seconds"`
}

// ResolveConfig selects the content-resolution failure policy.
type ResolveConfig struct {
	// Policy is "strict" (first failed batch aborts the run) or "skip"
	// (drop the failed association, log, continue).
	Policy string `mapstructure:"policy"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from the live Viper instance.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker.port", 0)
	v.SetDefault("batch.page_ids", 50)
	v.SetDefault("batch.content_ids", 30)
	v.SetDefault("poll.session_interval_seconds", 6)
	v.SetDefault("poll.session_attempts", 10)
	v.SetDefault("poll.job_interval_seconds", 5)
	v.SetDefault("resolve.policy", string(resolve.PolicyStrict))
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Remote.URL == "" {
		return fmt.Errorf("remote.url must be set")
	}
	if !strings.HasPrefix(c.Remote.URL, "http://") && !strings.HasPrefix(c.Remote.URL, "https://") {
		return fmt.Errorf("remote.url must be an http(s) URL")
	}
	if c.Remote.Token == "" && (c.Remote.Username == "" || c.Remote.Password == "") {
		return fmt.Errorf("remote credentials required: set remote.token or remote.username/remote.password")
	}
	if c.Broker.Port < 0 {
		return fmt.Errorf("broker.port must be >= 0")
	}
	if c.Batch.PageIDs <= 0 || c.Batch.ContentIDs <= 0 {
		return fmt.Errorf("batch.page_ids and batch.content_ids must be > 0")
	}
	if c.Poll.SessionIntervalSeconds <= 0 || c.Poll.SessionAttempts <= 0 {
		return fmt.Errorf("poll.session_interval_seconds and poll.session_attempts must be > 0")
	}
	if c.Poll.JobIntervalSeconds <= 0 {
		return fmt.Errorf("poll.job_interval_seconds must be > 0")
	}
	if !resolve.Policy(c.Resolve.Policy).Valid() {
		return fmt.Errorf("resolve.policy must be %q or %q", resolve.PolicyStrict, resolve.PolicySkip)
	}
	return nil
}

// SessionInterval converts the session poll cadence into a duration.
func (c Config) SessionInterval() time.Duration {
	return time.Duration(c.Poll.SessionIntervalSeconds) * time.Second
}

// JobInterval converts the publish job poll cadence into a duration.
func (c Config) JobInterval() time.Duration {
	return time.Duration(c.Poll.JobIntervalSeconds) * time.Second
}
