package netlink

import (
	"fmt"
	"net/url"
	"time"
)

// Field length limits carried over from the embedded station config.
const (
	MaxEndpointNameLen = 32
	MaxPassphraseLen   = 64
)

// Auth mode thresholds, weakest to strongest. The supervisor refuses to
// connect to an edge endpoint below the configured minimum.
const (
	AuthModeOpen = iota
	AuthModeToken
	AuthModePSK
)

// StationConfig holds the credentials for joining the edge endpoint.
// Mirrors the embedded station fields: endpoint name in place of SSID,
// bearer passphrase in place of the PSK.
type StationConfig struct {
	// EndpointName identifies the edge service, logged on connect.
	EndpointName string `mapstructure:"endpoint_name"`
	// EndpointURL is the websocket or status URL of the edge.
	EndpointURL string `mapstructure:"endpoint_url"`
	// Passphrase is sent as the bearer token when auth is enabled.
	Passphrase string `mapstructure:"passphrase"`
	// MinAuthMode rejects endpoints weaker than this threshold.
	MinAuthMode int `mapstructure:"min_auth_mode"`
	// PMFCapable and PMFRequired are kept for parity with the embedded
	// config surface; the supervisor only records them.
	PMFCapable  bool `mapstructure:"pmf_capable"`
	PMFRequired bool `mapstructure:"pmf_required"`
}

// Normalize returns a copy with name and passphrase truncated to the
// platform maximum field lengths.
func (c StationConfig) Normalize() StationConfig {
	out := c
	if len(out.EndpointName) > MaxEndpointNameLen {
		out.EndpointName = out.EndpointName[:MaxEndpointNameLen]
	}
	if len(out.Passphrase) > MaxPassphraseLen {
		out.Passphrase = out.Passphrase[:MaxPassphraseLen]
	}
	return out
}

// Validate checks the fields a connection attempt depends on.
func (c StationConfig) Validate() error {
	if c.EndpointName == "" {
		return fmt.Errorf("endpoint name is empty")
	}
	if c.EndpointURL == "" {
		return fmt.Errorf("endpoint url is empty")
	}
	if _, err := url.Parse(c.EndpointURL); err != nil {
		return fmt.Errorf("invalid endpoint url: %v", err)
	}
	if c.MinAuthMode < AuthModeOpen || c.MinAuthMode > AuthModePSK {
		return fmt.Errorf("invalid min auth mode: %d", c.MinAuthMode)
	}
	if c.MinAuthMode > AuthModeOpen && c.Passphrase == "" {
		return fmt.Errorf("auth mode %d requires a passphrase", c.MinAuthMode)
	}
	return nil
}

// Config drives the connectivity supervisor.
type Config struct {
	Station StationConfig `mapstructure:"station"`

	// ProbeInterval is the keepalive cadence once online.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	// ProbeTimeout bounds a single connectivity probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	Backoff BackoffPolicy `mapstructure:"backoff"`
}

func (c Config) withDefaults() Config {
	out := c
	if out.ProbeInterval <= 0 {
		out.ProbeInterval = 15 * time.Second
	}
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = 5 * time.Second
	}
	out.Backoff = out.Backoff.withDefaults()
	return out
}
