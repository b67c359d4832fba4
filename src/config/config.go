// Package config defines the node's RuntimeConfig: every option recognized
// from the CLI/config-file layer and its effect on the runtime, mirroring
// the mapstructure-tagged Config struct the teacher repo binds through
// viper.
package config

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Default configuration values, mirroring original_source/gossip_node.py's
// NodeConfig defaults.
const (
	DefaultFanout             = 3
	DefaultTTL                = 8
	DefaultPeerLimit          = 50
	DefaultPingIntervalS      = 2.0
	DefaultPeerTimeoutS       = 6.0
	DefaultSeed               = 42
	DefaultPullIntervalS      = 2.0
	DefaultIDsMaxIHave        = 32
	DefaultKPow               = 0
	DefaultDiscoveryIntervalS = 4.0
	DefaultLogLevel           = "info"
	DefaultLogDir             = "."
)

// Config is the RuntimeConfig described by the data model: every field that
// the CLI/config-file layer can set and that the runtime reads.
type Config struct {
	// Port is the UDP bind port. The node listens on 0.0.0.0:Port and
	// advertises 127.0.0.1:Port as its SelfAddr, matching the loopback
	// single-host experiment topology used by the harness.
	Port int `mapstructure:"port"`

	// BootstrapAddr is the entry peer contacted once at startup. Equal to
	// SelfAddr means "I am the bootstrap node" and the handshake is skipped.
	BootstrapAddr string `mapstructure:"bootstrap"`

	// Fanout is the target forward degree for gossip and the sample size for
	// hybrid pull advertisements and periodic discovery. Liveness probes are
	// not sampled: every peer is probed on each tick.
	Fanout int `mapstructure:"fanout"`

	// TTL is the hop budget assigned to originated gossip.
	TTL int `mapstructure:"ttl"`

	// PeerLimit bounds the peer table.
	PeerLimit int `mapstructure:"peer-limit"`

	// PingIntervalS is the liveness scheduler tick period, in seconds.
	PingIntervalS float64 `mapstructure:"ping-interval"`

	// PeerTimeoutS is the staleness threshold for eviction, in seconds.
	PeerTimeoutS float64 `mapstructure:"peer-timeout"`

	// Seed seeds the node's RNG for reproducible sampling.
	Seed int64 `mapstructure:"seed"`

	// PullIntervalS is the hybrid pull (IHAVE advertisement) tick period.
	PullIntervalS float64 `mapstructure:"pull-interval"`

	// IDsMaxIHave bounds how many message IDs are advertised per IHAVE.
	IDsMaxIHave int `mapstructure:"ids-max-ihave"`

	// KPow is the required number of leading hex zeros on a HELLO's proof of
	// work. 0 disables PoW admission entirely.
	KPow int `mapstructure:"k-pow"`

	// DiscoveryIntervalS is the periodic GET_PEERS tick period. 0 disables
	// the discovery loop. Supplemented from original_source; not in the
	// distilled spec's recognized-options table but named by its prose as
	// one of the three periodic loops.
	DiscoveryIntervalS float64 `mapstructure:"discovery-interval"`

	// LogDir is the directory the JSONL event sink writes into.
	LogDir string `mapstructure:"log-dir"`

	// LogLevel controls logrus verbosity: debug, info, warn, error, fatal, panic.
	LogLevel string `mapstructure:"log"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a Config with every default value set. Port and
// BootstrapAddr have no sensible default and must be set by the caller.
func NewDefaultConfig() *Config {
	return &Config{
		Fanout:             DefaultFanout,
		TTL:                DefaultTTL,
		PeerLimit:          DefaultPeerLimit,
		PingIntervalS:      DefaultPingIntervalS,
		PeerTimeoutS:       DefaultPeerTimeoutS,
		Seed:               DefaultSeed,
		PullIntervalS:      DefaultPullIntervalS,
		IDsMaxIHave:        DefaultIDsMaxIHave,
		KPow:               DefaultKPow,
		DiscoveryIntervalS: DefaultDiscoveryIntervalS,
		LogDir:             DefaultLogDir,
		LogLevel:           DefaultLogLevel,
	}
}

// SelfAddr returns the loopback ip:port this node binds and advertises.
func (c *Config) SelfAddr() string {
	return "127.0.0.1:" + strconv.Itoa(c.Port)
}

// PingInterval returns PingIntervalS as a time.Duration.
func (c *Config) PingInterval() time.Duration {
	return durationFromSeconds(c.PingIntervalS)
}

// PeerTimeout returns PeerTimeoutS as a time.Duration.
func (c *Config) PeerTimeout() time.Duration {
	return durationFromSeconds(c.PeerTimeoutS)
}

// PullInterval returns PullIntervalS as a time.Duration.
func (c *Config) PullInterval() time.Duration {
	return durationFromSeconds(c.PullIntervalS)
}

// DiscoveryInterval returns DiscoveryIntervalS as a time.Duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return durationFromSeconds(c.DiscoveryIntervalS)
}

// Logger returns the configured logger, creating a default logrus.Logger at
// the configured level if none has been attached yet.
func (c *Config) Logger() *logrus.Logger {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
	}
	return c.logger
}

// SetLogger overrides the logger used for pre-runtime messages (config-file
// resolution, startup/shutdown lines printed by the CLI layer). The node
// runtime's own event logging goes through eventlog.Sink, not this logger.
func (c *Config) SetLogger(l *logrus.Logger) {
	c.logger = l
}

// LogLevel parses a string into a logrus.Level, defaulting to Info on an
// unrecognized value.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
