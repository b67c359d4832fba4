package commands

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AbolfazlSheikhha/gossip-network/src/node"
)

// NewRunCmd returns the command that starts a gossip node.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the gossip node",
		PreRunE: loadConfig,
		RunE:    runNode,
	}
	AddRunFlags(cmd)
	return cmd
}

// AddRunFlags registers every CLI flag from the wire spec's external
// interface, required and accepted, plus the supplemented discovery
// interval and log level.
func AddRunFlags(cmd *cobra.Command) {
	cmd.Flags().Int("port", _config.Port, "UDP bind port")
	cmd.Flags().String("bootstrap", _config.BootstrapAddr, "Bootstrap peer ip:port, or self to skip the handshake")
	cmd.Flags().Int("fanout", _config.Fanout, "Target forward degree per new gossip")
	cmd.Flags().Int("ttl", _config.TTL, "Initial gossip TTL")
	cmd.Flags().Int("peer-limit", _config.PeerLimit, "Peer table capacity")
	cmd.Flags().Float64("ping-interval", _config.PingIntervalS, "Liveness probe period, in seconds")
	cmd.Flags().Float64("peer-timeout", _config.PeerTimeoutS, "Staleness threshold before eviction, in seconds")
	cmd.Flags().Int64("seed", _config.Seed, "RNG seed")

	cmd.Flags().Float64("pull-interval", _config.PullIntervalS, "Hybrid pull IHAVE advertisement period, in seconds")
	cmd.Flags().Int("ids-max-ihave", _config.IDsMaxIHave, "Max message ids per IHAVE advertisement")
	cmd.Flags().Int("k-pow", _config.KPow, "Required leading hex zeros on HELLO proof of work; 0 disables PoW")
	cmd.Flags().String("log-dir", _config.LogDir, "Directory for the JSONL event sink")

	cmd.Flags().Float64("discovery-interval", _config.DiscoveryIntervalS, "Periodic GET_PEERS period, in seconds; 0 disables")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("config-dir", ".", "Directory to search for an optional gossipnode.{yaml,json,toml} config file")

	for _, required := range []string{
		"port", "bootstrap", "fanout", "ttl", "peer-limit", "ping-interval", "peer-timeout", "seed",
	} {
		cmd.MarkFlagRequired(required)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	n, err := node.New(_config)
	if err != nil {
		_config.Logger().WithError(err).Error("failed to initialize node")
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"node_id": n.SelfID(), "self_addr": n.SelfAddr(), "bootstrap": _config.BootstrapAddr,
	}).Info("starting gossip node")

	return n.Run()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}
	_config.Logger().Level = logrusLevel(_config.LogLevel)
	return nil
}

// bindFlagsLoadViper binds CLI flags, then layers an optional config file
// (gossipnode.{yaml,json,toml} under --config-dir) underneath them, the way
// the teacher's CLI merges flags over a per-datadir config file. It also
// watches that file through viper's fsnotify-based WatchConfig and
// re-unmarshals _config when it changes. The node's components copy their
// settings (fanout, ttl, peer limit, k_pow, seed, ...) at startup and keep
// those values; after startup only the periodic loops' re-arm intervals are
// read again from _config.
func bindFlagsLoadViper(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	configDir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return err
	}

	viper.SetConfigName("gossipnode")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return err
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		_config.Logger().WithField("op", e.Op.String()).Debugf("config file changed: %s", e.Name)
		if err := viper.Unmarshal(_config); err != nil {
			_config.Logger().WithError(err).Error("failed to reload config file")
		}
	})
	viper.WatchConfig()

	return viper.Unmarshal(_config)
}

func logrusLevel(l string) logrus.Level {
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
