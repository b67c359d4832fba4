package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AbolfazlSheikhha/gossip-network/src/common"
)

func TestNewDefaultConfigSetsEveryDefault(t *testing.T) {
	c := NewDefaultConfig()

	if c.Fanout != DefaultFanout {
		t.Fatalf("Fanout = %d, want %d", c.Fanout, DefaultFanout)
	}
	if c.TTL != DefaultTTL {
		t.Fatalf("TTL = %d, want %d", c.TTL, DefaultTTL)
	}
	if c.PeerLimit != DefaultPeerLimit {
		t.Fatalf("PeerLimit = %d, want %d", c.PeerLimit, DefaultPeerLimit)
	}
	if c.KPow != DefaultKPow {
		t.Fatalf("KPow = %d, want %d", c.KPow, DefaultKPow)
	}
	if c.LogDir != DefaultLogDir {
		t.Fatalf("LogDir = %q, want %q", c.LogDir, DefaultLogDir)
	}
}

func TestSelfAddrIsLoopbackWithPort(t *testing.T) {
	c := NewDefaultConfig()
	c.Port = 9191

	if got, want := c.SelfAddr(), "127.0.0.1:9191"; got != want {
		t.Fatalf("SelfAddr() = %q, want %q", got, want)
	}
}

func TestIntervalHelpersConvertSecondsToDuration(t *testing.T) {
	c := NewDefaultConfig()
	c.PingIntervalS = 1.5
	c.PullIntervalS = 2.0
	c.DiscoveryIntervalS = 0.25

	if got, want := c.PingInterval(), 1500*time.Millisecond; got != want {
		t.Fatalf("PingInterval() = %v, want %v", got, want)
	}
	if got, want := c.PullInterval(), 2*time.Second; got != want {
		t.Fatalf("PullInterval() = %v, want %v", got, want)
	}
	if got, want := c.DiscoveryInterval(), 250*time.Millisecond; got != want {
		t.Fatalf("DiscoveryInterval() = %v, want %v", got, want)
	}
}

func TestLogLevelFallsBackToInfoOnUnrecognized(t *testing.T) {
	if got := LogLevel("garbage"); got != logrus.InfoLevel {
		t.Fatalf("LogLevel(garbage) = %v, want info", got)
	}
}

func TestSetLoggerOverridesDefault(t *testing.T) {
	c := NewDefaultConfig()
	testLogger := common.NewTestLogger(t)

	c.SetLogger(testLogger)

	if c.Logger() != testLogger {
		t.Fatalf("Logger() did not return the logger installed by SetLogger")
	}
	c.Logger().Info("routed through the test logger adapter")
}
