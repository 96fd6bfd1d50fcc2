package config

import (
	goflag "flag"
	"time"

	flag "github.com/spf13/pflag"
)

type RelayConfig struct {
	Relay     Relay
	Session   Session
	RateLimit RateLimit
}

type Relay struct {
	Debug      bool
	Monitoring Monitoring
	Server     Server
}

// Session holds the lifetime knobs of the session store and its sweeper.
type Session struct {
	// BaseTTL is the soft expiration period, extendable while a session
	// has established peer pairs.
	BaseTTL time.Duration `fig:"baseTtl" default:"30m"`
	// AbsoluteTTL caps the total session lifetime, never extended.
	AbsoluteTTL time.Duration `fig:"absoluteTtl" default:"4h"`
	// EmptyGrace is how long an empty session lives before it is reaped.
	EmptyGrace time.Duration `fig:"emptyGrace" default:"5m"`
	// SweepInterval is the period between sweeper passes.
	SweepInterval time.Duration `fig:"sweepInterval" default:"1m"`
	// DefaultMaxPeers applies when a create request doesn't specify capacity.
	DefaultMaxPeers int `fig:"defaultMaxPeers" default:"10"`
	// MaxPeersLimit is a hard capacity cap; bigger requests are clamped.
	MaxPeersLimit int `fig:"maxPeersLimit" default:"16"`
}

// RateLimit groups per-operation admission policies.
type RateLimit struct {
	// Join guards session join attempts, keyed by caller IP.
	Join Policy
	// Signal guards general signaling calls (offer/answer/keys), keyed by connection.
	Signal Policy
	// Ice guards high-frequency ICE candidate messages, keyed by connection.
	Ice Policy
}

// Policy is a token-bucket shape: Burst operations at once,
// refilled at Rate per second.
type Policy struct {
	Burst int `default:"10"`
	Rate  int `default:"5"`
	// RetryAfter is the base back-off hint; it grows on repeated violations.
	RetryAfter time.Duration `fig:"retryAfter" default:"1s"`
}

type Monitoring struct {
	Port             int
	URLPrefix        string `fig:"urlPrefix"`
	MetricEnabled    bool   `fig:"metricEnabled"`
	ProfilingEnabled bool   `fig:"profilingEnabled"`
}

func (m Monitoring) IsEnabled() bool { return m.MetricEnabled || m.ProfilingEnabled }

type Server struct {
	Address string `default:":8080"`
	Https   bool
	Tls     struct {
		Address   string
		Domain    string
		HttpsKey  string `fig:"httpsKey"`
		HttpsCert string `fig:"httpsCert"`
	}
}

func (s *Server) GetAddr() string {
	if s.Https {
		return s.Tls.Address
	}
	return s.Address
}

// allows custom config path
var relayConfigPath string

func NewRelayConfig() (conf RelayConfig) {
	if err := LoadConfig(&conf, relayConfigPath); err != nil {
		panic(err)
	}
	return
}

func (c *RelayConfig) ParseFlags() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.StringVar(&c.Relay.Server.Address, "address", c.Relay.Server.Address, "HTTP server address (host:port)")
	flag.IntVar(&c.Relay.Monitoring.Port, "monitoring.port", c.Relay.Monitoring.Port, "Monitoring server port")
	flag.StringVar(&relayConfigPath, "conf", relayConfigPath, "Set custom configuration file path")
	flag.Parse()
}
