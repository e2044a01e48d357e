package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/multierr"

	"github.com/danmuck/btcwire/internal/logging"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// Version is the release of this module.
const Version = "0.1.0"

// DefaultUserAgent is sent in version messages unless configured otherwise.
const DefaultUserAgent = "/btcwire:" + Version + "/"

var ErrUnknownNetwork = errors.New("config: unknown network")

// PeerConfig drives one outbound peer session.
type PeerConfig struct {
	Network string
	// Peer is host:port. Empty picks a DNS seed of Network.
	Peer string

	UserAgent       string
	ProtocolVersion int32
	Services        wire.ServiceFlag
	StartHeight     int32
	Relay           bool

	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	StopOnSendHeaders  bool

	LogLevel    string
	LogFile     string
	AdminAddr   string
	CorsOrigins []string
}

func DefaultPeerConfig() PeerConfig {
	return PeerConfig{
		Network:            chaincfg.MainNetParams.Name,
		UserAgent:          DefaultUserAgent,
		ProtocolVersion:    70016,
		Services:           0,
		StartHeight:        0,
		Relay:              false,
		ConnectTimeout:     10 * time.Second,
		HandshakeTimeout:   30 * time.Second,
		ReadTimeout:        2 * time.Minute,
		WriteTimeout:       10 * time.Second,
		MaxConnectAttempts: 3,
		StopOnSendHeaders:  true,
		LogLevel:           "info",
		CorsOrigins:        []string{"http://localhost:3000"},
	}
}

type fileConfig struct {
	Network            string   `toml:"network"`
	Peer               string   `toml:"peer"`
	UserAgent          string   `toml:"user_agent"`
	ProtocolVersion    int32    `toml:"protocol_version"`
	Services           []string `toml:"services"`
	StartHeight        int32    `toml:"start_height"`
	Relay              bool     `toml:"relay"`
	ConnectTimeout     string   `toml:"connect_timeout"`
	HandshakeTimeout   string   `toml:"handshake_timeout"`
	ReadTimeout        string   `toml:"read_timeout"`
	WriteTimeout       string   `toml:"write_timeout"`
	MaxConnectAttempts int      `toml:"max_connect_attempts"`
	StopOnSendHeaders  bool     `toml:"stop_on_sendheaders"`
	LogLevel           string   `toml:"log_level"`
	LogFile            string   `toml:"log_file"`
	AdminAddr          string   `toml:"admin_addr"`
	CorsOrigins        []string `toml:"cors_origins"`
}

// LoadPeerConfig reads path over the defaults. Keys absent from the file keep
// their default value.
func LoadPeerConfig(path string) (PeerConfig, error) {
	cfg := DefaultPeerConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return PeerConfig{}, fmt.Errorf("load peer config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return PeerConfig{}, fmt.Errorf("load peer config: unknown keys %v", undecoded)
	}

	if meta.IsDefined("network") {
		cfg.Network = strings.ToLower(strings.TrimSpace(raw.Network))
	}
	if meta.IsDefined("peer") {
		cfg.Peer = strings.TrimSpace(raw.Peer)
	}
	if meta.IsDefined("user_agent") {
		cfg.UserAgent = raw.UserAgent
	}
	if meta.IsDefined("protocol_version") {
		cfg.ProtocolVersion = raw.ProtocolVersion
	}
	if meta.IsDefined("services") {
		flags, err := parseServices(raw.Services)
		if err != nil {
			return PeerConfig{}, err
		}
		cfg.Services = flags
	}
	if meta.IsDefined("start_height") {
		cfg.StartHeight = raw.StartHeight
	}
	if meta.IsDefined("relay") {
		cfg.Relay = raw.Relay
	}
	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.HandshakeTimeout},
		{"read_timeout", raw.ReadTimeout, &cfg.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.WriteTimeout},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return PeerConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	if meta.IsDefined("max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("stop_on_sendheaders") {
		cfg.StopOnSendHeaders = raw.StopOnSendHeaders
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_file") {
		cfg.LogFile = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}

	if err := ValidatePeerConfig(cfg); err != nil {
		return PeerConfig{}, err
	}
	return cfg, nil
}

// ValidatePeerConfig reports every problem with cfg at once.
func ValidatePeerConfig(cfg PeerConfig) error {
	var err error
	if _, perr := NetworkParams(cfg.Network); perr != nil {
		err = multierr.Append(err, perr)
	}
	if cfg.Peer != "" {
		if _, _, serr := net.SplitHostPort(cfg.Peer); serr != nil {
			err = multierr.Append(err, fmt.Errorf("peer %q: %w", cfg.Peer, serr))
		}
	}
	if cfg.ProtocolVersion <= 0 {
		err = multierr.Append(err, fmt.Errorf("protocol_version must be positive, got %d", cfg.ProtocolVersion))
	}
	if len(cfg.UserAgent) > 256 {
		err = multierr.Append(err, fmt.Errorf("user_agent is %d bytes, max 256", len(cfg.UserAgent)))
	}
	for name, d := range map[string]time.Duration{
		"connect_timeout":   cfg.ConnectTimeout,
		"handshake_timeout": cfg.HandshakeTimeout,
		"read_timeout":      cfg.ReadTimeout,
		"write_timeout":     cfg.WriteTimeout,
	} {
		if d <= 0 {
			err = multierr.Append(err, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if cfg.MaxConnectAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("max_connect_attempts must be at least 1, got %d", cfg.MaxConnectAttempts))
	}
	if cfg.LogLevel != "" {
		if _, ok := logging.ParseLevel(cfg.LogLevel); !ok {
			err = multierr.Append(err, fmt.Errorf("unknown log_level %q", cfg.LogLevel))
		}
	}
	if cfg.AdminAddr != "" {
		if _, _, serr := net.SplitHostPort(cfg.AdminAddr); serr != nil {
			err = multierr.Append(err, fmt.Errorf("admin_addr %q: %w", cfg.AdminAddr, serr))
		}
	}
	return err
}

// NetworkParams resolves a network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case chaincfg.MainNetParams.Name, "main":
		return &chaincfg.MainNetParams, nil
	case chaincfg.TestNet3Params.Name, "testnet":
		return &chaincfg.TestNet3Params, nil
	case chaincfg.RegressionNetParams.Name, "regression":
		return &chaincfg.RegressionNetParams, nil
	case chaincfg.SigNetParams.Name:
		return &chaincfg.SigNetParams, nil
	case chaincfg.SimNetParams.Name:
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
}

// Magic returns the envelope magic of the configured network.
func (c PeerConfig) Magic() (uint32, error) {
	params, err := NetworkParams(c.Network)
	if err != nil {
		return 0, err
	}
	return uint32(params.Net), nil
}

// PeerAddress returns the configured peer, falling back to the network's
// first DNS seed, or localhost for networks without seeds.
func (c PeerConfig) PeerAddress() (string, error) {
	if c.Peer != "" {
		return c.Peer, nil
	}
	params, err := NetworkParams(c.Network)
	if err != nil {
		return "", err
	}
	host := "127.0.0.1"
	if len(params.DNSSeeds) > 0 {
		host = params.DNSSeeds[0].Host
	}
	return net.JoinHostPort(host, params.DefaultPort), nil
}

// LogConfig converts the logging keys to a runtime logging config.
func (c PeerConfig) LogConfig() logging.Config {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if lvl, ok := logging.ParseLevel(c.LogLevel); ok {
		cfg.Level = lvl
	}
	cfg.File = c.LogFile
	logging.ApplyEnvOverrides(&cfg)
	return cfg
}

func parseServices(names []string) (wire.ServiceFlag, error) {
	var flags wire.ServiceFlag
	for _, name := range names {
		flag, ok := wire.ParseServiceFlag(strings.TrimSpace(name))
		if !ok {
			return 0, fmt.Errorf("unknown service flag %q", name)
		}
		flags |= flag
	}
	return flags, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
