package peer

import (
	"time"

	"github.com/danmuck/btcwire/internal/config"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// BackoffConfig defines dial retry behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config is the identity we announce plus connection limits.
type Config struct {
	// Network labels logs and metrics.
	Network string
	Magic   uint32

	ProtocolVersion int32
	Services        wire.ServiceFlag
	UserAgent       string
	StartHeight     int32
	Relay           bool

	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxConnectAttempts int
	// StopOnSendHeaders ends Run after the first sendheaders message.
	StopOnSendHeaders bool
	Backoff           BackoffConfig
	// Nonces records the version nonces we send. Sessions sharing a cache
	// detect connections to each other as self-connections. Nil means the
	// process-wide cache.
	Nonces *NonceCache
}

func DefaultConfig() Config {
	return Config{
		Network:            "mainnet",
		Magic:              0xd9b4bef9,
		ProtocolVersion:    70016,
		UserAgent:          config.DefaultUserAgent,
		ConnectTimeout:     10 * time.Second,
		HandshakeTimeout:   30 * time.Second,
		ReadTimeout:        2 * time.Minute,
		WriteTimeout:       10 * time.Second,
		MaxConnectAttempts: 3,
		Backoff: BackoffConfig{
			InitialDelay: 500 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     10 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero limits from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = def.ProtocolVersion
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxConnectAttempts <= 0 {
		c.MaxConnectAttempts = def.MaxConnectAttempts
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	if c.Nonces == nil {
		c.Nonces = sharedNonces
	}
	return c
}

// FromPeerConfig builds a session config from a loaded peer config file.
func FromPeerConfig(pc config.PeerConfig) (Config, error) {
	magic, err := pc.Magic()
	if err != nil {
		return Config{}, err
	}
	cfg := DefaultConfig()
	cfg.Network = pc.Network
	cfg.Magic = magic
	cfg.ProtocolVersion = pc.ProtocolVersion
	cfg.Services = pc.Services
	cfg.UserAgent = pc.UserAgent
	cfg.StartHeight = pc.StartHeight
	cfg.Relay = pc.Relay
	cfg.ConnectTimeout = pc.ConnectTimeout
	cfg.HandshakeTimeout = pc.HandshakeTimeout
	cfg.ReadTimeout = pc.ReadTimeout
	cfg.WriteTimeout = pc.WriteTimeout
	cfg.MaxConnectAttempts = pc.MaxConnectAttempts
	cfg.StopOnSendHeaders = pc.StopOnSendHeaders
	return cfg.WithDefaults(), nil
}

// VersionMessage builds the version payload announcing this identity.
func (c Config) VersionMessage(nonce uint64, recv, from wire.NetAddress) message.VersionMessage {
	return message.VersionMessage{
		Version:     c.ProtocolVersion,
		Services:    c.Services,
		Timestamp:   time.Now().Unix(),
		AddrRecv:    recv,
		AddrFrom:    from,
		Nonce:       nonce,
		UserAgent:   wire.NewVarString(c.UserAgent),
		StartHeight: c.StartHeight,
		Relay:       c.Relay,
	}
}
