package peer

import (
	"context"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Dial connects to addr, retrying with backoff up to cfg.MaxConnectAttempts
// times. The returned session has not run its handshake.
func Dial(ctx context.Context, addr string, cfg Config, logger zerolog.Logger) (*Session, error) {
	cfg = cfg.WithDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	var attempt int
	for {
		attempt++
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			logger.Info().Str("addr", addr).Int("attempt", attempt).Msg("connected")
			return New(conn, cfg, logger), nil
		}
		logger.Warn().Err(err).Str("addr", addr).Int("attempt", attempt).Msg("dial failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= cfg.MaxConnectAttempts {
			return nil, err
		}
		if err := sleepCtx(ctx, NextBackoffDelay(cfg.Backoff, attempt, rng)); err != nil {
			return nil, err
		}
	}
}
