package main

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/btcwire/internal/admin"
	"github.com/danmuck/btcwire/internal/config"
	"github.com/danmuck/btcwire/internal/logging"
	"github.com/danmuck/btcwire/internal/observability"
	"github.com/danmuck/btcwire/internal/peer"
	"github.com/danmuck/btcwire/internal/protocol/message"
)

var handshakeCmd = &cli.Command{
	Name:  "handshake",
	Usage: "connect, exchange version/verack and print what the peer sends",
	Action: func(c *cli.Context) error {
		pc, err := loadConfig(c)
		if err != nil {
			return err
		}
		logger, err := observability.InitLogger("peerctl", pc.LogConfig())
		if err != nil {
			return err
		}
		defer logging.Close()
		return runHandshake(c.Context, pc, logger)
	},
}

func runHandshake(ctx context.Context, pc config.PeerConfig, logger zerolog.Logger) error {
	cfg, err := peer.FromPeerConfig(pc)
	if err != nil {
		return err
	}
	addr, err := pc.PeerAddress()
	if err != nil {
		return err
	}

	var current atomic.Pointer[peer.Session]
	status := func() (peer.Snapshot, bool) {
		s := current.Load()
		if s == nil {
			return peer.Snapshot{}, false
		}
		return s.Snapshot(), true
	}

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	if pc.AdminAddr != "" {
		srv := admin.New("peerctl", pc.AdminAddr, pc.CorsOrigins, status, logger)
		g.Go(func() error { return srv.Serve(runCtx) })
	}

	g.Go(func() error {
		// The admin server lives only as long as the session.
		defer cancel()
		s, err := peer.Dial(runCtx, addr, cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()
		current.Store(s)

		info, err := s.Handshake(runCtx)
		if err != nil {
			return err
		}
		logger.Info().
			Str("remote", info.Remote).
			Int32("version", info.Version).
			Str("user_agent", info.UserAgent).
			Stringer("services", info.Services).
			Int32("start_height", info.StartHeight).
			Msg("peer ready")

		return s.Run(runCtx, func(m message.Message) error {
			logger.Info().
				Stringer("command", m.Command()).
				Uint32("length", m.Length()).
				Msg("received")
			return nil
		})
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info().Msg("interrupted")
		return nil
	}
	return err
}
