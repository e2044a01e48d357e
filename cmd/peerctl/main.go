// peerctl talks to a single Bitcoin peer and decodes raw wire captures.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/danmuck/btcwire/internal/config"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "peerctl",
		Usage:   "bitcoin p2p wire tool",
		Version: config.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "peer config file (toml)"},
			&cli.StringFlag{Name: "peer", Usage: "remote host:port, overrides the config"},
			&cli.StringFlag{Name: "network", Usage: "mainnet, testnet3, regtest, signet or simnet"},
		},
		Commands: []*cli.Command{
			handshakeCmd,
			decodeCmd,
			encodeVersionCmd,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "peerctl: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given and applies the global overrides.
func loadConfig(c *cli.Context) (config.PeerConfig, error) {
	cfg := config.DefaultPeerConfig()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadPeerConfig(path)
		if err != nil {
			return config.PeerConfig{}, err
		}
		cfg = loaded
	}
	if v := c.String("network"); v != "" {
		cfg.Network = v
	}
	if v := c.String("peer"); v != "" {
		cfg.Peer = v
	}
	if err := config.ValidatePeerConfig(cfg); err != nil {
		return config.PeerConfig{}, err
	}
	return cfg, nil
}
