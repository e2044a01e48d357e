package main

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/netip"

	"github.com/urfave/cli/v2"

	"github.com/danmuck/btcwire/internal/peer"
	"github.com/danmuck/btcwire/internal/protocol/frame"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

var encodeVersionCmd = &cli.Command{
	Name:  "encode-version",
	Usage: "print the hex of a version message built from the config",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "nonce", Usage: "nonce to announce, random when zero"},
		&cli.Int64Flag{Name: "timestamp", Usage: "unix time to announce, now when zero"},
		&cli.StringFlag{Name: "recv", Usage: "addr_recv as ip:port"},
		&cli.StringFlag{Name: "from", Usage: "addr_from as ip:port"},
	},
	Action: func(c *cli.Context) error {
		pc, err := loadConfig(c)
		if err != nil {
			return err
		}
		cfg, err := peer.FromPeerConfig(pc)
		if err != nil {
			return err
		}
		out, err := encodeVersion(cfg, versionOptions{
			Nonce:     c.Uint64("nonce"),
			Timestamp: c.Int64("timestamp"),
			Recv:      c.String("recv"),
			From:      c.String("from"),
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, out)
		return nil
	},
}

type versionOptions struct {
	Nonce     uint64
	Timestamp int64
	Recv      string
	From      string
}

func encodeVersion(cfg peer.Config, opts versionOptions) (string, error) {
	recv, err := parseNetAddress(opts.Recv, 0)
	if err != nil {
		return "", fmt.Errorf("recv: %w", err)
	}
	from, err := parseNetAddress(opts.From, cfg.Services)
	if err != nil {
		return "", fmt.Errorf("from: %w", err)
	}
	nonce := opts.Nonce
	if nonce == 0 {
		nonce = rand.Uint64()
	}

	v := cfg.VersionMessage(nonce, recv, from)
	if opts.Timestamp != 0 {
		v.Timestamp = opts.Timestamp
	}

	m, err := message.New(cfg.Magic, message.CmdVersion, v)
	if err != nil {
		return "", err
	}
	raw, err := frame.EncodeMessage(m)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func parseNetAddress(raw string, services wire.ServiceFlag) (wire.NetAddress, error) {
	if raw == "" {
		return wire.NetAddress{Services: services}, nil
	}
	ap, err := netip.ParseAddrPort(raw)
	if err != nil {
		return wire.NetAddress{}, err
	}
	return wire.NetAddress{
		Services: services,
		IP:       wire.IPFromAddr(ap.Addr()),
		Port:     ap.Port(),
	}, nil
}
