package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"

	"github.com/danmuck/btcwire/internal/protocol/frame"
)

var decodeCmd = &cli.Command{
	Name:      "decode",
	Usage:     "decode every message in a hex capture",
	ArgsUsage: "<hex>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "skip-checksum", Usage: "accept messages with a bad checksum"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.ShowSubcommandHelp(c)
		}
		pc, err := loadConfig(c)
		if err != nil {
			return err
		}
		magic, err := pc.Magic()
		if err != nil {
			return err
		}
		dec := frame.NewDecoder(magic)
		dec.SkipChecksum = c.Bool("skip-checksum")
		_, err = decodeHex(c.App.Writer, c.Args().First(), dec)
		return err
	},
}

// decodeHex dumps each complete message in raw to w and returns how many it
// found. Whitespace in raw is ignored.
func decodeHex(w io.Writer, raw string, dec frame.Decoder) (int, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	data, err := hex.DecodeString(strings.TrimPrefix(compact, "0x"))
	if err != nil {
		return 0, fmt.Errorf("decode hex: %w", err)
	}

	buf := bytes.NewBuffer(data)
	var count int
	for {
		msg, ok, err := dec.DecodeNext(buf)
		if err != nil {
			return count, fmt.Errorf("message %d: %w", count, err)
		}
		if !ok {
			break
		}
		count++
		fmt.Fprintf(w, "#%d %s (%d bytes)\n", count, msg.Command(), msg.SerializeSize())
		spew.Fdump(w, msg.Header(), msg.Payload())
	}
	if buf.Len() > 0 {
		return count, fmt.Errorf("%d trailing bytes do not form a complete message", buf.Len())
	}
	return count, nil
}
