package main

import (
	"flag"
	"log"

	"github.com/danmuck/btcwire/internal/config"
)

const defaultPath = "cmd/peerctl/config.toml"

func main() {
	kind := flag.String("kind", "mainnet", "template kind: mainnet|testnet3|regtest")
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.LoadPeerConfig(*input)
		if err != nil {
			log.Fatal(err)
		}
		addr, err := cfg.PeerAddress()
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Validated %s config at %s (peer %s)", cfg.Network, *input, addr)
		return
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s config template to %s", *kind, *output)
}
