package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter peer config for kind: mainnet, testnet3 or regtest.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "peer", "mainnet":
		return mainnetTemplate, nil
	case "testnet3", "testnet":
		return testnetTemplate, nil
	case "regtest":
		return regtestTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const mainnetTemplate = `network = "mainnet"
# peer = "seed.bitcoin.sipa.be:8333"
user_agent = "/btcwire:0.1.0/"
protocol_version = 70016
services = []
start_height = 0
relay = false

connect_timeout = "10s"
handshake_timeout = "30s"
read_timeout = "2m"
write_timeout = "10s"
max_connect_attempts = 3
stop_on_sendheaders = true

log_level = "info"
# log_file = "logs/peerctl.log"
# admin_addr = "127.0.0.1:9180"
cors_origins = ["http://localhost:3000"]
`

const testnetTemplate = `network = "testnet3"
user_agent = "/btcwire:0.1.0/"
services = ["SFNodeNetworkLimited"]
connect_timeout = "10s"
handshake_timeout = "30s"
max_connect_attempts = 5
log_level = "debug"
admin_addr = "127.0.0.1:9180"
`

const regtestTemplate = `network = "regtest"
peer = "127.0.0.1:18444"
user_agent = "/btcwire:0.1.0/"
services = ["SFNodeNetwork", "SFNodeWitness"]
relay = true
handshake_timeout = "5s"
max_connect_attempts = 1
stop_on_sendheaders = false
log_level = "debug"
admin_addr = "127.0.0.1:9180"
`
