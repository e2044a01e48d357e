package message

import (
	"bytes"
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// CommandSize is the fixed width of a command token.
const CommandSize = 12

// Command identifies the payload variant carried by a message.
type Command uint8

const (
	CmdVersion Command = iota + 1
	CmdVerAck
	CmdSendHeaders
	CmdSendCompact
	CmdPing
	CmdPong
	CmdGetAddr
	CmdAddr
	CmdFeeFilter
	CmdWtxidRelay
	CmdSendAddrV2
)

var commandTokens = map[Command]string{
	CmdVersion:     "version",
	CmdVerAck:      "verack",
	CmdSendHeaders: "sendheaders",
	CmdSendCompact: "sendcmpct",
	CmdPing:        "ping",
	CmdPong:        "pong",
	CmdGetAddr:     "getaddr",
	CmdAddr:        "addr",
	CmdFeeFilter:   "feefilter",
	CmdWtxidRelay:  "wtxidrelay",
	CmdSendAddrV2:  "sendaddrv2",
}

var tokenCommands = func() map[string]Command {
	out := make(map[string]Command, len(commandTokens))
	for cmd, token := range commandTokens {
		out[token] = cmd
	}
	return out
}()

// decodeOnly lists commands that are parsed but never sent.
var decodeOnly = map[Command]bool{
	CmdSendCompact: true,
}

// Commands returns every known command in declaration order.
func Commands() []Command {
	out := make([]Command, 0, len(commandTokens))
	for cmd := CmdVersion; cmd <= CmdSendAddrV2; cmd++ {
		out = append(out, cmd)
	}
	return out
}

// Token returns the wire token for c.
func (c Command) Token() (string, bool) {
	token, ok := commandTokens[c]
	return token, ok
}

func (c Command) String() string {
	if token, ok := commandTokens[c]; ok {
		return token
	}
	return fmt.Sprintf("Command(%d)", uint8(c))
}

// Encode writes the NUL-padded 12-byte token.
func (c Command) Encode(s wire.Sink) (int, error) {
	token, ok := commandTokens[c]
	if !ok || decodeOnly[c] {
		return 0, &UnimplementedCommandError{Command: c}
	}
	var raw [CommandSize]byte
	copy(raw[:], token)
	return wire.WriteBytes(s, raw[:], "command")
}

// DecodeCommand reads a 12-byte token. Tokens are case-sensitive and must be
// NUL-padded; a non-NUL byte after the first NUL is ErrMalformedCommand.
func DecodeCommand(src wire.Source) (Command, error) {
	raw, err := wire.ReadBytes(src, CommandSize, "command")
	if err != nil {
		return 0, err
	}
	token := trimToken(raw)
	for _, b := range raw[len(token):] {
		if b != 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedCommand, wire.Lossy(raw))
		}
	}
	cmd, ok := tokenCommands[string(token)]
	if !ok {
		unknown := &UnknownCommandError{}
		copy(unknown.Raw[:], raw)
		return 0, unknown
	}
	return cmd, nil
}

func trimToken(raw []byte) []byte {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		return raw[:i]
	}
	return raw
}
