package message

import (
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// Payload is the body of a message. The set of implementations is closed;
// each corresponds to exactly one Command.
type Payload interface {
	Command() Command
	Encode(s wire.Sink) (int, error)
	payload()
}

// VerAck acknowledges a version message.
type VerAck struct{}

// SendHeaders asks the peer to announce blocks with headers.
type SendHeaders struct{}

// GetAddr requests known peer addresses.
type GetAddr struct{}

// WtxidRelay announces wtxid-based transaction relay (BIP 339).
type WtxidRelay struct{}

// SendAddrV2 announces support for addrv2 (BIP 155).
type SendAddrV2 struct{}

// SendCompact negotiates compact block relay (BIP 152). It is decoded but
// never sent; encoding its command fails.
type SendCompact struct {
	Announce bool
	Version  uint64
}

type Ping struct {
	Nonce uint64
}

type Pong struct {
	Nonce uint64
}

// FeeFilter sets the minimum fee rate, in satoshis per kilobyte, for
// transactions the peer should relay to us.
type FeeFilter struct {
	MinFeeRate int64
}

func (VerAck) Command() Command      { return CmdVerAck }
func (SendHeaders) Command() Command { return CmdSendHeaders }
func (GetAddr) Command() Command     { return CmdGetAddr }
func (WtxidRelay) Command() Command  { return CmdWtxidRelay }
func (SendAddrV2) Command() Command  { return CmdSendAddrV2 }
func (SendCompact) Command() Command { return CmdSendCompact }
func (Ping) Command() Command        { return CmdPing }
func (Pong) Command() Command        { return CmdPong }
func (FeeFilter) Command() Command   { return CmdFeeFilter }

func (VerAck) Encode(s wire.Sink) (int, error)      { return wire.WriteUnit(s, wire.Unit{}) }
func (SendHeaders) Encode(s wire.Sink) (int, error) { return wire.WriteUnit(s, wire.Unit{}) }
func (GetAddr) Encode(s wire.Sink) (int, error)     { return wire.WriteUnit(s, wire.Unit{}) }
func (WtxidRelay) Encode(s wire.Sink) (int, error)  { return wire.WriteUnit(s, wire.Unit{}) }
func (SendAddrV2) Encode(s wire.Sink) (int, error)  { return wire.WriteUnit(s, wire.Unit{}) }

func (p SendCompact) Encode(s wire.Sink) (int, error) {
	written, err := wire.WriteBool(s, p.Announce)
	if err != nil {
		return written, err
	}
	n, err := wire.WriteUint64(s, p.Version)
	return written + n, err
}

func (p Ping) Encode(s wire.Sink) (int, error) { return wire.WriteUint64(s, p.Nonce) }
func (p Pong) Encode(s wire.Sink) (int, error) { return wire.WriteUint64(s, p.Nonce) }

func (p FeeFilter) Encode(s wire.Sink) (int, error) { return wire.WriteInt64(s, p.MinFeeRate) }

func (VerAck) payload()         {}
func (SendHeaders) payload()    {}
func (GetAddr) payload()        {}
func (WtxidRelay) payload()     {}
func (SendAddrV2) payload()     {}
func (SendCompact) payload()    {}
func (Ping) payload()           {}
func (Pong) payload()           {}
func (FeeFilter) payload()      {}
func (VersionMessage) payload() {}
func (Addr) payload()           {}

// DecodePayload decodes the body for cmd from src. The command must already
// be known; there is no way to sniff a payload's type from its bytes.
func DecodePayload(cmd Command, src wire.Source) (Payload, error) {
	switch cmd {
	case CmdVersion:
		v, err := DecodeVersion(src)
		if err != nil {
			return nil, err
		}
		return v, nil
	case CmdVerAck:
		return decodeEmpty(src, VerAck{})
	case CmdSendHeaders:
		return decodeEmpty(src, SendHeaders{})
	case CmdGetAddr:
		return decodeEmpty(src, GetAddr{})
	case CmdWtxidRelay:
		return decodeEmpty(src, WtxidRelay{})
	case CmdSendAddrV2:
		return decodeEmpty(src, SendAddrV2{})
	case CmdSendCompact:
		announce, err := wire.ReadBool(src)
		if err != nil {
			return nil, err
		}
		version, err := wire.ReadUint64(src)
		if err != nil {
			return nil, err
		}
		return SendCompact{Announce: announce, Version: version}, nil
	case CmdPing:
		nonce, err := wire.ReadUint64(src)
		if err != nil {
			return nil, err
		}
		return Ping{Nonce: nonce}, nil
	case CmdPong:
		nonce, err := wire.ReadUint64(src)
		if err != nil {
			return nil, err
		}
		return Pong{Nonce: nonce}, nil
	case CmdFeeFilter:
		rate, err := wire.ReadInt64(src)
		if err != nil {
			return nil, err
		}
		return FeeFilter{MinFeeRate: rate}, nil
	case CmdAddr:
		a, err := DecodeAddr(src)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}
}

func decodeEmpty(src wire.Source, p Payload) (Payload, error) {
	if _, err := wire.ReadUnit(src); err != nil {
		return nil, err
	}
	return p, nil
}
