package message

import (
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// MaxUserAgentLen bounds the user agent in both directions.
const MaxUserAgentLen = 256

// VersionMessage opens a connection. Every field is mandatory; there are no
// optional trailing fields.
type VersionMessage struct {
	Version     int32
	Services    wire.ServiceFlag
	Timestamp   int64
	AddrRecv    wire.NetAddress
	AddrFrom    wire.NetAddress
	Nonce       uint64
	UserAgent   wire.VarString
	StartHeight int32
	Relay       bool
}

func (VersionMessage) Command() Command { return CmdVersion }

func (v VersionMessage) Encode(s wire.Sink) (int, error) {
	if n := v.UserAgent.Len(); n > MaxUserAgentLen {
		return 0, fmt.Errorf("%w: user agent length=%d max=%d", wire.ErrVarStringTooLong, n, MaxUserAgentLen)
	}
	var written int
	steps := []func() (int, error){
		func() (int, error) { return wire.WriteInt32(s, v.Version) },
		func() (int, error) { return wire.WriteUint64(s, uint64(v.Services)) },
		func() (int, error) { return wire.WriteInt64(s, v.Timestamp) },
		func() (int, error) { return v.AddrRecv.Encode(s) },
		func() (int, error) { return v.AddrFrom.Encode(s) },
		func() (int, error) { return wire.WriteUint64(s, v.Nonce) },
		func() (int, error) { return v.UserAgent.Encode(s) },
		func() (int, error) { return wire.WriteInt32(s, v.StartHeight) },
		func() (int, error) { return wire.WriteBool(s, v.Relay) },
	}
	for _, step := range steps {
		n, err := step()
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// DecodeVersion reads a version payload.
func DecodeVersion(src wire.Source) (VersionMessage, error) {
	var (
		v   VersionMessage
		err error
	)
	if v.Version, err = wire.ReadInt32(src); err != nil {
		return VersionMessage{}, err
	}
	services, err := wire.ReadUint64(src)
	if err != nil {
		return VersionMessage{}, err
	}
	v.Services = wire.ServiceFlag(services)
	if v.Timestamp, err = wire.ReadInt64(src); err != nil {
		return VersionMessage{}, err
	}
	if v.AddrRecv, err = wire.ReadNetAddress(src); err != nil {
		return VersionMessage{}, err
	}
	if v.AddrFrom, err = wire.ReadNetAddress(src); err != nil {
		return VersionMessage{}, err
	}
	if v.Nonce, err = wire.ReadUint64(src); err != nil {
		return VersionMessage{}, err
	}
	if v.UserAgent, err = wire.ReadVarString(src, MaxUserAgentLen); err != nil {
		return VersionMessage{}, err
	}
	if v.StartHeight, err = wire.ReadInt32(src); err != nil {
		return VersionMessage{}, err
	}
	if v.Relay, err = wire.ReadBool(src); err != nil {
		return VersionMessage{}, err
	}
	return v, nil
}
