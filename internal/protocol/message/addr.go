package message

import (
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// MaxAddrPerMsg is the most addresses one addr message may carry.
const MaxAddrPerMsg = 1000

// Addr relays known peer addresses.
type Addr struct {
	Addresses []wire.TimedNetAddress
}

func (Addr) Command() Command { return CmdAddr }

func (a Addr) Encode(s wire.Sink) (int, error) {
	if len(a.Addresses) > MaxAddrPerMsg {
		return 0, fmt.Errorf("%w: %d > %d", ErrTooManyAddresses, len(a.Addresses), MaxAddrPerMsg)
	}
	written, err := wire.VarInt(len(a.Addresses)).Encode(s)
	if err != nil {
		return written, err
	}
	for _, addr := range a.Addresses {
		n, err := addr.Encode(s)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// DecodeAddr reads an addr payload. The count is checked against the limit
// and the remaining bytes before anything is allocated.
func DecodeAddr(src wire.Source) (Addr, error) {
	count, err := wire.ReadVarInt(src)
	if err != nil {
		return Addr{}, err
	}
	if count > MaxAddrPerMsg {
		return Addr{}, fmt.Errorf("%w: %d > %d", ErrTooManyAddresses, count, MaxAddrPerMsg)
	}
	if count == 0 {
		return Addr{}, nil
	}
	want := int(count) * wire.TimedNetAddressSize
	if want > src.Len() {
		return Addr{}, &wire.InsufficientBytesError{Type: "addr list", Want: want, Have: src.Len()}
	}
	out := Addr{Addresses: make([]wire.TimedNetAddress, 0, count)}
	for i := uint64(0); i < uint64(count); i++ {
		addr, err := wire.ReadTimedNetAddress(src)
		if err != nil {
			return Addr{}, err
		}
		out.Addresses = append(out.Addresses, addr)
	}
	return out, nil
}
