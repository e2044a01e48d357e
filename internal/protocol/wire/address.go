package wire

import (
	"net"
	"net/netip"
	"strconv"
)

const (
	// NetAddressSize is services + ip + port.
	NetAddressSize = 8 + IPSize + 2
	// TimedNetAddressSize adds the leading 4-byte timestamp.
	TimedNetAddressSize = 4 + NetAddressSize
)

// NetAddress is a peer address without a timestamp, as carried by version.
type NetAddress struct {
	Services ServiceFlag
	IP       IP16
	Port     uint16
}

// TimedNetAddress is a peer address prefixed with a last-seen time, as carried by addr.
type TimedNetAddress struct {
	Timestamp uint32
	NetAddress
}

// NewNetAddress builds an address from a TCP endpoint.
func NewNetAddress(addr *net.TCPAddr, services ServiceFlag) NetAddress {
	if addr == nil {
		return NetAddress{Services: services}
	}
	return NetAddress{
		Services: services,
		IP:       IPFromNetIP(addr.IP),
		Port:     uint16(addr.Port),
	}
}

// NetAddressFromAddrPort builds an address from a netip endpoint.
func NetAddressFromAddrPort(ap netip.AddrPort, services ServiceFlag) NetAddress {
	return NetAddress{
		Services: services,
		IP:       IPFromAddr(ap.Addr()),
		Port:     ap.Port(),
	}
}

func (a NetAddress) String() string {
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(int(a.Port)))
}

func (a NetAddress) Encode(s Sink) (int, error) {
	written, err := WriteUint64(s, uint64(a.Services))
	if err != nil {
		return written, err
	}
	n, err := WriteIP(s, a.IP)
	written += n
	if err != nil {
		return written, err
	}
	n, err = WritePort(s, a.Port)
	written += n
	return written, err
}

func ReadNetAddress(src Source) (NetAddress, error) {
	services, err := ReadUint64(src)
	if err != nil {
		return NetAddress{}, err
	}
	ip, err := ReadIP(src)
	if err != nil {
		return NetAddress{}, err
	}
	port, err := ReadPort(src)
	if err != nil {
		return NetAddress{}, err
	}
	return NetAddress{Services: ServiceFlag(services), IP: ip, Port: port}, nil
}

func (a TimedNetAddress) Encode(s Sink) (int, error) {
	written, err := WriteUint32(s, a.Timestamp)
	if err != nil {
		return written, err
	}
	n, err := a.NetAddress.Encode(s)
	return written + n, err
}

func ReadTimedNetAddress(src Source) (TimedNetAddress, error) {
	ts, err := ReadUint32(src)
	if err != nil {
		return TimedNetAddress{}, err
	}
	addr, err := ReadNetAddress(src)
	if err != nil {
		return TimedNetAddress{}, err
	}
	return TimedNetAddress{Timestamp: ts, NetAddress: addr}, nil
}
