package wire

import (
	"encoding/binary"
	"net"
	"net/netip"
)

// IPSize is the on-wire width of every address, IPv4 included.
const IPSize = 16

// IP16 is an address in its 16-byte wire form.
//
// IPv4 addresses use the IPv4-compatible layout (::a.b.c.d, twelve zero bytes
// followed by the four octets) rather than the ::ffff:a.b.c.d mapped layout.
type IP16 [IPSize]byte

// IPv4 returns the wire form of a.b.c.d.
func IPv4(a, b, c, d byte) IP16 {
	var ip IP16
	ip[12], ip[13], ip[14], ip[15] = a, b, c, d
	return ip
}

// IPFromAddr converts addr to wire form. Only a 4-byte address is treated as
// IPv4; a v4-mapped IPv6 address keeps its 16 bytes.
func IPFromAddr(addr netip.Addr) IP16 {
	if addr.Is4() {
		v4 := addr.As4()
		return IPv4(v4[0], v4[1], v4[2], v4[3])
	}
	if !addr.IsValid() {
		return IP16{}
	}
	return IP16(addr.As16())
}

// IPFromNetIP converts ip to wire form. net.IP cannot tell a mapped IPv6
// address from IPv4, so anything with a To4 form is encoded as IPv4.
func IPFromNetIP(ip net.IP) IP16 {
	if v4 := ip.To4(); v4 != nil {
		return IPv4(v4[0], v4[1], v4[2], v4[3])
	}
	if v6 := ip.To16(); v6 != nil {
		var out IP16
		copy(out[:], v6)
		return out
	}
	return IP16{}
}

// IsIPv4Compat reports whether ip holds an IPv4 address in the ::a.b.c.d
// layout. :: and ::1 are IPv6.
func (ip IP16) IsIPv4Compat() bool {
	for _, b := range ip[:12] {
		if b != 0 {
			return false
		}
	}
	return binary.BigEndian.Uint32(ip[12:]) > 1
}

// Addr returns the address, unwrapping the IPv4-compatible layout.
func (ip IP16) Addr() netip.Addr {
	if ip.IsIPv4Compat() {
		return netip.AddrFrom4([4]byte{ip[12], ip[13], ip[14], ip[15]})
	}
	return netip.AddrFrom16(ip)
}

func (ip IP16) String() string {
	return ip.Addr().String()
}

func WriteIP(s Sink, ip IP16) (int, error) {
	return write(s, ip[:], "ip")
}

func ReadIP(src Source) (IP16, error) {
	var ip IP16
	if err := read(src, ip[:], "ip"); err != nil {
		return IP16{}, err
	}
	return ip, nil
}
