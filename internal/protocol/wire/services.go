package wire

import (
	"fmt"
	"strings"
)

// ServiceFlag identifies services supported by a peer.
type ServiceFlag uint64

const (
	SFNodeNetwork ServiceFlag = 1 << iota
	SFNodeGetUTXO
	SFNodeBloom
	SFNodeWitness
	SFNodeXthin
	SFNodeBit5
	SFNodeCompactFilters
	SFNode2X

	SFNodeNetworkLimited ServiceFlag = 1 << 10
	SFNodeP2PV2          ServiceFlag = 1 << 11
)

var orderedServiceFlags = []ServiceFlag{
	SFNodeNetwork,
	SFNodeGetUTXO,
	SFNodeBloom,
	SFNodeWitness,
	SFNodeXthin,
	SFNodeBit5,
	SFNodeCompactFilters,
	SFNode2X,
	SFNodeNetworkLimited,
	SFNodeP2PV2,
}

var serviceFlagNames = map[ServiceFlag]string{
	SFNodeNetwork:        "SFNodeNetwork",
	SFNodeGetUTXO:        "SFNodeGetUTXO",
	SFNodeBloom:          "SFNodeBloom",
	SFNodeWitness:        "SFNodeWitness",
	SFNodeXthin:          "SFNodeXthin",
	SFNodeBit5:           "SFNodeBit5",
	SFNodeCompactFilters: "SFNodeCompactFilters",
	SFNode2X:             "SFNode2X",
	SFNodeNetworkLimited: "SFNodeNetworkLimited",
	SFNodeP2PV2:          "SFNodeP2PV2",
}

// String renders known flags joined by "|" and any unknown bits in hex.
func (f ServiceFlag) String() string {
	if f == 0 {
		return "0x0"
	}
	parts := make([]string, 0, 4)
	rest := f
	for _, flag := range orderedServiceFlags {
		if rest&flag == flag {
			parts = append(parts, serviceFlagNames[flag])
			rest &^= flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of flag is set.
func (f ServiceFlag) Has(flag ServiceFlag) bool {
	return f&flag == flag
}

// ParseServiceFlag maps a flag name such as "SFNodeWitness" back to its bit.
func ParseServiceFlag(name string) (ServiceFlag, bool) {
	for flag, n := range serviceFlagNames {
		if n == name {
			return flag, true
		}
	}
	return 0, false
}
