// Package ipproto holds the IANA IP protocol numbers the translator
// actually dispatches on: the two transport protocols it rewrites, the
// two ICMP family numbers, and the IPv6 extension headers
// walkIPv6ExtensionHeaders must recognize while skipping to the upper
// layer (RFC 8200 §4).
package ipproto

import "fmt"

// IP Protocol Numbers (IANA assigned)
// https://www.iana.org/assignments/protocol-numbers/protocol-numbers.xhtml
const (
	ProtoHOPOPT    uint8 = 0  // IPv6 Hop-by-Hop Option
	ProtoICMP      uint8 = 1  // Internet Control Message Protocol
	ProtoTCP       uint8 = 6  // Transmission Control Protocol
	ProtoUDP       uint8 = 17 // User Datagram Protocol
	ProtoIPv6Route uint8 = 43 // Routing Header for IPv6
	ProtoIPv6Frag  uint8 = 44 // Fragment Header for IPv6
	ProtoIPv6ICMP  uint8 = 58 // ICMP for IPv6
	ProtoIPv6NoNxt uint8 = 59 // No Next Header for IPv6
	ProtoIPv6Opts  uint8 = 60 // Destination Options for IPv6
)

// protoNames maps the protocol numbers above to short names for logging.
var protoNames = map[uint8]string{
	ProtoHOPOPT:    "HOPOPT",
	ProtoICMP:      "ICMP",
	ProtoTCP:       "TCP",
	ProtoUDP:       "UDP",
	ProtoIPv6Route: "IPv6-Route",
	ProtoIPv6Frag:  "IPv6-Frag",
	ProtoIPv6ICMP:  "ICMPv6",
	ProtoIPv6NoNxt: "IPv6-NoNxt",
	ProtoIPv6Opts:  "IPv6-Opts",
}

// ProtoName returns a human-readable name for the given IP protocol number.
// Returns the short name for common protocols, or the decimal number for others.
func ProtoName(proto uint8) string {
	if name, ok := protoNames[proto]; ok {
		return name
	}
	return fmt.Sprintf("%d", proto)
}
