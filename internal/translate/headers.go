package translate

import (
	"encoding/binary"
	"fmt"

	"github.com/ruilisi/nat64d/internal/ipproto"
)

const (
	ipv4HeaderLen = 20
	ipv6HeaderLen = 40
)

// ipv4Header is the fixed-size portion of an IPv4 header, decoded in place
// from the wire bytes. Options (IHL > 5) are preserved verbatim in the
// original buffer and are not modeled here.
type ipv4Header struct {
	ihl      int // header length in bytes, including options
	tos      uint8
	totalLen uint16
	id       uint16
	flags    uint8
	fragOff  uint16
	ttl      uint8
	protocol uint8
	checksum uint16
	src, dst [4]byte
}

func parseIPv4Header(pkt []byte) (ipv4Header, error) {
	var h ipv4Header
	if len(pkt) < ipv4HeaderLen {
		return h, fmt.Errorf("%w: %d bytes", ErrTruncatedPacket, len(pkt))
	}
	if pkt[0]>>4 != 4 {
		return h, fmt.Errorf("translate: not an IPv4 packet (version %d)", pkt[0]>>4)
	}
	h.ihl = int(pkt[0]&0x0f) * 4
	if h.ihl < ipv4HeaderLen || len(pkt) < h.ihl {
		return h, fmt.Errorf("%w: bad IHL %d", ErrTruncatedPacket, h.ihl)
	}
	h.tos = pkt[1]
	h.totalLen = binary.BigEndian.Uint16(pkt[2:4])
	h.id = binary.BigEndian.Uint16(pkt[4:6])
	flagsFrag := binary.BigEndian.Uint16(pkt[6:8])
	h.flags = uint8(flagsFrag >> 13)
	h.fragOff = flagsFrag & 0x1fff
	h.ttl = pkt[8]
	h.protocol = pkt[9]
	h.checksum = binary.BigEndian.Uint16(pkt[10:12])
	copy(h.src[:], pkt[12:16])
	copy(h.dst[:], pkt[16:20])
	return h, nil
}

// moreFragments and isFragment report IPv4 fragmentation state. The
// translator drops every fragment with ErrFragmented, the first fragment of
// a fragmented datagram included; only unfragmented packets are translated,
// and no fragment is passed through.
func (h ipv4Header) moreFragments() bool { return h.flags&0x1 != 0 }
func (h ipv4Header) isFragment() bool    { return h.fragOff != 0 || h.moreFragments() }

// ipv6Header is the fixed 40-byte IPv6 header.
type ipv6Header struct {
	trafficClass uint8
	flowLabel    uint32
	payloadLen   uint16
	nextHeader   uint8
	hopLimit     uint8
	src, dst     [16]byte
}

func parseIPv6Header(pkt []byte) (ipv6Header, error) {
	var h ipv6Header
	if len(pkt) < ipv6HeaderLen {
		return h, fmt.Errorf("%w: %d bytes", ErrTruncatedPacket, len(pkt))
	}
	if pkt[0]>>4 != 6 {
		return h, fmt.Errorf("translate: not an IPv6 packet (version %d)", pkt[0]>>4)
	}
	vtf := binary.BigEndian.Uint32(pkt[0:4])
	h.trafficClass = uint8(vtf >> 20)
	h.flowLabel = vtf & 0xfffff
	h.payloadLen = binary.BigEndian.Uint16(pkt[4:6])
	h.nextHeader = pkt[6]
	h.hopLimit = pkt[7]
	copy(h.src[:], pkt[8:24])
	copy(h.dst[:], pkt[24:40])
	return h, nil
}

// fragmentInfo is the decoded IPv6 Fragment extension header (RFC 8200 §4.5).
type fragmentInfo struct {
	present        bool
	offset         uint16
	moreFragments  bool
	identification uint32
}

// walkIPv6ExtensionHeaders walks HopByHop, Routing, Fragment and Destination
// Options headers starting at nextHeader (the fixed header's Next Header
// field), returning the final upper-layer protocol, the byte offset of its
// header within pkt, and any fragment header found along the way.
//
// Encapsulation (IPv4-in-IPv6, IPv6-in-IPv6) and any next-header value that
// is neither a recognized extension header nor one of TCP/UDP/ICMPv6 is
// reported as ErrUnsupportedNextHeader: the translator has no v4 counterpart
// for an encapsulated payload and does not attempt to recurse into it.
func walkIPv6ExtensionHeaders(pkt []byte, nextHeader uint8, offset int) (proto uint8, upperOff int, frag fragmentInfo, err error) {
	proto = nextHeader
	upperOff = offset

	for {
		switch proto {
		case ipproto.ProtoTCP, ipproto.ProtoUDP, ipproto.ProtoIPv6ICMP:
			return proto, upperOff, frag, nil

		case ipproto.ProtoHOPOPT, ipproto.ProtoIPv6Route, ipproto.ProtoIPv6Opts:
			if len(pkt) < upperOff+2 {
				return 0, 0, frag, ErrTruncatedPacket
			}
			next := pkt[upperOff]
			hdrLen := (int(pkt[upperOff+1]) + 1) * 8
			if len(pkt) < upperOff+hdrLen {
				return 0, 0, frag, ErrTruncatedPacket
			}
			proto = next
			upperOff += hdrLen

		case ipproto.ProtoIPv6Frag:
			if len(pkt) < upperOff+8 {
				return 0, 0, frag, ErrTruncatedPacket
			}
			next := pkt[upperOff]
			offFlags := binary.BigEndian.Uint16(pkt[upperOff+2 : upperOff+4])
			frag = fragmentInfo{
				present:        true,
				offset:         offFlags >> 3,
				moreFragments:  offFlags&0x1 != 0,
				identification: binary.BigEndian.Uint32(pkt[upperOff+4 : upperOff+8]),
			}
			proto = next
			upperOff += 8

		case ipproto.ProtoIPv6NoNxt:
			return proto, upperOff, frag, nil

		default:
			return 0, 0, frag, fmt.Errorf("%w: next header %d (%s)", ErrUnsupportedNextHeader, proto, ipproto.ProtoName(proto))
		}
	}
}

// isFragment reports whether frag describes anything but a whole,
// unfragmented datagram.
func (f fragmentInfo) isFragment() bool {
	return f.present && (f.offset != 0 || f.moreFragments)
}
