package translate

import (
	"encoding/binary"

	"github.com/ruilisi/nat64d/internal/checksum"
	"github.com/ruilisi/nat64d/internal/ipproto"
)

// buildIPv4Packet assembles a 20-byte IPv4 header (no options) plus payload.
// Traffic class/DSCP is always zeroed (DESIGN.md: no copy_dscp support); the
// Don't Fragment bit is always set and identification always zero, matching
// RFC 7915 §5.1's guidance for a translator that holds no fragmentation
// state.
func buildIPv4Packet(ttl uint8, protocol uint8, src, dst [4]byte, payload []byte) []byte {
	total := ipv4HeaderLen + len(payload)
	buf := make([]byte, total)

	buf[0] = 0x45 // version 4, IHL 5
	buf[1] = 0x00
	binary.BigEndian.PutUint16(buf[2:4], uint16(total))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identification
	binary.BigEndian.PutUint16(buf[6:8], 0x4000) // DF set, no fragment offset
	buf[8] = ttl
	buf[9] = protocol
	copy(buf[12:16], src[:])
	copy(buf[16:20], dst[:])

	cs := checksum.IPv4HeaderChecksum(buf[:ipv4HeaderLen])
	binary.BigEndian.PutUint16(buf[10:12], cs)

	copy(buf[ipv4HeaderLen:], payload)
	return buf
}

// buildIPv6Packet assembles a 40-byte IPv6 header plus payload, with traffic
// class and flow label zeroed.
func buildIPv6Packet(hopLimit uint8, nextHeader uint8, src, dst [16]byte, payload []byte) []byte {
	total := ipv6HeaderLen + len(payload)
	buf := make([]byte, total)

	buf[0] = 0x60 // version 6, traffic class high nibble 0
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = nextHeader
	buf[7] = hopLimit
	copy(buf[8:24], src[:])
	copy(buf[24:40], dst[:])

	copy(buf[ipv6HeaderLen:], payload)
	return buf
}

// rewriteTransportV6toV4 copies a TCP or UDP segment and recomputes its
// checksum against the new IPv4 pseudo-header; the transport header and
// payload bytes themselves never change across NAT64 translation (only the
// addresses the checksum covers do). embedded selects the tolerant path
// used for a packet embedded in an ICMP error, which RFC 7915 §5 allows to
// arrive truncated.
func rewriteTransportV6toV4(segment []byte, src4, dst4 [4]byte, proto uint8, embedded bool) ([]byte, error) {
	out, csOff, full, err := copySegmentForChecksum(segment, proto, embedded)
	if err != nil {
		return nil, err
	}
	if !full {
		// Too little of the original segment survived the ICMP error's
		// truncation to safely recompute a checksum; pass through the
		// available bytes (ports, sequence numbers) so the embedded
		// packet still identifies the original flow.
		return out, nil
	}
	pseudo := checksum.PseudoHeaderV4Sum(src4, dst4, proto, uint16(len(out)))
	cs := checksum.TransportChecksumNonZero(pseudo, out)
	binary.BigEndian.PutUint16(out[csOff:csOff+2], cs)
	return out, nil
}

// rewriteTransportV4toV6 is rewriteTransportV6toV4 for the reverse direction;
// IPv6 additionally requires transport checksums be mandatory and non-zero.
func rewriteTransportV4toV6(segment []byte, src6, dst6 [16]byte, proto uint8, embedded bool) ([]byte, error) {
	out, csOff, full, err := copySegmentForChecksum(segment, proto, embedded)
	if err != nil {
		return nil, err
	}
	if !full {
		return out, nil
	}
	pseudo := checksum.PseudoHeaderV6Sum(src6, dst6, proto, uint32(len(out)))
	cs := checksum.TransportChecksumNonZero(pseudo, out)
	binary.BigEndian.PutUint16(out[csOff:csOff+2], cs)
	return out, nil
}

// copySegmentForChecksum copies segment (so the original packet buffer is
// never mutated) and, when the full transport header is present, zeroes the
// checksum field and reports its offset for the caller to recompute. When
// tolerateTruncation is set and segment is shorter than a full header (the
// common case for the original packet embedded in an ICMP error, which
// carries only as much of it as fit before the error was generated), the
// available bytes are returned as-is and full is false: RFC 7915 §5 does
// not require recomputing a checksum the translator cannot fully cover.
func copySegmentForChecksum(segment []byte, proto uint8, tolerateTruncation bool) (out []byte, checksumOffset int, full bool, err error) {
	var minLen int
	switch proto {
	case ipproto.ProtoUDP:
		minLen, checksumOffset = 8, 6
	case ipproto.ProtoTCP:
		minLen, checksumOffset = 20, 16
	default:
		return nil, 0, false, ErrUnsupportedNextHeader
	}
	out = append([]byte(nil), segment...)
	if len(segment) < minLen {
		if !tolerateTruncation {
			return nil, 0, false, ErrTruncatedPacket
		}
		return out, checksumOffset, false, nil
	}
	out[checksumOffset], out[checksumOffset+1] = 0, 0
	return out, checksumOffset, true, nil
}
