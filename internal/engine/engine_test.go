package engine

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruilisi/nat64d/internal/checksum"
	"github.com/ruilisi/nat64d/internal/ipproto"
	"github.com/ruilisi/nat64d/internal/translate"
)

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return n
}

func buildV6UDP(src, dst net.IP, srcPort, dstPort uint16, payload []byte) []byte {
	udpLen := 8 + len(payload)
	buf := make([]byte, 40+udpLen)
	buf[0] = 0x60
	binary.BigEndian.PutUint16(buf[4:6], uint16(udpLen))
	buf[6] = ipproto.ProtoUDP
	buf[7] = 64
	copy(buf[8:24], src.To16())
	copy(buf[24:40], dst.To16())

	u := buf[40:]
	binary.BigEndian.PutUint16(u[0:2], srcPort)
	binary.BigEndian.PutUint16(u[2:4], dstPort)
	binary.BigEndian.PutUint16(u[4:6], uint16(udpLen))
	copy(u[8:], payload)

	var s6, d6 [16]byte
	copy(s6[:], src.To16())
	copy(d6[:], dst.To16())
	pseudo := checksum.PseudoHeaderV6Sum(s6, d6, ipproto.ProtoUDP, uint32(udpLen))
	cs := checksum.TransportChecksumNonZero(pseudo, u)
	binary.BigEndian.PutUint16(u[6:8], cs)

	return buf
}

func TestEngine_HandlePacket_NAT64Forward(t *testing.T) {
	e, err := New(Config{
		Mode:           translate.ModeNAT64,
		NAT64Prefix:    net.ParseIP("64:ff9b::"),
		NAT64PrefixLen: 96,
		Pool:           []*net.IPNet{mustCIDR(t, "192.0.2.0/24")},
	})
	require.NoError(t, err)

	pkt := buildV6UDP(net.ParseIP("2001:db8::1"), net.ParseIP("64:ff9b::c000:201"), 5000, 53, []byte("hi"))
	out, err := e.HandlePacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x45), out[0])
	assert.Equal(t, "192.0.2.1", net.IP(out[16:20]).String())
}

func TestEngine_HandlePacket_DropsFragment(t *testing.T) {
	e, err := New(Config{
		Mode:           translate.ModeNAT64,
		NAT64Prefix:    net.ParseIP("64:ff9b::"),
		NAT64PrefixLen: 96,
		Pool:           []*net.IPNet{mustCIDR(t, "192.0.2.0/24")},
	})
	require.NoError(t, err)

	udp := buildV6UDP(net.ParseIP("2001:db8::1"), net.ParseIP("64:ff9b::c000:201"), 5000, 53, []byte("hi"))

	// Splice an 8-byte Fragment extension header (RFC 8200 §4.5) between the
	// fixed header and the UDP payload, with a nonzero offset.
	fragHdr := make([]byte, 8)
	fragHdr[0] = ipproto.ProtoUDP
	binary.BigEndian.PutUint16(fragHdr[2:4], 1<<3) // offset 1, M=0
	binary.BigEndian.PutUint32(fragHdr[4:8], 42)

	pkt := make([]byte, 40+8+len(udp)-40)
	copy(pkt[:40], udp[:40])
	pkt[6] = ipproto.ProtoIPv6Frag
	copy(pkt[40:48], fragHdr)
	copy(pkt[48:], udp[40:])
	binary.BigEndian.PutUint16(pkt[4:6], uint16(len(pkt)-40))

	_, err = e.HandlePacket(pkt)
	assert.ErrorIs(t, err, translate.ErrFragmented)
}

func TestEngine_HandlePacket_TruncatedPacket(t *testing.T) {
	e, err := New(Config{
		Mode:           translate.ModeNAT64,
		NAT64Prefix:    net.ParseIP("64:ff9b::"),
		NAT64PrefixLen: 96,
		Pool:           []*net.IPNet{mustCIDR(t, "192.0.2.0/24")},
	})
	require.NoError(t, err)

	_, err = e.HandlePacket(nil)
	assert.ErrorIs(t, err, translate.ErrTruncatedPacket)
}
