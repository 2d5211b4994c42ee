package codec

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbed_S3Scenario(t *testing.T) {
	// Seed scenario S3: prefix 2001:db8::/32, embed 198.51.100.7.
	prefix := net.ParseIP("2001:db8::")
	v4 := net.ParseIP("198.51.100.7")

	got, err := Embed(v4, prefix, 32)
	require.NoError(t, err)
	assert.Equal(t, net.ParseIP("2001:db8:c633:6407::").String(), got.String())
	assert.Equal(t, byte(0), got[8], "reserved u byte must be zero")
}

func TestEmbed_AllPrefixLengths(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		v4     string
		length int
	}{
		{"len32", "2001:db8::", "198.51.100.7", 32},
		{"len40", "2001:db8:10::", "198.51.100.7", 40},
		{"len48", "2001:db8:1:2::", "198.51.100.7", 48},
		{"len56", "2001:db8:1:2:3::", "198.51.100.7", 56},
		{"len64", "64:ff9b::", "192.0.2.1", 64},
		{"len96", "64:ff9b::", "192.0.2.1", 96},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefix := net.ParseIP(tt.prefix)
			v4 := net.ParseIP(tt.v4)

			v6, err := Embed(v4, prefix, tt.length)
			require.NoError(t, err)
			assert.Equal(t, byte(0), v6[8], "reserved u byte must always be zero")

			back, err := Extract(v6, tt.length)
			require.NoError(t, err)
			assert.Equal(t, v4.To4().String(), back.String())
		})
	}
}

func TestEmbed_S1Scenario(t *testing.T) {
	// Seed scenario S1: NAT64 prefix 64:ff9b::/96, pool 192.0.2.0/24.
	prefix := net.ParseIP("64:ff9b::")
	v4 := net.ParseIP("192.0.2.1")

	v6, err := Embed(v4, prefix, 96)
	require.NoError(t, err)
	assert.Equal(t, "64:ff9b::c000:201", v6.String())
}

func TestEmbed_BadPrefixLength(t *testing.T) {
	prefix := net.ParseIP("2001:db8::")
	v4 := net.ParseIP("192.0.2.1")

	for _, length := range []int{0, 8, 16, 24, 72, 80, 88, 128} {
		_, err := Embed(v4, prefix, length)
		assert.ErrorIs(t, err, ErrBadPrefixLength, "length %d should be rejected", length)
	}
}

func TestExtract_NonZeroReservedByte(t *testing.T) {
	v6 := net.ParseIP("2001:db8:c633:6407::")
	v6[8] = 0x01 // corrupt the reserved byte

	_, err := Extract(v6, 32)
	assert.ErrorIs(t, err, ErrNonZeroReservedByte)
}

func TestExtractUnchecked_AcceptsAnyMultipleOf8(t *testing.T) {
	prefix := net.ParseIP("2001:db8::")
	v4 := net.ParseIP("198.51.100.7")

	// 72 is a multiple of 8 outside the six RFC 6052 lengths.
	v6, err := EmbedUnchecked(v4, prefix, 72)
	require.NoError(t, err)

	back, err := ExtractUnchecked(v6, 72)
	require.NoError(t, err)
	assert.Equal(t, v4.To4().String(), back.String())
}

func TestRoundTrip_Property(t *testing.T) {
	// Invariant 1 (spec §8): extract(embed(a, P, L), L) == a for every
	// valid length L and a representative spread of addresses a.
	lengths := []int{32, 40, 48, 56, 64, 96}
	addrs := []string{
		"0.0.0.0",
		"255.255.255.255",
		"192.0.2.1",
		"10.1.2.3",
		"198.51.100.7",
		"203.0.113.255",
		"1.2.3.4",
	}
	prefix := net.ParseIP("2001:db8::")

	for _, length := range lengths {
		for _, a := range addrs {
			v4 := net.ParseIP(a)
			v6, err := Embed(v4, prefix, length)
			require.NoError(t, err)
			require.Equal(t, byte(0), v6[8], "invariant 2: reserved byte always zero")

			back, err := Extract(v6, length)
			require.NoError(t, err)
			assert.Equal(t, v4.To4().String(), back.String(), "length=%d addr=%s", length, a)
		}
	}
}

func TestValidPrefixLength(t *testing.T) {
	for _, l := range []int{32, 40, 48, 56, 64, 96} {
		assert.True(t, ValidPrefixLength(l))
	}
	for _, l := range []int{0, 16, 24, 72, 100, 128} {
		assert.False(t, ValidPrefixLength(l))
	}
}
