// Package translate implements the stateless per-packet IPv4<->IPv6
// translation described in spec.md §4.4 (RFC 7915-style header rewriting),
// dispatching into a NAT64 pool+table for address resolution or, in CLAT
// mode, into a fixed customer prefix with no table at all.
package translate

import (
	"fmt"
	"net"

	"golang.org/x/net/icmp"

	"github.com/ruilisi/nat64d/internal/codec"
	"github.com/ruilisi/nat64d/internal/ipproto"
	"github.com/ruilisi/nat64d/internal/nattable"
)

// Mode selects which addressing strategy the Translator uses for the
// "local" side of a translation.
type Mode int

const (
	// ModeNAT64 resolves both directions through a pool-backed Table: the
	// v6->v4 direction allocates (or reuses) a pool address per v6 source,
	// the v4->v6 direction looks up the v6 owner of a pool address.
	ModeNAT64 Mode = iota
	// ModeCLAT is the same state machine with no table at all: the v4<->v6
	// boundary nearest the local host always embeds/extracts under a fixed
	// customer prefix, and the far (already PLAT-translated) side always
	// embeds/extracts under NAT64Prefix.
	ModeCLAT
	// ModeSixOverFour is accepted as a configuration value (spec.md §6) but
	// carries no distinct translation semantics of its own; it is treated
	// identically to ModeNAT64.
	ModeSixOverFour
)

// Config parameterizes a Translator. NAT64Prefix/NAT64PrefixLen are always
// required. CustomerPrefix/CustomerPrefixLen and Table are mutually
// exclusive: CLAT mode requires the former and ignores the latter; NAT64
// and 6over4 modes require the latter and ignore the former.
type Config struct {
	Mode Mode

	NAT64Prefix    net.IP
	NAT64PrefixLen int

	CustomerPrefix    net.IP
	CustomerPrefixLen int

	Table *nattable.Table
}

// Translator holds a validated Config and is safe for concurrent use: it
// keeps no per-packet state of its own (all shared state lives in Table).
type Translator struct {
	cfg Config
}

// New validates cfg and returns a ready Translator.
func New(cfg Config) (*Translator, error) {
	if !codec.ValidPrefixLength(cfg.NAT64PrefixLen) {
		return nil, fmt.Errorf("translate: %w", codec.ErrBadPrefixLength)
	}
	switch cfg.Mode {
	case ModeNAT64, ModeSixOverFour:
		if cfg.Table == nil {
			return nil, fmt.Errorf("translate: mode requires a NAT table")
		}
	case ModeCLAT:
		if cfg.CustomerPrefix == nil {
			return nil, fmt.Errorf("translate: CLAT mode requires a customer prefix")
		}
		if cfg.CustomerPrefixLen < 0 || cfg.CustomerPrefixLen > 96 || cfg.CustomerPrefixLen%8 != 0 {
			return nil, fmt.Errorf("translate: customer prefix length must be a multiple of 8 in [0,96]")
		}
	default:
		return nil, fmt.Errorf("translate: unknown mode %d", cfg.Mode)
	}
	return &Translator{cfg: cfg}, nil
}

// TranslateV6ToV4 is the forward path (spec.md §4.4.1): an IPv6 packet
// arriving from the v6-only side is rewritten into an IPv4 packet.
func (t *Translator) TranslateV6ToV4(pkt []byte) ([]byte, error) {
	return t.translateV6ToV4(pkt, 0)
}

// TranslateV4ToV6 is the reverse path (spec.md §4.4.2): an IPv4 packet
// arriving from the v4 side is rewritten into an IPv6 packet.
func (t *Translator) TranslateV4ToV6(pkt []byte) ([]byte, error) {
	return t.translateV4ToV6(pkt, 0)
}

// translateEmbedded6to4 and translateEmbedded4to6 implement recursor for
// icmp.go: they translate the original packet embedded in an ICMP error,
// one level deep only (depth 1 refuses to recurse further).
func (t *Translator) translateEmbedded6to4(orig []byte) ([]byte, error) {
	return t.translateV6ToV4(orig, 1)
}

func (t *Translator) translateEmbedded4to6(orig []byte) ([]byte, error) {
	return t.translateV4ToV6(orig, 1)
}

// translateV6ToV4 rewrites a v6 packet to v4. At depth 0 (the packet arrived
// directly on the v6 side) the destination is always the far/already-
// embedded side and the source is always the local/resolved side. At depth 1
// (this is the original packet embedded inside an ICMPv6 error, which was
// itself traveling in the opposite logical direction before a router bounced
// it) the roles are mirrored: spec.md §4.4.4.
func (t *Translator) translateV6ToV4(pkt []byte, depth int) ([]byte, error) {
	h, err := parseIPv6Header(pkt)
	if err != nil {
		return nil, err
	}
	proto, upperOff, frag, err := walkIPv6ExtensionHeaders(pkt, h.nextHeader, ipv6HeaderLen)
	if err != nil {
		return nil, err
	}
	if frag.present {
		return nil, ErrFragmented
	}
	if h.hopLimit <= 1 {
		return nil, ErrTtlExceeded
	}

	srcV6 := net.IP(h.src[:])
	dstV6 := net.IP(h.dst[:])

	var srcV4, dstV4 net.IP
	if t.cfg.Mode == ModeCLAT {
		// depth 0: src is the local customer device (validated against
		// CustomerPrefix), dst is the far/already-PLAT-translated side. depth
		// 1 (embedded original packet): roles mirror, since that packet was
		// itself traveling dst->src relative to the ICMP error carrying it.
		if depth == 0 {
			if !withinPrefix(srcV6, t.cfg.CustomerPrefix, t.cfg.CustomerPrefixLen) {
				return nil, ErrNotCustomer
			}
			srcV4, err = codec.ExtractUnchecked(srcV6, t.cfg.CustomerPrefixLen)
			if err == nil {
				dstV4, err = codec.Extract(dstV6, t.cfg.NAT64PrefixLen)
			}
		} else {
			if !withinPrefix(dstV6, t.cfg.CustomerPrefix, t.cfg.CustomerPrefixLen) {
				return nil, ErrNotCustomer
			}
			dstV4, err = codec.ExtractUnchecked(dstV6, t.cfg.CustomerPrefixLen)
			if err == nil {
				srcV4, err = codec.Extract(srcV6, t.cfg.NAT64PrefixLen)
			}
		}
	} else {
		// depth 0: dst is the NAT64-embedded external v4 host, src is the
		// local v6 client (resolved through the pool table). depth 1
		// (embedded original packet): mirrored, per spec.md §4.4.4.
		if depth == 0 {
			dstV4, err = codec.Extract(dstV6, t.cfg.NAT64PrefixLen)
			if err == nil {
				srcV4, err = t.cfg.Table.GetOrAllocateV4For(srcV6)
			}
		} else {
			srcV4, err = codec.Extract(srcV6, t.cfg.NAT64PrefixLen)
			if err == nil {
				dstV4, err = t.cfg.Table.GetOrAllocateV4For(dstV6)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	var src4, dst4 [4]byte
	copy(src4[:], srcV4.To4())
	copy(dst4[:], dstV4.To4())

	payload := pkt[upperOff:]
	var v4Proto uint8
	var newPayload []byte

	switch proto {
	case ipproto.ProtoTCP:
		v4Proto = ipproto.ProtoTCP
		newPayload, err = rewriteTransportV6toV4(payload, src4, dst4, ipproto.ProtoTCP, depth > 0)
	case ipproto.ProtoUDP:
		v4Proto = ipproto.ProtoUDP
		newPayload, err = rewriteTransportV6toV4(payload, src4, dst4, ipproto.ProtoUDP, depth > 0)
	case ipproto.ProtoIPv6ICMP:
		v4Proto = ipproto.ProtoICMP
		newPayload, err = translateICMP6to4(payload, t, depthLimited{t, depth})
	default:
		return nil, fmt.Errorf("%w: next header %d", ErrUnsupportedNextHeader, proto)
	}
	if err != nil {
		return nil, err
	}

	return buildIPv4Packet(h.hopLimit-1, v4Proto, src4, dst4, newPayload), nil
}

func (t *Translator) translateV4ToV6(pkt []byte, depth int) ([]byte, error) {
	h, err := parseIPv4Header(pkt)
	if err != nil {
		return nil, err
	}
	if h.isFragment() {
		return nil, ErrFragmented
	}
	if h.ttl <= 1 {
		return nil, ErrTtlExceeded
	}

	total := int(h.totalLen)
	if total == 0 || total > len(pkt) {
		total = len(pkt)
	}
	payload := pkt[h.ihl:total]

	srcV4 := net.IP(h.src[:])
	dstV4 := net.IP(h.dst[:])

	var dstV6, srcV6 net.IP
	if t.cfg.Mode == ModeCLAT {
		// depth 0: src is the local customer device (CustomerPrefix embed),
		// dst is the far/remote side (NAT64Prefix embed). depth 1 (embedded
		// original packet): mirrored, per spec.md §4.4.4.
		if depth == 0 {
			srcV6, err = codec.EmbedUnchecked(srcV4, t.cfg.CustomerPrefix, t.cfg.CustomerPrefixLen)
			if err == nil {
				dstV6, err = codec.Embed(dstV4, t.cfg.NAT64Prefix, t.cfg.NAT64PrefixLen)
			}
		} else {
			dstV6, err = codec.EmbedUnchecked(dstV4, t.cfg.CustomerPrefix, t.cfg.CustomerPrefixLen)
			if err == nil {
				srcV6, err = codec.Embed(srcV4, t.cfg.NAT64Prefix, t.cfg.NAT64PrefixLen)
			}
		}
		if err != nil {
			return nil, err
		}
	} else {
		// depth 0: dst is the known v6 client (pool table lookup), src is the
		// external v4 host (fresh embed under NAT64Prefix). depth 1 (embedded
		// original packet): mirrored.
		if depth == 0 {
			dstV6, err = t.cfg.Table.LookupV6For(dstV4)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoMapping, err)
			}
			srcV6, err = codec.Embed(srcV4, t.cfg.NAT64Prefix, t.cfg.NAT64PrefixLen)
		} else {
			srcV6, err = t.cfg.Table.LookupV6For(srcV4)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrNoMapping, err)
			}
			dstV6, err = codec.Embed(dstV4, t.cfg.NAT64Prefix, t.cfg.NAT64PrefixLen)
		}
		if err != nil {
			return nil, err
		}
	}

	var src6, dst6 [16]byte
	copy(src6[:], srcV6.To16())
	copy(dst6[:], dstV6.To16())

	var v6Proto uint8
	var newPayload []byte

	switch h.protocol {
	case ipproto.ProtoTCP:
		v6Proto = ipproto.ProtoTCP
		newPayload, err = rewriteTransportV4toV6(payload, src6, dst6, ipproto.ProtoTCP, depth > 0)
	case ipproto.ProtoUDP:
		v6Proto = ipproto.ProtoUDP
		newPayload, err = rewriteTransportV4toV6(payload, src6, dst6, ipproto.ProtoUDP, depth > 0)
	case ipproto.ProtoICMP:
		v6Proto = ipproto.ProtoIPv6ICMP
		psh := icmp.IPv6PseudoHeader(srcV6, dstV6)
		newPayload, err = translateICMP4to6(payload, t, depthLimited{t, depth}, psh)
	default:
		return nil, fmt.Errorf("%w: protocol %d", ErrUnsupportedNextHeader, h.protocol)
	}
	if err != nil {
		return nil, err
	}

	return buildIPv6Packet(h.ttl-1, v6Proto, src6, dst6, newPayload), nil
}

// depthLimited adapts a Translator into a recursor that refuses to recurse
// past one level, so an ICMP error embedding another ICMP error cannot
// produce unbounded recursion.
type depthLimited struct {
	t     *Translator
	depth int
}

func (d depthLimited) translateEmbedded6to4(orig []byte) ([]byte, error) {
	if d.depth > 0 {
		return nil, ErrUntranslatable
	}
	return d.t.translateEmbedded6to4(orig)
}

func (d depthLimited) translateEmbedded4to6(orig []byte) ([]byte, error) {
	if d.depth > 0 {
		return nil, ErrUntranslatable
	}
	return d.t.translateEmbedded4to6(orig)
}
