package translate

import (
	"fmt"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// icmp6to4DstUnreachCode maps an ICMPv6 Destination Unreachable code to its ICMPv4
// counterpart, per RFC 7915 §4.2.
var icmp6to4DstUnreachCode = map[int]int{
	0: 1,  // no route to destination -> host unreachable
	1: 13, // administratively prohibited -> admin prohibited
	2: 1,  // beyond scope of source address -> host unreachable
	3: 1,  // address unreachable -> host unreachable
	4: 3,  // port unreachable -> port unreachable
}

// v6Target is the ICMPv6 type/code pair that icmp4to6DstUnreach maps an
// ICMPv4 Destination Unreachable code to, per RFC 7915 §4.3. Any typ other
// than ipv6.ICMPTypeParameterProblem is emitted as
// ipv6.ICMPTypeDestinationUnreachable (the common case); a few codes map to
// Parameter Problem instead.
type v6Target struct {
	typ  int
	code int
}

var icmp4to6DstUnreach = map[int]v6Target{
	0:  {int(ipv6.ICMPTypeDestinationUnreachable), 0}, // net unreachable
	1:  {int(ipv6.ICMPTypeDestinationUnreachable), 0}, // host unreachable
	2:  {int(ipv6.ICMPTypeParameterProblem), 1},       // protocol unreachable -> unrecognized next header
	3:  {int(ipv6.ICMPTypeDestinationUnreachable), 4}, // port unreachable
	5:  {int(ipv6.ICMPTypeDestinationUnreachable), 0}, // source route failed
	13: {int(ipv6.ICMPTypeDestinationUnreachable), 1}, // admin prohibited
}

// translateICMP6to4 rewrites an ICMPv6 message as ICMPv4. payload is the
// ICMPv6 message (header + body) stripped of the outer IP header. When the
// ICMP body carries an embedded original packet (error messages), that
// packet is translated by calling back through recur.translateEmbedded6to4,
// which refuses to go more than one level deep (spec.md §4.4.4).
func translateICMP6to4(payload []byte, t *Translator, recur recursor) ([]byte, error) {
	msg, err := icmp.ParseMessage(ipv6.ICMPTypeEchoRequest.Protocol(), payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedPacket, err)
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		typ := ipv4.ICMPTypeEchoReply
		if msg.Type == ipv6.ICMPTypeEchoRequest {
			typ = ipv4.ICMPTypeEcho
		}
		out := &icmp.Message{Type: typ, Code: 0, Body: &icmp.Echo{ID: body.ID, Seq: body.Seq, Data: body.Data}}
		return out.Marshal(nil)

	case *icmp.DstUnreach:
		code, ok := icmp6to4DstUnreachCode[msg.Code]
		if !ok {
			code = 1
		}
		inner, err := recur.translateEmbedded6to4(body.Data)
		if err != nil {
			return nil, err
		}
		out := &icmp.Message{Type: ipv4.ICMPTypeDestinationUnreachable, Code: code, Body: &icmp.DstUnreach{Data: inner}}
		return out.Marshal(nil)

	case *icmp.PacketTooBig:
		inner, err := recur.translateEmbedded6to4(body.Data)
		if err != nil {
			return nil, err
		}
		mtu := body.MTU - 20
		if mtu < 0 {
			mtu = 0
		}
		out := &icmp.Message{Type: ipv4.ICMPTypeDestinationUnreachable, Code: 4, Body: &icmp.PacketTooBig{MTU: mtu, Data: inner}}
		return out.Marshal(nil)

	case *icmp.TimeExceeded:
		inner, err := recur.translateEmbedded6to4(body.Data)
		if err != nil {
			return nil, err
		}
		out := &icmp.Message{Type: ipv4.ICMPTypeTimeExceeded, Code: msg.Code, Body: &icmp.TimeExceeded{Data: inner}}
		return out.Marshal(nil)

	case *icmp.ParamProb:
		if msg.Code != 0 {
			return nil, ErrUntranslatable
		}
		inner, err := recur.translateEmbedded6to4(body.Data)
		if err != nil {
			return nil, err
		}
		ptr := pointer6to4(body.Pointer)
		if ptr < 0 {
			return nil, ErrUntranslatable
		}
		out := &icmp.Message{Type: ipv4.ICMPTypeParameterProblem, Code: 0, Body: &icmp.ParamProb{Pointer: uintptr(ptr), Data: inner}}
		return out.Marshal(nil)

	default:
		return nil, ErrUntranslatable
	}
}

// translateICMP4to6 translates an ICMPv4 message into ICMPv6. psh is the
// IPv6 pseudo-header (src+dst of the packet the translated message will
// ride in), required because ICMPv6's checksum, unlike ICMPv4's, covers a
// pseudo-header (RFC 4443 §2.3).
func translateICMP4to6(payload []byte, t *Translator, recur recursor, psh []byte) ([]byte, error) {
	msg, err := icmp.ParseMessage(ipv4.ICMPTypeEcho.Protocol(), payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedPacket, err)
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		typ := ipv6.ICMPTypeEchoReply
		if msg.Type == ipv4.ICMPTypeEcho {
			typ = ipv6.ICMPTypeEchoRequest
		}
		out := &icmp.Message{Type: typ, Code: 0, Body: &icmp.Echo{ID: body.ID, Seq: body.Seq, Data: body.Data}}
		return out.Marshal(psh)

	case *icmp.DstUnreach:
		target, ok := icmp4to6DstUnreach[msg.Code]
		if !ok {
			target = v6Target{int(ipv6.ICMPTypeDestinationUnreachable), 0}
		}
		inner, err := recur.translateEmbedded4to6(body.Data)
		if err != nil {
			return nil, err
		}
		if target.typ == int(ipv6.ICMPTypeParameterProblem) {
			out := &icmp.Message{Type: ipv6.ICMPTypeParameterProblem, Code: target.code, Body: &icmp.ParamProb{Pointer: 6, Data: inner}}
			return out.Marshal(psh)
		}
		out := &icmp.Message{Type: ipv6.ICMPTypeDestinationUnreachable, Code: target.code, Body: &icmp.DstUnreach{Data: inner}}
		return out.Marshal(psh)

	case *icmp.PacketTooBig:
		inner, err := recur.translateEmbedded4to6(body.Data)
		if err != nil {
			return nil, err
		}
		out := &icmp.Message{Type: ipv6.ICMPTypePacketTooBig, Code: 0, Body: &icmp.PacketTooBig{MTU: body.MTU + 20, Data: inner}}
		return out.Marshal(psh)

	case *icmp.TimeExceeded:
		inner, err := recur.translateEmbedded4to6(body.Data)
		if err != nil {
			return nil, err
		}
		out := &icmp.Message{Type: ipv6.ICMPTypeTimeExceeded, Code: msg.Code, Body: &icmp.TimeExceeded{Data: inner}}
		return out.Marshal(psh)

	default:
		return nil, ErrUntranslatable
	}
}

// pointer6to4 maps an ICMPv6 Parameter Problem pointer (an offset into the
// IPv6 header) to the equivalent IPv4 header offset, per RFC 7915 §4.2's
// table. Returns -1 for pointers with no IPv4 counterpart.
func pointer6to4(p uintptr) int {
	switch p {
	case 0:
		return 0 // version/traffic class -> version/IHL, ToS
	case 4:
		return 2 // payload length -> total length
	case 6:
		return 9 // next header -> protocol
	case 7:
		return 8 // hop limit -> TTL
	case 8:
		return 12 // source address -> source address
	case 24:
		return 16 // destination address -> destination address
	default:
		return -1
	}
}

// recursor lets the ICMP branch recurse one level into an embedded original
// packet (spec.md §4.4.4) without calling back through the top-level
// per-direction entry points directly.
type recursor interface {
	translateEmbedded6to4(orig []byte) ([]byte, error)
	translateEmbedded4to6(orig []byte) ([]byte, error)
}
