// Package dns64 synthesizes AAAA records from A records for names that have
// no native IPv6 address, embedding the returned IPv4 addresses under the
// NAT64 prefix via internal/codec. It supplements the distilled spec: real
// NAT64 deployments are always paired with a DNS64 resolver, and spec.md is
// silent on the resolver side. It never touches the Translator's packet
// path (SPEC_FULL.md §6), keeping C4 stateless.
package dns64

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/ruilisi/nat64d/internal/codec"
)

// ErrAllUpstreamsFailed is returned when every configured resolver fails or
// times out.
var ErrAllUpstreamsFailed = errors.New("dns64: all upstream resolvers failed")

// Resolver synthesizes AAAA answers for qnames with no native IPv6 address.
type Resolver struct {
	Upstream       []string
	NAT64Prefix    net.IP
	NAT64PrefixLen int

	// Timeout bounds each individual upstream query; zero selects a 2s
	// default, matching dns/robust/robust.go's retry timeout.
	Timeout time.Duration
}

// SynthesizeAAAA first queries Upstream for qname's native AAAA records and,
// if the reply carries any, returns that reply unchanged. Otherwise it
// queries qname's A records (racing all upstreams concurrently, first answer
// wins) and returns a synthetic AAAA response embedding each returned
// address under NAT64Prefix.
func (r *Resolver) SynthesizeAAAA(ctx context.Context, qname string) (*dns.Msg, error) {
	if native, err := r.queryRace(ctx, qname, dns.TypeAAAA); err == nil {
		for _, rr := range native.Answer {
			if _, ok := rr.(*dns.AAAA); ok {
				return native, nil
			}
		}
	}

	aReply, err := r.queryRace(ctx, qname, dns.TypeA)
	if err != nil {
		return nil, err
	}

	reply := new(dns.Msg)
	reply.SetQuestion(dns.Fqdn(qname), dns.TypeAAAA)
	reply.Response = true
	reply.Rcode = dns.RcodeSuccess

	for _, rr := range aReply.Answer {
		arec, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		v6, err := codec.Embed(arec.A, r.NAT64Prefix, r.NAT64PrefixLen)
		if err != nil {
			continue
		}
		reply.Answer = append(reply.Answer, &dns.AAAA{
			Hdr:  dns.RR_Header{Name: arec.Hdr.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: arec.Hdr.Ttl},
			AAAA: v6,
		})
	}
	return reply, nil
}

// queryRace sends qtype queries to every upstream concurrently and returns
// the first successful reply, per dns/robust/robust.go's
// resolveIPWithDNSServers racing shape, generalized from "first IP wins" to
// "first full dns.Msg wins" so SynthesizeAAAA can read TTLs and multiple
// answers.
func (r *Resolver) queryRace(ctx context.Context, qname string, qtype uint16) (*dns.Msg, error) {
	if len(r.Upstream) == 0 {
		return nil, ErrAllUpstreamsFailed
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	type result struct {
		msg *dns.Msg
		err error
	}
	ch := make(chan result, len(r.Upstream))

	for _, server := range r.Upstream {
		go func(server string) {
			qctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			msg, err := queryOne(qctx, server, qname, qtype)
			ch <- result{msg, err}
		}(server)
	}

	for range r.Upstream {
		select {
		case res := <-ch:
			if res.err == nil {
				return res.msg, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, ErrAllUpstreamsFailed
}

func queryOne(ctx context.Context, server, qname string, qtype uint16) (*dns.Msg, error) {
	client := new(dns.Client)
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(qname), qtype)

	reply, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, err
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, errors.New("dns64: " + dns.RcodeToString[reply.Rcode])
	}
	return reply, nil
}
