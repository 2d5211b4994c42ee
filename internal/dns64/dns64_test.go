package dns64

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a local UDP DNS server answering a single A record
// for "example.test.", using the standard miekg/dns server test shape.
func startTestServer(t *testing.T) string {
	t.Helper()

	mux := dns.NewServeMux()
	mux.HandleFunc("example.test.", func(w dns.ResponseWriter, req *dns.Msg) {
		reply := new(dns.Msg)
		reply.SetReply(req)
		reply.Answer = append(reply.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: "example.test.", Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
			A:   net.ParseIP("198.51.100.7").To4(),
		})
		w.WriteMsg(reply)
	})

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &dns.Server{PacketConn: pc, Handler: mux}
	go server.ActivateAndServe()
	t.Cleanup(func() { server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestSynthesizeAAAA(t *testing.T) {
	addr := startTestServer(t)

	r := &Resolver{
		Upstream:       []string{addr},
		NAT64Prefix:    net.ParseIP("64:ff9b::"),
		NAT64PrefixLen: 96,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := r.SynthesizeAAAA(ctx, "example.test.")
	require.NoError(t, err)
	require.Len(t, reply.Answer, 1)

	aaaa, ok := reply.Answer[0].(*dns.AAAA)
	require.True(t, ok)
	assert.Equal(t, "64:ff9b::c633:6407", aaaa.AAAA.String())
}

func TestSynthesizeAAAA_AllUpstreamsFailed(t *testing.T) {
	r := &Resolver{
		Upstream:       []string{"127.0.0.1:1"}, // nothing listening
		NAT64Prefix:    net.ParseIP("64:ff9b::"),
		NAT64PrefixLen: 96,
		Timeout:        100 * time.Millisecond,
	}
	_, err := r.SynthesizeAAAA(context.Background(), "example.test.")
	assert.Error(t, err)
}
