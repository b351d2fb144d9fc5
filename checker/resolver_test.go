package checker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDNSServer(t *testing.T, zone map[string]string) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		q := req.Question[0]
		addr, ok := zone[q.Name]
		switch {
		case !ok:
			m.Rcode = dns.RcodeNameError
		case q.Qtype == dns.TypeA && net.ParseIP(addr).To4() != nil:
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(addr),
			})
		case q.Qtype == dns.TypeAAAA && net.ParseIP(addr).To4() == nil:
			m.Answer = append(m.Answer, &dns.AAAA{
				Hdr:  dns.RR_Header{Name: q.Name, Rrtype: dns.TypeAAAA, Class: dns.ClassINET, Ttl: 60},
				AAAA: net.ParseIP(addr),
			})
		}
		_ = w.WriteMsg(m)
	})

	srv := &dns.Server{PacketConn: pc, Handler: handler}
	go func() { _ = srv.ActivateAndServe() }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestDNSResolver(t *testing.T) {
	ns := newDNSServer(t, map[string]string{
		"example.pl.": "192.0.2.10",
		"v6.example.": "2001:db8::1",
	})
	r := NewDNSResolver(ns, time.Second)
	ctx := context.Background()

	addr, err := r.Resolve(ctx, "example.pl")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", addr)

	addr, err = r.Resolve(ctx, "v6.example")
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", addr)

	_, err = r.Resolve(ctx, "missing.example")
	assert.Error(t, err)

	addr, err = r.Resolve(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", addr)
}

func TestNewDNSResolverDefaultPort(t *testing.T) {
	assert.Equal(t, "192.0.2.53:53", NewDNSResolver("192.0.2.53", time.Second).Nameserver)
	assert.Equal(t, "192.0.2.53:5353", NewDNSResolver("192.0.2.53:5353", time.Second).Nameserver)
}
